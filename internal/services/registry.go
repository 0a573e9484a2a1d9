package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pandeptwidyaop/xwhep-remote/internal/cache"
	"github.com/pandeptwidyaop/xwhep-remote/internal/metrics"
	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
	"github.com/pandeptwidyaop/xwhep-remote/internal/validation"
)

// URLFetcher downloads arbitrary URLs, for binaries hosted off the service.
type URLFetcher interface {
	DownloadURL(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

// Registry resolves application names to uids and registers applications.
//
// The name index is filled by listing or registering applications and is
// never invalidated, so a rename or removal on the server is not noticed.
type Registry struct {
	repo    *Repository
	store   cache.Store
	fetcher URLFetcher
	opts    Options
	group   singleflight.Group
	log     *zap.SugaredLogger
}

// NewRegistry creates a Registry. fetcher may be nil when binaries are
// always local files.
func NewRegistry(repo *Repository, store cache.Store, fetcher URLFetcher, opts Options, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{
		repo:    repo,
		store:   store,
		fetcher: fetcher,
		opts:    opts.withDefaults(),
		log:     log.Named("registry"),
	}
}

// Resolve returns the uid of the application called name, listing the
// service applications on a cache miss.
func (r *Registry) Resolve(ctx context.Context, name string) (string, error) {
	if app, ok := r.store.Get(name); ok {
		return app.UID, nil
	}

	if err := r.Refresh(ctx); err != nil {
		return "", err
	}

	if app, ok := r.store.Get(name); ok {
		return app.UID, nil
	}
	return "", &ApplicationNotFoundError{Name: name}
}

// Refresh lists the service applications and caches each one by name.
// Concurrent refreshes share a single listing. The listing is detached from
// the caller that started it, so one caller giving up does not fail the
// others; each caller still returns as soon as its own ctx is done.
func (r *Registry) Refresh(ctx context.Context) error {
	ch := r.group.DoChan("refresh", func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.RefreshTimeout)
		defer cancel()
		return nil, r.refresh(lctx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			r.log.Debug("joined in-flight application listing")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) refresh(ctx context.Context) error {
	uids, err := r.repo.ListApplications(ctx)
	if err != nil {
		return err
	}

	for _, uid := range uids {
		app, err := r.repo.FetchApplication(ctx, uid)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				r.log.Warnw("listed application vanished", "uid", uid)
				continue
			}
			return err
		}
		if app.Name == "" {
			continue
		}
		r.store.Set(app)
	}

	cached := r.store.Len()
	metrics.SetCachedApplications(cached)
	r.log.Debugw("application cache refreshed", "listed", len(uids), "cached", cached)
	return nil
}

// Forget drops the cached application with the given uid, if any. It
// reports whether an entry was dropped.
func (r *Registry) Forget(uid string) bool {
	for _, app := range r.store.List() {
		if app.UID == uid {
			r.store.Delete(app.Name)
			metrics.SetCachedApplications(r.store.Len())
			r.log.Debugw("application forgotten", "name", app.Name, "uid", uid)
			return true
		}
	}
	return false
}

// List refreshes the cache and returns every known application.
func (r *Registry) List(ctx context.Context) ([]*models.Application, error) {
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r.store.List(), nil
}

// Register creates a deployable application with one binary and returns its
// uid. source is a local path, a file:// URL or, when a URLFetcher is set,
// an http(s) URL. Platform and name checks run before any network call.
func (r *Registry) Register(ctx context.Context, name, osName, cpu, source string) (string, error) {
	start := time.Now()

	if err := validation.ValidateName(name); err != nil {
		return "", fmt.Errorf("application name: %w", err)
	}
	field, err := platformField(osName, cpu)
	if err != nil {
		return "", err
	}
	osName = strings.ToUpper(osName)
	cpu = strings.ToUpper(cpu)

	path, cleanup, err := r.localBinary(ctx, source)
	if err != nil {
		return "", err
	}
	defer cleanup()

	appUID, err := r.repo.Create(ctx, models.NewApplicationDocument("", name))
	if err != nil {
		return "", err
	}
	r.log.Infow("application created", "name", name, "uid", appUID)

	dataUID, err := r.repo.Create(ctx, models.NewBinaryDataDocument("", filepath.Base(path), osName, cpu))
	if err != nil {
		return "", err
	}
	if err := r.repo.UploadFile(ctx, dataUID, path); err != nil {
		return "", err
	}
	data, err := r.repo.WaitAvailable(ctx, dataUID, r.opts.DataPollInterval, r.opts.DataWaitTimeout)
	if err != nil {
		return "", err
	}

	if err := r.repo.Update(ctx, models.KindApp, appUID, field, data.URI); err != nil {
		return "", err
	}

	r.store.Set(&models.Application{
		UID:      appUID,
		Name:     name,
		Type:     models.AppTypeDeployable,
		Binaries: map[string]string{field: data.URI},
	})
	metrics.SetCachedApplications(r.store.Len())
	metrics.ObserveOperation("register", start, nil)
	r.log.Infow("application registered", "name", name, "uid", appUID, "field", field, "binary", dataUID)
	return appUID, nil
}

// localBinary returns a local path holding the binary named by source,
// downloading remote URLs into the staging directory.
func (r *Registry) localBinary(ctx context.Context, source string) (string, func(), error) {
	noop := func() {}

	if err := validation.ValidatePath(source); err != nil {
		return "", noop, fmt.Errorf("binary source: %w", err)
	}

	path := source
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		switch u.Scheme {
		case "file":
			path = u.Path
		case "http", "https":
			if r.fetcher == nil {
				return "", noop, fmt.Errorf("binary source %s: remote URLs are not supported", source)
			}
			return r.fetchBinary(ctx, source, filepath.Base(u.Path))
		default:
			return "", noop, fmt.Errorf("binary source %s: unsupported scheme %q", source, u.Scheme)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", noop, err
	}
	if info.Size() == 0 {
		return "", noop, ErrEmptyBinary
	}
	return path, noop, nil
}

func (r *Registry) fetchBinary(ctx context.Context, rawURL, base string) (string, func(), error) {
	noop := func() {}

	dir, err := os.MkdirTemp(r.opts.StagingDir, "xwhep-binary-")
	if err != nil {
		return "", noop, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	if base == "" || base == "." || base == "/" {
		base = "binary"
	}
	path := filepath.Join(dir, base)

	f, err := os.Create(path) // #nosec G304
	if err != nil {
		cleanup()
		return "", noop, err
	}
	n, err := r.fetcher.DownloadURL(ctx, rawURL, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", noop, &TransportError{Op: "download " + rawURL, Err: err}
	}
	if n == 0 {
		cleanup()
		return "", noop, ErrEmptyBinary
	}
	return path, cleanup, nil
}
