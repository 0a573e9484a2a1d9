// Package services implements the work orchestration core: the entity
// repository, application registry, work lifecycle, submission and result
// retrieval, and the local submission journal.
package services

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pandeptwidyaop/xwhep-remote/internal/codec"
	"github.com/pandeptwidyaop/xwhep-remote/internal/metrics"
	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
)

// Transport moves raw entity documents and data content to and from the service.
type Transport interface {
	FetchEntity(ctx context.Context, uid string) ([]byte, error)
	SendEntity(ctx context.Context, kind models.Kind, raw []byte) ([]byte, error)
	UploadBytes(ctx context.Context, uid string, r io.Reader, md5sum string, size int64) error
	DownloadBytes(ctx context.Context, uri string, w io.Writer) (int64, error)
	ListApplications(ctx context.Context) ([]byte, error)
	RemoveEntity(ctx context.Context, uid string) error
}

// Codec converts between raw documents and their in-memory form.
type Codec interface {
	Decode(raw []byte) (*models.Document, error)
	Encode(doc *models.Document) ([]byte, error)
	DecodeUIDList(raw []byte) ([]string, error)
	CheckResult(raw []byte) error
}

// Repository performs typed get/update/create operations on remote entities.
//
// Update is a fetch-modify-send round trip and is not transactional: a
// concurrent change made between the fetch and the send is overwritten.
type Repository struct {
	transport Transport
	codec     Codec
	log       *zap.SugaredLogger
}

// NewRepository creates a Repository over the given transport and codec.
func NewRepository(transport Transport, c Codec, log *zap.SugaredLogger) *Repository {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Repository{transport: transport, codec: c, log: log.Named("repository")}
}

// Fetch retrieves the entity uid and checks that it is of the expected kind.
func (r *Repository) Fetch(ctx context.Context, kind models.Kind, uid string) (*models.Document, error) {
	raw, err := r.transport.FetchEntity(ctx, uid)
	if err != nil {
		return nil, &TransportError{Op: "fetch " + uid, Err: err}
	}

	doc, err := r.codec.Decode(raw)
	if err != nil {
		var remote *codec.RemoteError
		switch {
		case errors.As(err, &remote):
			return nil, &TransportError{Op: "fetch " + uid, Err: err}
		case errors.Is(err, codec.ErrNoEntity):
			return nil, &NotFoundError{Kind: kind, UID: uid}
		}
		return nil, fmt.Errorf("decode %s %s: %w", kind, uid, err)
	}
	if doc.Kind != kind {
		return nil, &NotFoundError{Kind: kind, UID: uid}
	}
	return doc, nil
}

// FetchWork retrieves a work.
func (r *Repository) FetchWork(ctx context.Context, uid string) (*models.Work, error) {
	doc, err := r.Fetch(ctx, models.KindWork, uid)
	if err != nil {
		return nil, err
	}
	return models.WorkFromDocument(doc), nil
}

// FetchData retrieves a data entity.
func (r *Repository) FetchData(ctx context.Context, uid string) (*models.Data, error) {
	doc, err := r.Fetch(ctx, models.KindData, uid)
	if err != nil {
		return nil, err
	}
	return models.DataFromDocument(doc), nil
}

// FetchApplication retrieves an application.
func (r *Repository) FetchApplication(ctx context.Context, uid string) (*models.Application, error) {
	doc, err := r.Fetch(ctx, models.KindApp, uid)
	if err != nil {
		return nil, err
	}
	return models.ApplicationFromDocument(doc), nil
}

// Update sets a single client-writable field. Field names are validated
// before any network call; works must still be UNAVAILABLE.
func (r *Repository) Update(ctx context.Context, kind models.Kind, uid, field, value string) error {
	if !models.IsKnownField(kind, field) {
		return &InvalidFieldError{Kind: kind, Field: field}
	}
	if !models.IsWritable(kind, field) {
		return &ReadOnlyFieldError{Kind: kind, Field: field}
	}

	doc, err := r.Fetch(ctx, kind, uid)
	if err != nil {
		return err
	}

	if kind == models.KindWork {
		if err := newWorkMachine(uid, doc.Value("status")).checkEditable(); err != nil {
			return err
		}
	}

	doc.Set(field, value)
	r.log.Debugw("updating field", "kind", kind, "uid", uid, "field", field)
	return r.send(ctx, doc)
}

// Create sends a new entity and returns its uid, generating one when the
// document has none. Works are sent twice: the service may default the
// status of a new work away from UNAVAILABLE on the first save, and the
// second save forces it back.
func (r *Repository) Create(ctx context.Context, doc *models.Document) (string, error) {
	doc = doc.Clone()
	uid := doc.UID()
	if uid == "" {
		uid = uuid.New().String()
		doc.Set("uid", uid)
	}

	if err := r.send(ctx, doc); err != nil {
		return "", err
	}
	if doc.Kind == models.KindWork {
		if err := r.send(ctx, doc); err != nil {
			return "", err
		}
	}

	r.log.Debugw("created entity", "kind", doc.Kind, "uid", uid)
	return uid, nil
}

// Remove deletes an entity on the service.
func (r *Repository) Remove(ctx context.Context, uid string) error {
	if err := r.transport.RemoveEntity(ctx, uid); err != nil {
		return &TransportError{Op: "remove " + uid, Err: err}
	}
	r.log.Infow("removed entity", "uid", uid)
	return nil
}

// ListApplications returns the uids of all applications visible to the caller.
func (r *Repository) ListApplications(ctx context.Context) ([]string, error) {
	raw, err := r.transport.ListApplications(ctx)
	if err != nil {
		return nil, &TransportError{Op: "list applications", Err: err}
	}
	uids, err := r.codec.DecodeUIDList(raw)
	if err != nil {
		return nil, &TransportError{Op: "list applications", Err: err}
	}
	return uids, nil
}

// GetWorkParam reads one field of a work.
func (r *Repository) GetWorkParam(ctx context.Context, uid, field string) (string, error) {
	doc, err := r.Fetch(ctx, models.KindWork, uid)
	if err != nil {
		return "", err
	}
	v, ok := doc.Get(field)
	if !ok {
		return "", &InvalidFieldError{Kind: models.KindWork, Field: field}
	}
	return v, nil
}

// Status returns the current status of a work.
func (r *Repository) Status(ctx context.Context, uid string) (models.WorkStatus, error) {
	v, err := r.GetWorkParam(ctx, uid, "status")
	if err != nil {
		return "", err
	}
	return models.WorkStatus(v), nil
}

// UploadFile uploads the content of path as the data uid.
func (r *Repository) UploadFile(ctx context.Context, uid, path string) error {
	sum, size, err := fileDigest(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := r.transport.UploadBytes(ctx, uid, f, sum, size); err != nil {
		return &TransportError{Op: "upload " + uid, Err: err}
	}
	metrics.AddUploaded(size)
	r.log.Debugw("uploaded data", "uid", uid, "size", size, "md5", sum)
	return nil
}

// WaitAvailable polls a data entity until it becomes AVAILABLE.
func (r *Repository) WaitAvailable(ctx context.Context, uid string, interval, timeout time.Duration) (*models.Data, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		data, err := r.FetchData(ctx, uid)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrDataTimeout, uid)
			}
			return nil, err
		}
		if data.Status == models.DataAvailable {
			return data, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", ErrDataTimeout, uid)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Download writes the content behind uri to path.
func (r *Repository) Download(ctx context.Context, uri, path string) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640) // #nosec G304
	if err != nil {
		return 0, err
	}

	n, err := r.transport.DownloadBytes(ctx, uri, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return n, &TransportError{Op: "download " + uri, Err: err}
	}
	metrics.AddDownloaded(n)
	return n, nil
}

func (r *Repository) send(ctx context.Context, doc *models.Document) error {
	raw, err := r.codec.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", doc.Kind, doc.UID(), err)
	}
	op := "send " + string(doc.Kind) + " " + doc.UID()
	ack, err := r.transport.SendEntity(ctx, doc.Kind, raw)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if err := r.codec.CheckResult(ack); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}

func fileDigest(path string) (string, int64, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	h := md5.New() //nolint:gosec
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// uidFromURI returns the entity uid a service URI points to.
func uidFromURI(uri string) string {
	uri = strings.TrimRight(uri, "/")
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}
