package services

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pandeptwidyaop/xwhep-remote/internal/cache"
	"github.com/pandeptwidyaop/xwhep-remote/internal/metrics"
	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
)

// Dependencies are the collaborators an Orchestrator is built from.
type Dependencies struct {
	Transport Transport
	Codec     Codec
	Extractor Extractor
	// Store defaults to a fresh in-memory application cache.
	Store cache.Store
	// Fetcher enables http(s) binary sources on Register. Optional.
	Fetcher URLFetcher
	// Journal records submissions. Optional.
	Journal *JournalService
}

// Orchestrator wires the services into the submit, wait and fetch flows.
type Orchestrator struct {
	repo      *Repository
	registry  *Registry
	lifecycle *Lifecycle
	submitter *Submitter
	watcher   *Watcher
	results   *Results
	journal   *JournalService
	log       *zap.SugaredLogger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Dependencies, opts Options, log *zap.SugaredLogger) *Orchestrator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if deps.Store == nil {
		deps.Store = cache.NewApplications()
	}

	repo := NewRepository(deps.Transport, deps.Codec, log)
	lifecycle := NewLifecycle(repo, log)
	registry := NewRegistry(repo, deps.Store, deps.Fetcher, opts, log)

	return &Orchestrator{
		repo:      repo,
		registry:  registry,
		lifecycle: lifecycle,
		submitter: NewSubmitter(repo, registry, lifecycle, deps.Journal, opts, log),
		watcher:   NewWatcher(repo, lifecycle, opts, log),
		results:   NewResults(repo, deps.Extractor, opts, log),
		journal:   deps.Journal,
		log:       log.Named("orchestrator"),
	}
}

// Submit creates and activates a work.
func (o *Orchestrator) Submit(ctx context.Context, req models.SubmitRequest) (string, error) {
	return o.submitter.Submit(ctx, req)
}

// AwaitCompletion waits for the work to complete and retrieves its result.
// The result is nil when the work produced none.
func (o *Orchestrator) AwaitCompletion(ctx context.Context, uid string, observe StatusObserver) (*Result, error) {
	start := time.Now()

	work, err := o.watcher.Wait(ctx, uid, observe)
	if err != nil {
		var execErr *WorkExecutionError
		if errors.As(err, &execErr) {
			o.journalStatus(uid, execErr.Status, execErr.Error())
		}
		metrics.ObserveOperation("await", start, err)
		return nil, err
	}
	o.journalStatus(uid, work.Status, "")

	res, err := o.results.Fetch(ctx, work)
	metrics.ObserveOperation("await", start, err)
	if err != nil {
		return nil, err
	}
	if res != nil && o.journal != nil {
		if jerr := o.journal.SetResult(uid, res.Path); jerr != nil && !errors.Is(jerr, ErrSubmissionNotFound) {
			o.log.Warnw("failed to update journal", "uid", uid, "error", jerr)
		}
	}
	return res, nil
}

// SubmitAndWait submits a work and waits for its result.
func (o *Orchestrator) SubmitAndWait(ctx context.Context, req models.SubmitRequest) (string, *Result, error) {
	uid, err := o.Submit(ctx, req)
	if err != nil {
		return uid, nil, err
	}
	res, err := o.AwaitCompletion(ctx, uid, nil)
	return uid, res, err
}

// SubmitAndWaitStdout submits a work, waits for it and returns its output text.
func (o *Orchestrator) SubmitAndWaitStdout(ctx context.Context, req models.SubmitRequest) (string, string, error) {
	uid, res, err := o.SubmitAndWait(ctx, req)
	if err != nil {
		return uid, "", err
	}
	out, err := readResult(res)
	return uid, out, err
}

// Result retrieves the result of a work that already completed.
func (o *Orchestrator) Result(ctx context.Context, uid string) (*Result, error) {
	work, err := o.repo.FetchWork(ctx, uid)
	if err != nil {
		return nil, err
	}
	return o.results.Fetch(ctx, work)
}

// Stdout returns the output text of a completed work, or "" without result.
func (o *Orchestrator) Stdout(ctx context.Context, uid string) (string, error) {
	res, err := o.Result(ctx, uid)
	if err != nil {
		return "", err
	}
	return readResult(res)
}

// Work returns the current document of a work.
func (o *Orchestrator) Work(ctx context.Context, uid string) (*models.Document, error) {
	return o.repo.Fetch(ctx, models.KindWork, uid)
}

// Status returns the current status of a work.
func (o *Orchestrator) Status(ctx context.Context, uid string) (models.WorkStatus, error) {
	return o.repo.Status(ctx, uid)
}

// GetWorkParam reads one field of a work.
func (o *Orchestrator) GetWorkParam(ctx context.Context, uid, field string) (string, error) {
	return o.repo.GetWorkParam(ctx, uid, field)
}

// SetWorkParam sets a client-writable field of an UNAVAILABLE work.
func (o *Orchestrator) SetWorkParam(ctx context.Context, uid, field, value string) error {
	return o.lifecycle.SetParam(ctx, uid, field, value)
}

// Remove deletes an entity on the service, then forgets it as a cached
// application and as a submission.
func (o *Orchestrator) Remove(ctx context.Context, uid string) error {
	if err := o.repo.Remove(ctx, uid); err != nil {
		return err
	}
	o.registry.Forget(uid)
	if o.journal != nil {
		if err := o.journal.Delete(uid); err != nil && !errors.Is(err, ErrSubmissionNotFound) {
			o.log.Warnw("failed to update journal", "uid", uid, "error", err)
		}
	}
	return nil
}

// Register registers an application binary for one platform.
func (o *Orchestrator) Register(ctx context.Context, name, osName, cpu, source string) (string, error) {
	return o.registry.Register(ctx, name, osName, cpu, source)
}

// Applications lists the applications known to the service.
func (o *Orchestrator) Applications(ctx context.Context) ([]*models.Application, error) {
	return o.registry.List(ctx)
}

// Submission returns the journal entry of a work submitted by this client.
func (o *Orchestrator) Submission(uid string) (*models.Submission, error) {
	if o.journal == nil {
		return nil, ErrSubmissionNotFound
	}
	return o.journal.Get(uid)
}

// Submissions lists the journal entries, newest first.
func (o *Orchestrator) Submissions(limit int) ([]models.Submission, error) {
	if o.journal == nil {
		return nil, nil
	}
	return o.journal.List(limit)
}

func (o *Orchestrator) journalStatus(uid string, status models.WorkStatus, msg string) {
	if o.journal == nil {
		return
	}
	if err := o.journal.SetStatus(uid, status, msg); err != nil {
		o.log.Warnw("failed to update journal", "uid", uid, "error", err)
	}
}

func readResult(res *Result) (string, error) {
	if res == nil {
		return "", nil
	}
	b, err := os.ReadFile(res.Path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
