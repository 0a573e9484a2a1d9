package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pandeptwidyaop/xwhep-remote/internal/metrics"
	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
	"github.com/pandeptwidyaop/xwhep-remote/internal/validation"
)

// Submitter creates works, attaches their parameters and releases them.
type Submitter struct {
	repo      *Repository
	registry  *Registry
	lifecycle *Lifecycle
	journal   *JournalService
	opts      Options
	log       *zap.SugaredLogger
}

// NewSubmitter creates a Submitter. journal may be nil.
func NewSubmitter(repo *Repository, registry *Registry, lifecycle *Lifecycle, journal *JournalService, opts Options, log *zap.SugaredLogger) *Submitter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Submitter{
		repo:      repo,
		registry:  registry,
		lifecycle: lifecycle,
		journal:   journal,
		opts:      opts.withDefaults(),
		log:       log.Named("submitter"),
	}
}

// Submit creates a work for req.App, sets its command line and optional
// stdin, and activates it. The first failure aborts the submission; remote
// entities created before it are left in place and the journal keeps their uids.
func (s *Submitter) Submit(ctx context.Context, req models.SubmitRequest) (workUID string, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordSubmission(req.App, err)
		metrics.ObserveOperation("submit", start, err)
	}()

	if err := validation.ValidateCommand(req.Cmdline); err != nil {
		return "", fmt.Errorf("cmdline: %w", err)
	}
	if err := validation.ValidateTag(req.Tag); err != nil {
		return "", fmt.Errorf("tag: %w", err)
	}

	appUID, err := s.registry.Resolve(ctx, req.App)
	if err != nil {
		return "", err
	}

	workUID, err = s.repo.Create(ctx, models.NewWorkDocument("", appUID, req.Tag))
	if err != nil {
		return "", err
	}
	s.log.Infow("work created", "uid", workUID, "app", req.App)
	s.record(&models.Submission{
		WorkUID: workUID,
		AppName: req.App,
		AppUID:  appUID,
		Cmdline: req.Cmdline,
		Tag:     req.Tag,
		Status:  models.WorkUnavailable,
	})
	defer func() {
		if err != nil {
			s.markFailed(workUID, err)
		}
	}()

	if err = s.lifecycle.SetParam(ctx, workUID, "cmdline", req.Cmdline); err != nil {
		return workUID, err
	}

	if req.Stdin != "" {
		if err = s.attachStdin(ctx, workUID, req.Stdin); err != nil {
			return workUID, err
		}
	}

	if err = s.lifecycle.Activate(ctx, workUID); err != nil {
		return workUID, err
	}
	if s.journal != nil {
		if jerr := s.journal.SetStatus(workUID, models.WorkPending, ""); jerr != nil {
			s.log.Warnw("failed to update journal", "uid", workUID, "error", jerr)
		}
	}

	return workUID, nil
}

// attachStdin uploads content as a new data and points the work stdinuri at it.
func (s *Submitter) attachStdin(ctx context.Context, workUID, content string) error {
	dataUID, err := s.repo.Create(ctx, models.NewStdinDataDocument(""))
	if err != nil {
		return err
	}
	if s.journal != nil {
		if jerr := s.journal.SetStdin(workUID, dataUID); jerr != nil {
			s.log.Warnw("failed to update journal", "uid", workUID, "error", jerr)
		}
	}

	staged, err := os.CreateTemp(s.opts.StagingDir, "stdin-*.txt")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(staged.Name()) }()

	if _, err := staged.WriteString(content); err != nil {
		_ = staged.Close()
		return err
	}
	if err := staged.Close(); err != nil {
		return err
	}

	if err := s.repo.UploadFile(ctx, dataUID, staged.Name()); err != nil {
		return err
	}
	data, err := s.repo.WaitAvailable(ctx, dataUID, s.opts.DataPollInterval, s.opts.DataWaitTimeout)
	if err != nil {
		return err
	}

	if err := s.lifecycle.SetParam(ctx, workUID, "stdinuri", data.URI); err != nil {
		return err
	}
	s.log.Debugw("stdin attached", "uid", workUID, "data", dataUID)
	return nil
}

func (s *Submitter) record(sub *models.Submission) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(sub); err != nil {
		s.log.Warnw("failed to record submission", "uid", sub.WorkUID, "error", err)
	}
}

func (s *Submitter) markFailed(workUID string, cause error) {
	s.log.Errorw("submission aborted", "uid", workUID, "error", cause)
	if s.journal == nil {
		return
	}
	if err := s.journal.SetStatus(workUID, models.WorkUnavailable, cause.Error()); err != nil {
		s.log.Warnw("failed to update journal", "uid", workUID, "error", err)
	}
}
