package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pandeptwidyaop/xwhep-remote/internal/metrics"
	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
)

// StatusObserver is told about every status a watcher polls.
type StatusObserver func(uid string, status models.WorkStatus)

// Watcher polls works until they reach a terminal status.
type Watcher struct {
	repo      *Repository
	lifecycle *Lifecycle
	interval  time.Duration
	log       *zap.SugaredLogger
}

// NewWatcher creates a Watcher polling every opts.PollInterval.
func NewWatcher(repo *Repository, lifecycle *Lifecycle, opts Options, log *zap.SugaredLogger) *Watcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Watcher{
		repo:      repo,
		lifecycle: lifecycle,
		interval:  opts.withDefaults().PollInterval,
		log:       log.Named("watcher"),
	}
}

// Wait blocks until the work is COMPLETED, returning its last document.
// It polls once right away and then on every tick. ERROR yields a
// WorkExecutionError; a failed poll or a cancelled ctx ends the wait at once.
func (w *Watcher) Wait(ctx context.Context, uid string, observe StatusObserver) (*models.Work, error) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var tracker *Tracker
	for {
		work, err := w.repo.FetchWork(ctx, uid)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		metrics.RecordPoll(string(work.Status))

		if tracker == nil {
			tracker = w.lifecycle.NewTracker(uid, work.Status)
		} else {
			tracker.Observe(ctx, work.Status)
		}
		if observe != nil {
			observe(uid, work.Status)
		}

		if work.Status.IsTerminal() {
			metrics.RecordFinished(string(work.Status))
			if work.Status == models.WorkError {
				w.log.Warnw("work failed", "uid", uid, "errormsg", work.ErrorMsg)
				return work, &WorkExecutionError{UID: uid, Status: work.Status, Message: work.ErrorMsg}
			}
			w.log.Infow("work completed", "uid", uid)
			return work, nil
		}

		w.log.Debugw("waiting for work", "uid", uid, "status", work.Status, "interval", w.interval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
