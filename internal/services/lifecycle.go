package services

import (
	"context"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
)

const (
	eventEdit     = "edit"
	eventActivate = "activate"
	eventStart    = "start"
	eventComplete = "complete"
	eventFail     = "fail"
)

// workMachine mirrors the status of one work. Only activate is ever issued
// by this client; the other events replay transitions observed on the server.
type workMachine struct {
	uid string
	fsm *fsm.FSM
}

func newWorkMachine(uid, status string) *workMachine {
	unavailable := string(models.WorkUnavailable)
	pending := string(models.WorkPending)
	running := string(models.WorkRunning)

	return &workMachine{
		uid: uid,
		fsm: fsm.NewFSM(
			status,
			fsm.Events{
				{Name: eventEdit, Src: []string{unavailable}, Dst: unavailable},
				{Name: eventActivate, Src: []string{unavailable}, Dst: pending},
				{Name: eventStart, Src: []string{pending}, Dst: running},
				{Name: eventComplete, Src: []string{pending, running}, Dst: string(models.WorkCompleted)},
				{Name: eventFail, Src: []string{pending, running}, Dst: string(models.WorkError)},
			},
			fsm.Callbacks{},
		),
	}
}

func (m *workMachine) current() models.WorkStatus {
	return models.WorkStatus(m.fsm.Current())
}

func (m *workMachine) stateError() error {
	return &InvalidStateError{Kind: models.KindWork, UID: m.uid, Status: m.fsm.Current()}
}

// checkEditable fails unless the work fields may still be changed.
func (m *workMachine) checkEditable() error {
	if !m.fsm.Can(eventEdit) {
		return m.stateError()
	}
	return nil
}

func (m *workMachine) activate(ctx context.Context) error {
	if err := m.fsm.Event(ctx, eventActivate); err != nil {
		return m.stateError()
	}
	return nil
}

// observe moves the machine to a status reported by the server. It returns
// false when the move is not a legal transition; the machine follows the
// server anyway.
func (m *workMachine) observe(ctx context.Context, next models.WorkStatus) bool {
	if next == m.current() {
		return true
	}

	var event string
	switch next {
	case models.WorkRunning:
		event = eventStart
	case models.WorkCompleted:
		event = eventComplete
	case models.WorkError:
		event = eventFail
	}

	if event != "" && m.fsm.Can(event) {
		if err := m.fsm.Event(ctx, event); err == nil {
			return true
		}
	}
	m.fsm.SetState(string(next))
	return false
}

// Lifecycle guards field changes and status transitions of works.
type Lifecycle struct {
	repo *Repository
	log  *zap.SugaredLogger
}

// NewLifecycle creates a Lifecycle over repo.
func NewLifecycle(repo *Repository, log *zap.SugaredLogger) *Lifecycle {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Lifecycle{repo: repo, log: log.Named("lifecycle")}
}

// SetParam sets a client-writable work field while the work is UNAVAILABLE.
func (l *Lifecycle) SetParam(ctx context.Context, uid, field, value string) error {
	return l.repo.Update(ctx, models.KindWork, uid, field, value)
}

// Activate releases an UNAVAILABLE work for scheduling. The status is read
// again right before the change so a stale view cannot re-activate a work.
func (l *Lifecycle) Activate(ctx context.Context, uid string) error {
	doc, err := l.repo.Fetch(ctx, models.KindWork, uid)
	if err != nil {
		return err
	}

	m := newWorkMachine(uid, doc.Value("status"))
	if err := m.activate(ctx); err != nil {
		return err
	}

	doc.Set("status", string(m.current()))
	if err := l.repo.send(ctx, doc); err != nil {
		return err
	}
	l.log.Infow("work activated", "uid", uid)
	return nil
}

// Tracker follows the observed status sequence of one work.
type Tracker struct {
	machine *workMachine
	log     *zap.SugaredLogger
}

// NewTracker starts tracking a work whose last known status is status.
func (l *Lifecycle) NewTracker(uid string, status models.WorkStatus) *Tracker {
	return &Tracker{machine: newWorkMachine(uid, string(status)), log: l.log}
}

// Observe records a polled status, warning on jumps the lifecycle does not allow.
func (t *Tracker) Observe(ctx context.Context, status models.WorkStatus) {
	prev := t.machine.current()
	if !t.machine.observe(ctx, status) {
		t.log.Warnw("unexpected work transition", "uid", t.machine.uid, "from", prev, "to", status)
	}
}

// Status returns the last observed status.
func (t *Tracker) Status() models.WorkStatus {
	return t.machine.current()
}
