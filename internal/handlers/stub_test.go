package handlers_test

import (
	"context"
	"errors"

	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
	"github.com/pandeptwidyaop/xwhep-remote/internal/services"
)

var errNotStubbed = errors.New("not stubbed")

type stubOrchestrator struct {
	submit        func(req models.SubmitRequest) (string, error)
	submitAndWait func(req models.SubmitRequest) (string, *services.Result, error)
	await         func(ctx context.Context, uid string, observe services.StatusObserver) (*services.Result, error)
	result        func(uid string) (*services.Result, error)
	work          func(uid string) (*models.Document, error)
	remove        func(uid string) error
	register      func(name, osName, cpu, source string) (string, error)
	apps          []*models.Application
	appsErr       error
	submissions   []models.Submission
	journal       map[string]*models.Submission
	lastLimit     int
}

func (s *stubOrchestrator) Submit(_ context.Context, req models.SubmitRequest) (string, error) {
	if s.submit == nil {
		return "", errNotStubbed
	}
	return s.submit(req)
}

func (s *stubOrchestrator) SubmitAndWait(_ context.Context, req models.SubmitRequest) (string, *services.Result, error) {
	if s.submitAndWait == nil {
		return "", nil, errNotStubbed
	}
	return s.submitAndWait(req)
}

func (s *stubOrchestrator) AwaitCompletion(ctx context.Context, uid string, observe services.StatusObserver) (*services.Result, error) {
	if s.await == nil {
		return nil, errNotStubbed
	}
	return s.await(ctx, uid, observe)
}

func (s *stubOrchestrator) Result(_ context.Context, uid string) (*services.Result, error) {
	if s.result == nil {
		return nil, errNotStubbed
	}
	return s.result(uid)
}

func (s *stubOrchestrator) Work(_ context.Context, uid string) (*models.Document, error) {
	if s.work == nil {
		return nil, errNotStubbed
	}
	return s.work(uid)
}

func (s *stubOrchestrator) Remove(_ context.Context, uid string) error {
	if s.remove == nil {
		return errNotStubbed
	}
	return s.remove(uid)
}

func (s *stubOrchestrator) Register(_ context.Context, name, osName, cpu, source string) (string, error) {
	if s.register == nil {
		return "", errNotStubbed
	}
	return s.register(name, osName, cpu, source)
}

func (s *stubOrchestrator) Applications(context.Context) ([]*models.Application, error) {
	return s.apps, s.appsErr
}

func (s *stubOrchestrator) Submission(uid string) (*models.Submission, error) {
	if sub, ok := s.journal[uid]; ok {
		return sub, nil
	}
	return nil, services.ErrSubmissionNotFound
}

func (s *stubOrchestrator) Submissions(limit int) ([]models.Submission, error) {
	s.lastLimit = limit
	return s.submissions, nil
}
