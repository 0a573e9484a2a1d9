package handlers

import (
	"context"

	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
	"github.com/pandeptwidyaop/xwhep-remote/internal/services"
)

// Orchestrator is the subset of *services.Orchestrator the API calls.
type Orchestrator interface {
	Submit(ctx context.Context, req models.SubmitRequest) (string, error)
	SubmitAndWait(ctx context.Context, req models.SubmitRequest) (string, *services.Result, error)
	AwaitCompletion(ctx context.Context, uid string, observe services.StatusObserver) (*services.Result, error)
	Result(ctx context.Context, uid string) (*services.Result, error)
	Work(ctx context.Context, uid string) (*models.Document, error)
	Remove(ctx context.Context, uid string) error
	Register(ctx context.Context, name, osName, cpu, source string) (string, error)
	Applications(ctx context.Context) ([]*models.Application, error)
	Submission(uid string) (*models.Submission, error)
	Submissions(limit int) ([]models.Submission, error)
}

var _ Orchestrator = (*services.Orchestrator)(nil)
