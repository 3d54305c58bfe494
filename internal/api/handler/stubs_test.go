package handler

import (
	"context"

	"github.com/fieldops/job-dispatch/internal/core/domain"
	"github.com/fieldops/job-dispatch/internal/core/ports"
)

type stubDirectory struct {
	registerFn func(ctx context.Context, in ports.RegisterInput, caller *domain.Claims) (*domain.Identity, error)
	loginFn    func(ctx context.Context, username, password string) (string, error)
	listFn     func(ctx context.Context, caller *domain.Claims) ([]*domain.Identity, error)
	deleteFn   func(ctx context.Context, id int64, caller *domain.Claims) error
}

func (s *stubDirectory) Register(ctx context.Context, in ports.RegisterInput, caller *domain.Claims) (*domain.Identity, error) {
	return s.registerFn(ctx, in, caller)
}

func (s *stubDirectory) Login(ctx context.Context, username, password string) (string, error) {
	return s.loginFn(ctx, username, password)
}

func (s *stubDirectory) List(ctx context.Context, caller *domain.Claims) ([]*domain.Identity, error) {
	return s.listFn(ctx, caller)
}

func (s *stubDirectory) Delete(ctx context.Context, id int64, caller *domain.Claims) error {
	return s.deleteFn(ctx, id, caller)
}

type stubJobs struct {
	createFn       func(ctx context.Context, in ports.CreateJobInput, caller *domain.Claims) (*domain.Job, error)
	listAllFn      func(ctx context.Context, caller *domain.Claims) ([]*domain.Job, error)
	listOwnFn      func(ctx context.Context, caller *domain.Claims) ([]*domain.Job, error)
	updateStatusFn func(ctx context.Context, jobID int64, status string, caller *domain.Claims) (domain.JobStatus, error)
	assignFn       func(ctx context.Context, jobID, technicianID int64, caller *domain.Claims) error
	deleteFn       func(ctx context.Context, jobID int64, caller *domain.Claims) error
	eventsFn       func(ctx context.Context, jobID int64, caller *domain.Claims) ([]*domain.AuditEvent, error)
}

func (s *stubJobs) Create(ctx context.Context, in ports.CreateJobInput, caller *domain.Claims) (*domain.Job, error) {
	return s.createFn(ctx, in, caller)
}

func (s *stubJobs) ListAll(ctx context.Context, caller *domain.Claims) ([]*domain.Job, error) {
	return s.listAllFn(ctx, caller)
}

func (s *stubJobs) ListOwn(ctx context.Context, caller *domain.Claims) ([]*domain.Job, error) {
	return s.listOwnFn(ctx, caller)
}

func (s *stubJobs) UpdateStatus(ctx context.Context, jobID int64, status string, caller *domain.Claims) (domain.JobStatus, error) {
	return s.updateStatusFn(ctx, jobID, status, caller)
}

func (s *stubJobs) AssignTechnician(ctx context.Context, jobID, technicianID int64, caller *domain.Claims) error {
	return s.assignFn(ctx, jobID, technicianID, caller)
}

func (s *stubJobs) Delete(ctx context.Context, jobID int64, caller *domain.Claims) error {
	return s.deleteFn(ctx, jobID, caller)
}

func (s *stubJobs) Events(ctx context.Context, jobID int64, caller *domain.Claims) ([]*domain.AuditEvent, error) {
	return s.eventsFn(ctx, jobID, caller)
}
