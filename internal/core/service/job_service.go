package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldops/job-dispatch/internal/core/domain"
	"github.com/fieldops/job-dispatch/internal/core/policy"
	"github.com/fieldops/job-dispatch/internal/core/ports"
)

const auditFlushTimeout = 2 * time.Second

// JobService owns job creation, status changes and technician assignment.
type JobService struct {
	jobs       ports.JobRepository
	identities ports.IdentityRepository
	idem       ports.IdempotencyStore
	audit      ports.AuditRecorder
	auditRepo  ports.AuditRepository
	log        zerolog.Logger
	now        func() time.Time
}

func NewJobService(
	jobs ports.JobRepository,
	identities ports.IdentityRepository,
	idem ports.IdempotencyStore,
	audit ports.AuditRecorder,
	auditRepo ports.AuditRepository,
	log zerolog.Logger,
) *JobService {
	return &JobService{
		jobs:       jobs,
		identities: identities,
		idem:       idem,
		audit:      audit,
		auditRepo:  auditRepo,
		log:        log,
		now:        time.Now,
	}
}

// Create stores a new SCHEDULED job. A caller whose only job-creating role is
// TECHNICIAN always gets the job assigned to themselves, whatever technician
// the input names.
func (s *JobService) Create(ctx context.Context, in ports.CreateJobInput, caller *domain.Claims) (*domain.Job, error) {
	if err := policy.Authorize(caller, policy.ActionCreateJob, policy.Ownership{}); err != nil {
		return nil, err
	}
	if in.CustomerID == nil {
		return nil, domain.NewValidationError("customerId is required")
	}
	if strings.TrimSpace(in.ServiceType) == "" {
		return nil, domain.NewValidationError("serviceType is required")
	}

	idemKey := ""
	if in.IdempotencyKey != "" && s.idem != nil {
		idemKey = scopedKey(caller, in.IdempotencyKey)
		if job, ok := s.replay(ctx, idemKey, caller); ok {
			return job, nil
		}
	}

	job := &domain.Job{
		CustomerID:  *in.CustomerID,
		ServiceType: in.ServiceType,
		Status:      domain.JobScheduled,
		CreatedAt:   s.now().UTC(),
	}
	switch {
	case policy.TechnicianSelfScoped(caller.Roles):
		self := caller.SubjectID
		job.TechnicianID = &self
	case in.TechnicianID != nil:
		if err := s.checkTechnician(ctx, *in.TechnicianID); err != nil {
			return nil, err
		}
		tech := *in.TechnicianID
		job.TechnicianID = &tech
	}

	created, err := s.jobs.Create(ctx, job)
	if err != nil {
		return nil, err
	}

	if idemKey != "" {
		if winner, lost := s.claimKey(ctx, idemKey, created, caller); lost {
			return winner, nil
		}
	}

	s.record(created.ID, domain.AuditJobCreated, caller, created.ServiceType)
	s.log.Info().
		Int64("job_id", created.ID).
		Int64("customer_id", created.CustomerID).
		Int64("caller_id", caller.SubjectID).
		Msg("job created")
	return created, nil
}

// scopedKey namespaces a client idempotency key by caller so one caller can
// never replay a job created by another.
func scopedKey(caller *domain.Claims, key string) string {
	return strconv.FormatInt(caller.SubjectID, 10) + ":" + key
}

// replay returns the job previously created under key, if it still exists and
// the caller may receive it. A self-scoped technician only ever gets a job
// assigned to themselves.
func (s *JobService) replay(ctx context.Context, key string, caller *domain.Claims) (*domain.Job, bool) {
	jobID, ok, err := s.idem.Lookup(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency lookup failed, creating anyway")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, false
	}
	if policy.TechnicianSelfScoped(caller.Roles) &&
		(job.TechnicianID == nil || *job.TechnicianID != caller.SubjectID) {
		s.log.Warn().Str("idempotency_key", key).Int64("job_id", jobID).Msg("idempotent replay skipped: job not assigned to caller")
		return nil, false
	}
	s.log.Info().Str("idempotency_key", key).Int64("job_id", jobID).Msg("idempotent replay")
	return job, true
}

// claimKey binds key to created. When a concurrent request bound the key
// first, created is discarded and the winner's job returned.
func (s *JobService) claimKey(ctx context.Context, key string, created *domain.Job, caller *domain.Claims) (*domain.Job, bool) {
	err := s.idem.Remember(ctx, key, created.ID)
	if err == nil {
		return nil, false
	}
	if !errors.Is(err, domain.ErrIdempotencyConflict) {
		s.log.Warn().Err(err).Str("idempotency_key", key).Msg("failed to store idempotency key")
		return nil, false
	}
	winner, ok := s.replay(ctx, key, caller)
	if !ok {
		return nil, false
	}
	if err := s.jobs.Delete(ctx, created.ID); err != nil {
		s.log.Warn().Err(err).Int64("job_id", created.ID).Msg("failed to discard duplicate job")
	}
	return winner, true
}

func (s *JobService) ListAll(ctx context.Context, caller *domain.Claims) ([]*domain.Job, error) {
	if err := policy.Authorize(caller, policy.ActionListAllJobs, policy.Ownership{}); err != nil {
		return nil, err
	}
	return s.jobs.List(ctx)
}

// ListOwn returns the jobs assigned to a technician caller, or the jobs
// requested by a customer caller.
func (s *JobService) ListOwn(ctx context.Context, caller *domain.Claims) ([]*domain.Job, error) {
	if err := policy.Authorize(caller, policy.ActionListOwnJobs, policy.Ownership{}); err != nil {
		return nil, err
	}
	switch policy.OwnJobsScope(caller.Roles) {
	case policy.ScopeTechnician:
		return s.jobs.FindByTechnician(ctx, caller.SubjectID)
	case policy.ScopeCustomer:
		return s.jobs.FindByCustomer(ctx, caller.SubjectID)
	default:
		return nil, domain.ErrForbidden
	}
}

// UpdateStatus overwrites the job status. Any status may follow any other.
func (s *JobService) UpdateStatus(ctx context.Context, jobID int64, status string, caller *domain.Claims) (domain.JobStatus, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return "", err
	}
	own := policy.Ownership{JobTechnicianID: job.TechnicianID}
	if err := policy.Authorize(caller, policy.ActionUpdateJobStatus, own); err != nil {
		return "", err
	}

	next, err := domain.ParseJobStatus(status)
	if err != nil {
		return "", err
	}
	if err := s.jobs.SetStatus(ctx, jobID, next); err != nil {
		return "", err
	}

	s.record(jobID, domain.AuditStatusChanged, caller, string(job.Status)+" -> "+string(next))
	s.log.Info().
		Int64("job_id", jobID).
		Str("from", string(job.Status)).
		Str("to", string(next)).
		Int64("caller_id", caller.SubjectID).
		Msg("job status updated")
	return next, nil
}

// AssignTechnician sets the job's technician after checking that the target
// identity holds the TECHNICIAN role. An invalid technician leaves the job
// untouched.
func (s *JobService) AssignTechnician(ctx context.Context, jobID, technicianID int64, caller *domain.Claims) error {
	if err := policy.Authorize(caller, policy.ActionAssignTechnician, policy.Ownership{}); err != nil {
		return err
	}
	if err := s.checkTechnician(ctx, technicianID); err != nil {
		return err
	}
	if err := s.jobs.SetTechnician(ctx, jobID, technicianID); err != nil {
		return err
	}

	s.record(jobID, domain.AuditTechnicianAssigned, caller, strconv.FormatInt(technicianID, 10))
	s.log.Info().
		Int64("job_id", jobID).
		Int64("technician_id", technicianID).
		Int64("caller_id", caller.SubjectID).
		Msg("technician assigned")
	return nil
}

func (s *JobService) checkTechnician(ctx context.Context, technicianID int64) error {
	tech, err := s.identities.FindByID(ctx, technicianID)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return domain.ErrInvalidTechnician
	}
	if err != nil {
		return err
	}
	if !tech.Roles.Has(domain.RoleTechnician) {
		return domain.ErrInvalidTechnician
	}
	return nil
}

func (s *JobService) Delete(ctx context.Context, jobID int64, caller *domain.Claims) error {
	if err := policy.Authorize(caller, policy.ActionDeleteJob, policy.Ownership{}); err != nil {
		return err
	}
	if err := s.jobs.Delete(ctx, jobID); err != nil {
		return err
	}
	s.record(jobID, domain.AuditJobDeleted, caller, "")
	s.log.Info().Int64("job_id", jobID).Int64("caller_id", caller.SubjectID).Msg("job deleted")
	return nil
}

// Events returns the audit trail of a job, including jobs since deleted.
func (s *JobService) Events(ctx context.Context, jobID int64, caller *domain.Claims) ([]*domain.AuditEvent, error) {
	if err := policy.Authorize(caller, policy.ActionViewJobEvents, policy.Ownership{}); err != nil {
		return nil, err
	}
	s.flushAudit(ctx, jobID)

	events, err := s.auditRepo.EventsForJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		if _, err := s.jobs.FindByID(ctx, jobID); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// flushAudit waits, bounded by auditFlushTimeout, for the job's queued audit
// events so a read right after a mutation sees it.
func (s *JobService) flushAudit(ctx context.Context, jobID int64) {
	f, ok := s.audit.(ports.AuditFlusher)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, auditFlushTimeout)
	defer cancel()
	if err := f.Flush(ctx, jobID); err != nil {
		s.log.Warn().Err(err).Int64("job_id", jobID).Msg("audit flush incomplete, serving persisted events")
	}
}

func (s *JobService) record(jobID int64, kind domain.AuditKind, caller *domain.Claims, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(&domain.AuditEvent{
		ID:      uuid.NewString(),
		JobID:   jobID,
		Kind:    kind,
		ActorID: caller.SubjectID,
		Detail:  detail,
		At:      s.now().UTC(),
	})
}
