package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/job-dispatch/internal/core/domain"
	"github.com/fieldops/job-dispatch/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Helper: a service over a directory seeded with admin(1), technician(2),
// customer(3) and a second technician(4).
// ---------------------------------------------------------------------------

type jobFixture struct {
	svc   *JobService
	jobs  *stubJobRepo
	idem  *stubIdem
	audit *stubAudit
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	ids := newStubIdentityRepo()
	ctx := context.Background()
	for _, u := range []struct {
		name string
		role domain.Role
	}{
		{"admin", domain.RoleAdmin},
		{"tech", domain.RoleTechnician},
		{"cust", domain.RoleCustomer},
		{"tech2", domain.RoleTechnician},
	} {
		if _, err := ids.Create(ctx, &domain.Identity{Username: u.name, Roles: domain.NewRoleSet(u.role)}); err != nil {
			t.Fatalf("seed %s: %v", u.name, err)
		}
	}

	f := &jobFixture{jobs: newStubJobRepo(), idem: newStubIdem(), audit: &stubAudit{}}
	f.svc = NewJobService(f.jobs, ids, f.idem, f.audit, f.audit, zerolog.Nop())
	f.svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return f
}

var (
	adminCaller = claimsFor(1, domain.RoleAdmin)
	techCaller  = claimsFor(2, domain.RoleTechnician)
	custCaller  = claimsFor(3, domain.RoleCustomer)
	schedCaller = claimsFor(9, domain.RoleScheduler)
)

func TestJobService_Create(t *testing.T) {
	f := newJobFixture(t)

	job, err := f.svc.Create(context.Background(), ports.CreateJobInput{CustomerID: ptr(5), ServiceType: "AC Repair"}, adminCaller)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if job.ID != 1 || job.CustomerID != 5 || job.Status != domain.JobScheduled || job.TechnicianID != nil {
		t.Fatalf("unexpected job: %+v", job)
	}
	if !job.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected createdAt: %s", job.CreatedAt)
	}
	if len(f.audit.events) != 1 || f.audit.events[0].Kind != domain.AuditJobCreated {
		t.Fatalf("expected job_created audit event, got %+v", f.audit.events)
	}
}

func TestJobService_Create_Validation(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, ports.CreateJobInput{ServiceType: "AC"}, adminCaller); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for missing customer, got %v", err)
	}
	if _, err := f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "  "}, adminCaller); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for blank service type, got %v", err)
	}
	if len(f.jobs.byID) != 0 {
		t.Fatalf("no job should be stored")
	}
}

func TestJobService_Create_Forbidden(t *testing.T) {
	f := newJobFixture(t)
	_, err := f.svc.Create(context.Background(), ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC"}, custCaller)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestJobService_Create_TechnicianSelfScoped(t *testing.T) {
	f := newJobFixture(t)

	for _, supplied := range []*int64{nil, ptr(4), ptr(1)} {
		job, err := f.svc.Create(context.Background(), ports.CreateJobInput{
			CustomerID: ptr(3), ServiceType: "Boiler", TechnicianID: supplied,
		}, techCaller)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if !job.AssignedTo(2) {
			t.Fatalf("technician job must be pinned to caller, got %v", job.TechnicianID)
		}
	}
}

func TestJobService_Create_SchedulerMayNameTechnician(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	job, err := f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC", TechnicianID: ptr(4)}, schedCaller)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !job.AssignedTo(4) {
		t.Fatalf("expected technician 4, got %v", job.TechnicianID)
	}

	_, err = f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC", TechnicianID: ptr(3)}, schedCaller)
	if !errors.Is(err, domain.ErrInvalidTechnician) {
		t.Fatalf("expected ErrInvalidTechnician, got %v", err)
	}
}

func TestJobService_Create_IdempotentReplay(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	in := ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC", IdempotencyKey: "req-1"}

	first, err := f.svc.Create(ctx, in, adminCaller)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := f.svc.Create(ctx, in, adminCaller)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if first.ID != second.ID || len(f.jobs.byID) != 1 {
		t.Fatalf("replay must return the original job, got %d and %d", first.ID, second.ID)
	}
}

func TestJobService_Create_IdempotencyKeyScopedToCaller(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	adminJob, err := f.svc.Create(ctx, ports.CreateJobInput{
		CustomerID: ptr(3), ServiceType: "AC", TechnicianID: ptr(4), IdempotencyKey: "k1",
	}, adminCaller)
	if err != nil {
		t.Fatalf("admin create failed: %v", err)
	}

	techJob, err := f.svc.Create(ctx, ports.CreateJobInput{
		CustomerID: ptr(3), ServiceType: "Plumbing", IdempotencyKey: "k1",
	}, techCaller)
	if err != nil {
		t.Fatalf("technician create failed: %v", err)
	}
	if techJob.ID == adminJob.ID {
		t.Fatalf("technician must not replay the admin's job %d", adminJob.ID)
	}
	if !techJob.AssignedTo(2) || techJob.ServiceType != "Plumbing" {
		t.Fatalf("expected a new job pinned to technician 2, got %+v", techJob)
	}
	if len(f.jobs.byID) != 2 {
		t.Fatalf("expected 2 stored jobs, got %d", len(f.jobs.byID))
	}

	again, err := f.svc.Create(ctx, ports.CreateJobInput{
		CustomerID: ptr(3), ServiceType: "Plumbing", IdempotencyKey: "k1",
	}, techCaller)
	if err != nil {
		t.Fatalf("technician replay failed: %v", err)
	}
	if again.ID != techJob.ID {
		t.Fatalf("technician replay must return job %d, got %d", techJob.ID, again.ID)
	}
}

func TestJobService_Create_ReplaySkipsJobNotAssignedToTechnician(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC", IdempotencyKey: "k2"}, techCaller)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	// The job is reassigned after it was created under the key.
	if err := f.svc.AssignTechnician(ctx, first.ID, 4, adminCaller); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	got, err := f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC", IdempotencyKey: "k2"}, techCaller)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !got.AssignedTo(2) {
		t.Fatalf("technician caller must receive a job assigned to themselves, got %v", got.TechnicianID)
	}
}

func TestJobService_Create_IdempotencyStoreDown(t *testing.T) {
	f := newJobFixture(t)
	f.idem.lookupErr = errors.New("redis down")

	if _, err := f.svc.Create(context.Background(), ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC", IdempotencyKey: "k"}, adminCaller); err != nil {
		t.Fatalf("create must proceed when the idempotency store fails: %v", err)
	}
}

func TestJobService_ListAll(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	_, _ = f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC"}, adminCaller)

	if _, err := f.svc.ListAll(ctx, techCaller); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("technician must not list all jobs, got %v", err)
	}
	jobs, err := f.svc.ListAll(ctx, schedCaller)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("unexpected list: %v %v", jobs, err)
	}
}

func TestJobService_ListOwn(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	_, _ = f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC", TechnicianID: ptr(2)}, adminCaller)
	_, _ = f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "Heat", TechnicianID: ptr(4)}, adminCaller)
	_, _ = f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(8), ServiceType: "Roof"}, adminCaller)

	techJobs, err := f.svc.ListOwn(ctx, techCaller)
	if err != nil || len(techJobs) != 1 || techJobs[0].ServiceType != "AC" {
		t.Fatalf("unexpected technician jobs: %v %v", techJobs, err)
	}
	custJobs, err := f.svc.ListOwn(ctx, custCaller)
	if err != nil || len(custJobs) != 2 {
		t.Fatalf("unexpected customer jobs: %v %v", custJobs, err)
	}
	if _, err := f.svc.ListOwn(ctx, adminCaller); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("admin has no own-jobs view, got %v", err)
	}
}

func TestJobService_UpdateStatus(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	job, _ := f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC", TechnicianID: ptr(2)}, adminCaller)

	status, err := f.svc.UpdateStatus(ctx, job.ID, "in_progress", techCaller)
	if err != nil || status != domain.JobInProgress {
		t.Fatalf("assigned technician update failed: %s %v", status, err)
	}

	other := claimsFor(4, domain.RoleTechnician)
	if _, err := f.svc.UpdateStatus(ctx, job.ID, "COMPLETED", other); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("unassigned technician must be denied, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, job.ID, "COMPLETED", custCaller); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("customer must be denied, got %v", err)
	}

	// No transition graph: backwards and self transitions are accepted.
	for _, next := range []string{"COMPLETED", "SCHEDULED", "SCHEDULED", "cancelled"} {
		if _, err := f.svc.UpdateStatus(ctx, job.ID, next, schedCaller); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}
	if f.jobs.byID[job.ID].Status != domain.JobCancelled {
		t.Fatalf("unexpected final status %s", f.jobs.byID[job.ID].Status)
	}
}

func TestJobService_UpdateStatus_Errors(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	job, _ := f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC"}, adminCaller)

	if _, err := f.svc.UpdateStatus(ctx, 404, "COMPLETED", adminCaller); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, job.ID, "", adminCaller); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty status, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, job.ID, "FINISHED", adminCaller); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
	if f.jobs.byID[job.ID].Status != domain.JobScheduled {
		t.Fatalf("status must be unchanged after rejected updates")
	}
}

func TestJobService_AssignTechnician(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	job, _ := f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC"}, adminCaller)

	if err := f.svc.AssignTechnician(ctx, job.ID, 2, schedCaller); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	// Repeating the same assignment is a no-op state-wise.
	if err := f.svc.AssignTechnician(ctx, job.ID, 2, schedCaller); err != nil {
		t.Fatalf("repeat assign failed: %v", err)
	}
	if !f.jobs.byID[job.ID].AssignedTo(2) {
		t.Fatalf("expected technician 2")
	}
}

func TestJobService_AssignTechnician_InvalidLeavesJobUnchanged(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	job, _ := f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC", TechnicianID: ptr(4)}, adminCaller)

	for _, target := range []int64{3, 1, 999} {
		err := f.svc.AssignTechnician(ctx, job.ID, target, adminCaller)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("target %d: expected validation error, got %v", target, err)
		}
		if err.Error() != "technician does not exist or does not have TECHNICIAN role" {
			t.Fatalf("unexpected message: %s", err.Error())
		}
		if !f.jobs.byID[job.ID].AssignedTo(4) {
			t.Fatalf("target %d: existing assignment changed", target)
		}
	}
}

func TestJobService_AssignTechnician_Errors(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	if err := f.svc.AssignTechnician(ctx, 1, 2, techCaller); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.AssignTechnician(ctx, 77, 2, adminCaller); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing job, got %v", err)
	}
}

func TestJobService_Delete(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	job, _ := f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC"}, adminCaller)

	if err := f.svc.Delete(ctx, job.ID, techCaller); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := f.svc.Delete(ctx, job.ID, schedCaller); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := f.svc.Delete(ctx, job.ID, schedCaller); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestJobService_Events(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	job, _ := f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC"}, adminCaller)
	_ = f.svc.AssignTechnician(ctx, job.ID, 2, adminCaller)
	_, _ = f.svc.UpdateStatus(ctx, job.ID, "IN_PROGRESS", techCaller)

	events, err := f.svc.Events(ctx, job.ID, adminCaller)
	if err != nil {
		t.Fatalf("events failed: %v", err)
	}
	want := []domain.AuditKind{domain.AuditJobCreated, domain.AuditTechnicianAssigned, domain.AuditStatusChanged}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, k := range want {
		if events[i].Kind != k {
			t.Fatalf("event %d: got %s want %s", i, events[i].Kind, k)
		}
	}
	if events[2].ActorID != 2 || events[2].Detail != "SCHEDULED -> IN_PROGRESS" {
		t.Fatalf("unexpected status event: %+v", events[2])
	}

	if _, err := f.svc.Events(ctx, job.ID, custCaller); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Events(ctx, 555, adminCaller); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobService_Events_DeletedJobBeforeRecorderCatchesUp(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	f.svc.audit = &bufferedAudit{store: f.audit}

	job, err := f.svc.Create(ctx, ports.CreateJobInput{CustomerID: ptr(3), ServiceType: "AC"}, adminCaller)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := f.svc.Delete(ctx, job.ID, adminCaller); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	events, err := f.svc.Events(ctx, job.ID, adminCaller)
	if err != nil {
		t.Fatalf("events of a just-deleted job must be served, got %v", err)
	}
	if len(events) != 2 || events[0].Kind != domain.AuditJobCreated || events[1].Kind != domain.AuditJobDeleted {
		t.Fatalf("unexpected trail: %+v", events)
	}
}
