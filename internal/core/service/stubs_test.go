package service

import (
	"context"
	"sort"
	"sync"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

type stubIdentityRepo struct {
	mu     sync.Mutex
	byID   map[int64]*domain.Identity
	nextID int64
}

func newStubIdentityRepo() *stubIdentityRepo {
	return &stubIdentityRepo{byID: make(map[int64]*domain.Identity)}
}

func (r *stubIdentityRepo) insert(identity *domain.Identity) (*domain.Identity, error) {
	for _, u := range r.byID {
		if u.Username == identity.Username {
			return nil, domain.ErrUsernameTaken
		}
	}
	r.nextID++
	cp := identity.Clone()
	cp.ID = r.nextID
	r.byID[cp.ID] = cp
	return cp.Clone(), nil
}

func (r *stubIdentityRepo) Create(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(identity)
}

func (r *stubIdentityRepo) CreateFirst(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.byID) > 0 {
		return nil, domain.ErrDirectoryNotEmpty
	}
	return r.insert(identity)
}

func (r *stubIdentityRepo) FindByID(_ context.Context, id int64) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return u.Clone(), nil
}

func (r *stubIdentityRepo) FindByUsername(_ context.Context, username string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return nil, domain.ErrIdentityNotFound
}

func (r *stubIdentityRepo) List(_ context.Context) ([]*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Identity, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubIdentityRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrIdentityNotFound
	}
	delete(r.byID, id)
	return nil
}

type stubJobRepo struct {
	byID      map[int64]*domain.Job
	nextID    int64
	createErr error
}

func newStubJobRepo() *stubJobRepo {
	return &stubJobRepo{byID: make(map[int64]*domain.Job)}
}

func (r *stubJobRepo) Create(_ context.Context, job *domain.Job) (*domain.Job, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	cp := job.Clone()
	cp.ID = r.nextID
	r.byID[cp.ID] = cp
	return cp.Clone(), nil
}

func (r *stubJobRepo) FindByID(_ context.Context, id int64) (*domain.Job, error) {
	j, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return j.Clone(), nil
}

func (r *stubJobRepo) filter(keep func(*domain.Job) bool) []*domain.Job {
	out := []*domain.Job{}
	for _, j := range r.byID {
		if keep(j) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (r *stubJobRepo) List(_ context.Context) ([]*domain.Job, error) {
	return r.filter(func(*domain.Job) bool { return true }), nil
}

func (r *stubJobRepo) FindByCustomer(_ context.Context, customerID int64) ([]*domain.Job, error) {
	return r.filter(func(j *domain.Job) bool { return j.CustomerID == customerID }), nil
}

func (r *stubJobRepo) FindByTechnician(_ context.Context, technicianID int64) ([]*domain.Job, error) {
	return r.filter(func(j *domain.Job) bool { return j.AssignedTo(technicianID) }), nil
}

func (r *stubJobRepo) SetStatus(_ context.Context, id int64, status domain.JobStatus) error {
	j, ok := r.byID[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	j.Status = status
	return nil
}

func (r *stubJobRepo) SetTechnician(_ context.Context, id int64, technicianID int64) error {
	j, ok := r.byID[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	j.TechnicianID = &technicianID
	return nil
}

func (r *stubJobRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.byID[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(r.byID, id)
	return nil
}

// ---------------------------------------------------------------------------
// Collaborator stubs
// ---------------------------------------------------------------------------

type stubCreds struct{}

func (stubCreds) Hash(secret string) (string, error) { return "hashed:" + secret, nil }

func (stubCreds) Verify(secret, hash string) bool { return hash == "hashed:"+secret }

type stubTokens struct {
	issued []*domain.Identity
}

func (s *stubTokens) Issue(identity *domain.Identity) (string, error) {
	s.issued = append(s.issued, identity)
	return "token-for-" + identity.Username, nil
}

type stubIdem struct {
	keys      map[string]int64
	lookupErr error
}

func newStubIdem() *stubIdem { return &stubIdem{keys: make(map[string]int64)} }

func (s *stubIdem) Lookup(_ context.Context, key string) (int64, bool, error) {
	if s.lookupErr != nil {
		return 0, false, s.lookupErr
	}
	id, ok := s.keys[key]
	return id, ok, nil
}

func (s *stubIdem) Remember(_ context.Context, key string, jobID int64) error {
	if _, ok := s.keys[key]; ok {
		return domain.ErrIdempotencyConflict
	}
	s.keys[key] = jobID
	return nil
}

type stubAudit struct {
	events []*domain.AuditEvent
}

func (a *stubAudit) Record(event *domain.AuditEvent) { a.events = append(a.events, event) }

func (a *stubAudit) InsertEvent(_ context.Context, event *domain.AuditEvent) error {
	a.events = append(a.events, event)
	return nil
}

func (a *stubAudit) EventsForJob(_ context.Context, jobID int64) ([]*domain.AuditEvent, error) {
	var out []*domain.AuditEvent
	for _, e := range a.events {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

func claimsFor(id int64, roles ...domain.Role) *domain.Claims {
	return &domain.Claims{SubjectID: id, Username: "user", Roles: domain.NewRoleSet(roles...)}
}

func ptr(v int64) *int64 { return &v }

// bufferedAudit holds recorded events until Flush, like an asynchronous recorder
// whose worker has not caught up yet.
type bufferedAudit struct {
	pending []*domain.AuditEvent
	store   *stubAudit
}

func (b *bufferedAudit) Record(event *domain.AuditEvent) { b.pending = append(b.pending, event) }

func (b *bufferedAudit) Flush(_ context.Context, jobID int64) error {
	kept := b.pending[:0]
	for _, e := range b.pending {
		if e.JobID == jobID {
			b.store.events = append(b.store.events, e)
			continue
		}
		kept = append(kept, e)
	}
	b.pending = kept
	return nil
}
