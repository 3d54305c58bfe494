// Package memory is an in-process backend for identities, jobs, the audit
// trail and idempotency keys. Safe for concurrent access.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fieldops/job-dispatch/internal/core/domain"
	"github.com/fieldops/job-dispatch/internal/core/ports"
)

var (
	_ ports.IdentityRepository = (*Store)(nil)
	_ ports.JobRepository      = (*JobStore)(nil)
	_ ports.AuditRepository    = (*AuditStore)(nil)
	_ ports.IdempotencyStore   = (*IdempotencyStore)(nil)
)

// Store holds identities. A single mutex guards the map and the id counter so
// the emptiness check of CreateFirst and its insert are one atomic step.
type Store struct {
	mu         sync.RWMutex
	identities map[int64]*domain.Identity
	byUsername map[string]int64
	lastID     int64
}

func New() *Store {
	return &Store{
		identities: make(map[int64]*domain.Identity),
		byUsername: make(map[string]int64),
	}
}

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) insertLocked(identity *domain.Identity) (*domain.Identity, error) {
	if _, taken := s.byUsername[identity.Username]; taken {
		return nil, domain.ErrUsernameTaken
	}
	s.lastID++
	cp := identity.Clone()
	cp.ID = s.lastID
	s.identities[cp.ID] = cp
	s.byUsername[cp.Username] = cp.ID
	return cp.Clone(), nil
}

func (s *Store) Create(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(identity)
}

func (s *Store) CreateFirst(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.identities) > 0 {
		return nil, domain.ErrDirectoryNotEmpty
	}
	return s.insertLocked(identity)
}

func (s *Store) FindByID(_ context.Context, id int64) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.identities[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return u.Clone(), nil
}

func (s *Store) FindByUsername(_ context.Context, username string) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return s.identities[id].Clone(), nil
}

// List returns identities ordered by id.
func (s *Store) List(_ context.Context) ([]*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Identity, 0, len(s.identities))
	for _, u := range s.identities {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes the identity. Its id is never handed out again.
func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.identities[id]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	delete(s.byUsername, u.Username)
	delete(s.identities, id)
	return nil
}

// ──────────────────────────────────────────────────
// Jobs
// ──────────────────────────────────────────────────

// JobStore holds jobs keyed by id.
type JobStore struct {
	mu     sync.RWMutex
	jobs   map[int64]*domain.Job
	lastID int64
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[int64]*domain.Job)}
}

func (s *JobStore) Create(_ context.Context, job *domain.Job) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	cp := job.Clone()
	cp.ID = s.lastID
	s.jobs[cp.ID] = cp
	return cp.Clone(), nil
}

func (s *JobStore) FindByID(_ context.Context, id int64) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return j.Clone(), nil
}

func (s *JobStore) collect(keep func(*domain.Job) bool) []*domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Job, 0)
	for _, j := range s.jobs {
		if keep(j) {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (s *JobStore) List(_ context.Context) ([]*domain.Job, error) {
	return s.collect(func(*domain.Job) bool { return true }), nil
}

func (s *JobStore) FindByCustomer(_ context.Context, customerID int64) ([]*domain.Job, error) {
	return s.collect(func(j *domain.Job) bool { return j.CustomerID == customerID }), nil
}

func (s *JobStore) FindByTechnician(_ context.Context, technicianID int64) ([]*domain.Job, error) {
	return s.collect(func(j *domain.Job) bool { return j.AssignedTo(technicianID) }), nil
}

func (s *JobStore) SetStatus(_ context.Context, id int64, status domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	j.Status = status
	return nil
}

func (s *JobStore) SetTechnician(_ context.Context, id int64, technicianID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	j.TechnicianID = &technicianID
	return nil
}

func (s *JobStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

// ──────────────────────────────────────────────────
// Audit trail
// ──────────────────────────────────────────────────

// AuditStore keeps audit events per job in insertion order.
type AuditStore struct {
	mu     sync.RWMutex
	events map[int64][]*domain.AuditEvent
}

func NewAuditStore() *AuditStore {
	return &AuditStore{events: make(map[int64][]*domain.AuditEvent)}
}

func (s *AuditStore) InsertEvent(_ context.Context, event *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.events[event.JobID] = append(s.events[event.JobID], &cp)
	return nil
}

func (s *AuditStore) EventsForJob(_ context.Context, jobID int64) ([]*domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[jobID]
	out := make([]*domain.AuditEvent, len(src))
	for i, e := range src {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Idempotency keys
// ──────────────────────────────────────────────────

// IdempotencyStore binds idempotency keys to job ids for the process lifetime.
type IdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]int64
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{keys: make(map[string]int64)}
}

func (s *IdempotencyStore) Lookup(_ context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[key]
	return id, ok, nil
}

func (s *IdempotencyStore) Remember(_ context.Context, key string, jobID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.keys[key]; ok {
		if existing == jobID {
			return nil
		}
		return domain.ErrIdempotencyConflict
	}
	s.keys[key] = jobID
	return nil
}
