package domain

import "time"

// AuditKind names the job mutation an AuditEvent records.
type AuditKind string

const (
	AuditJobCreated         AuditKind = "job_created"
	AuditStatusChanged      AuditKind = "status_changed"
	AuditTechnicianAssigned AuditKind = "technician_assigned"
	AuditJobDeleted         AuditKind = "job_deleted"
)

// AuditEvent records a committed job mutation.
type AuditEvent struct {
	ID      string    `json:"id"`
	JobID   int64     `json:"jobId"`
	Kind    AuditKind `json:"kind"`
	ActorID int64     `json:"actorId"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}
