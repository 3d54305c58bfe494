package domain

import (
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a service job.
type JobStatus string

const (
	JobScheduled  JobStatus = "SCHEDULED"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobCancelled  JobStatus = "CANCELLED"
)

// ParseJobStatus matches s case-insensitively against the known statuses.
// Any status may follow any other; no transition graph is enforced.
func ParseJobStatus(s string) (JobStatus, error) {
	if strings.TrimSpace(s) == "" {
		return "", NewValidationError("status is required")
	}
	switch st := JobStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case JobScheduled, JobInProgress, JobCompleted, JobCancelled:
		return st, nil
	}
	return "", NewValidationError("invalid status value")
}

// Job is a unit of field work requested by a customer.
type Job struct {
	ID           int64     `json:"id"`
	CustomerID   int64     `json:"customerId"`
	TechnicianID *int64    `json:"technicianId"`
	ServiceType  string    `json:"serviceType"`
	Status       JobStatus `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Clone returns a deep copy so stored jobs never alias caller memory.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.TechnicianID != nil {
		id := *j.TechnicianID
		cp.TechnicianID = &id
	}
	return &cp
}

// AssignedTo reports whether the job is assigned to the given technician.
func (j *Job) AssignedTo(technicianID int64) bool {
	return j.TechnicianID != nil && *j.TechnicianID == technicianID
}
