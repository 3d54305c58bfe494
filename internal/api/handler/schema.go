package handler

import (
	"time"

	"github.com/fieldops/job-dispatch/internal/core/domain"
)

// --- Request types ---

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Username    string   `json:"username" validate:"required,max=64"`
	Password    string   `json:"password" validate:"required"`
	Roles       []string `json:"roles"`
	ContactInfo string   `json:"contactInfo,omitempty" validate:"max=256"`
	Address     string   `json:"address,omitempty" validate:"max=256"`
}

type createJobRequest struct {
	CustomerID   *int64 `json:"customerId"             validate:"required"`
	ServiceType  string `json:"serviceType"            validate:"required,max=128"`
	TechnicianID *int64 `json:"technicianId,omitempty"`
}

// Status is parsed by the job service after the job lookup and ownership
// check, so a missing job or a foreign technician is reported before a bad value.
type updateStatusRequest struct {
	Status string `json:"status" validate:"max=32"`
}

type assignRequest struct {
	TechnicianID *int64 `json:"technicianId" validate:"required"`
}

// --- Response types ---

type tokenResponse struct {
	Token string `json:"token"`
}

type registerResponse struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type userResponse struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Roles       []string  `json:"roles"`
	ContactInfo string    `json:"contactInfo"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"createdAt"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type assignResponse struct {
	Assigned int64 `json:"assigned"`
}

type deletedResponse struct {
	Status string `json:"status"`
}

func toUserResponse(u *domain.Identity) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Roles:       u.Roles.Strings(),
		ContactInfo: u.ContactInfo,
		Address:     u.Address,
		CreatedAt:   u.CreatedAt,
	}
}

// jobList never renders as null.
func jobList(jobs []*domain.Job) []*domain.Job {
	if jobs == nil {
		return []*domain.Job{}
	}
	return jobs
}

// errorResponse documents the error envelope rendered by the API error handler.
type errorResponse struct {
	Error string `json:"error"`
}
