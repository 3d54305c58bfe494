package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/job-dispatch/internal/api/metrics"
	"github.com/fieldops/job-dispatch/internal/core/domain"
	"github.com/fieldops/job-dispatch/internal/core/ports"
)

// JobHandler handles HTTP requests for job operations.
type JobHandler struct {
	service ports.JobService
}

func NewJobHandler(service ports.JobService) *JobHandler {
	return &JobHandler{service: service}
}

// Create handles POST /jobs.
//
// @Summary      Create a job
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string            false  "Replays return the job created by the first request"
// @Param        body             body      createJobRequest  true   "Job details"
// @Success      201              {object}  domain.Job
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Failure      403              {object}  errorResponse
// @Router       /jobs [post]
func (h *JobHandler) Create(c echo.Context) error {
	caller, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req createJobRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	job, err := h.service.Create(c.Request().Context(), ports.CreateJobInput{
		CustomerID:     req.CustomerID,
		ServiceType:    req.ServiceType,
		TechnicianID:   req.TechnicianID,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	}, caller)
	if err != nil {
		return err
	}

	metrics.JobMutationsTotal.WithLabelValues("created").Inc()
	return c.JSON(http.StatusCreated, job)
}

// ListAll handles GET /jobs.
//
// @Summary      List every job
// @Tags         jobs
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Job
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /jobs [get]
func (h *JobHandler) ListAll(c echo.Context) error {
	caller, err := ctxClaims(c)
	if err != nil {
		return err
	}

	jobs, err := h.service.ListAll(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, jobList(jobs))
}

// ListOwn handles GET /jobs/my.
//
// @Summary      List the caller's jobs
// @Description  Technicians see jobs assigned to them, customers see jobs they requested.
// @Tags         jobs
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Job
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /jobs/my [get]
func (h *JobHandler) ListOwn(c echo.Context) error {
	caller, err := ctxClaims(c)
	if err != nil {
		return err
	}

	jobs, err := h.service.ListOwn(c.Request().Context(), caller)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, jobList(jobs))
}

// UpdateStatus handles PUT /jobs/:id/status.
//
// @Summary      Set a job's status
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                  true  "Job id"
// @Param        body  body      updateStatusRequest  true  "New status"
// @Success      200   {object}  statusResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /jobs/{id}/status [put]
func (h *JobHandler) UpdateStatus(c echo.Context) error {
	caller, err := ctxClaims(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "job")
	if err != nil {
		return err
	}

	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	status, err := h.service.UpdateStatus(c.Request().Context(), id, req.Status, caller)
	if err != nil {
		return err
	}

	metrics.JobMutationsTotal.WithLabelValues("status_changed").Inc()
	return c.JSON(http.StatusOK, statusResponse{Status: string(status)})
}

// Assign handles POST /jobs/:id/assign.
//
// @Summary      Assign a technician to a job
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int            true  "Job id"
// @Param        body  body      assignRequest  true  "Technician"
// @Success      200   {object}  assignResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /jobs/{id}/assign [post]
func (h *JobHandler) Assign(c echo.Context) error {
	caller, err := ctxClaims(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "job")
	if err != nil {
		return err
	}

	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.service.AssignTechnician(c.Request().Context(), id, *req.TechnicianID, caller); err != nil {
		return err
	}

	metrics.JobMutationsTotal.WithLabelValues("technician_assigned").Inc()
	return c.JSON(http.StatusOK, assignResponse{Assigned: *req.TechnicianID})
}

// Delete handles DELETE /jobs/:id.
//
// @Summary      Delete a job
// @Tags         jobs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Job id"
// @Success      200  {object}  deletedResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /jobs/{id} [delete]
func (h *JobHandler) Delete(c echo.Context) error {
	caller, err := ctxClaims(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "job")
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), id, caller); err != nil {
		return err
	}

	metrics.JobMutationsTotal.WithLabelValues("deleted").Inc()
	return c.JSON(http.StatusOK, deletedResponse{Status: "deleted"})
}

// Events handles GET /jobs/:id/events.
//
// @Summary      Audit trail of a job
// @Tags         jobs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Job id"
// @Success      200  {array}   domain.AuditEvent
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /jobs/{id}/events [get]
func (h *JobHandler) Events(c echo.Context) error {
	caller, err := ctxClaims(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "job")
	if err != nil {
		return err
	}

	events, err := h.service.Events(c.Request().Context(), id, caller)
	if err != nil {
		return err
	}
	if events == nil {
		events = []*domain.AuditEvent{}
	}
	return c.JSON(http.StatusOK, events)
}
