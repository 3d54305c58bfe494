package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/job-dispatch/internal/api/metrics"
	"github.com/fieldops/job-dispatch/internal/api/middleware"
	"github.com/fieldops/job-dispatch/internal/core/ports"
)

// UserHandler handles HTTP requests for the identity directory.
type UserHandler struct {
	directory ports.DirectoryService
}

func NewUserHandler(directory ports.DirectoryService) *UserHandler {
	return &UserHandler{directory: directory}
}

// Register creates an identity. Without a bearer token only the first admin
// of an empty directory can be registered.
//
// @Summary      Register an identity
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      registerRequest  true  "Identity details"
// @Success      201   {object}  registerResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /users [post]
func (h *UserHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	caller := middleware.ClaimsFrom(c)
	identity, err := h.directory.Register(c.Request().Context(), ports.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		Roles:       req.Roles,
		ContactInfo: req.ContactInfo,
		Address:     req.Address,
	}, caller)
	if err != nil {
		return err
	}

	path := "admin"
	if caller == nil {
		path = "bootstrap"
	}
	metrics.RegistrationsTotal.WithLabelValues(path).Inc()

	return c.JSON(http.StatusCreated, registerResponse{
		ID:       identity.ID,
		Username: identity.Username,
		Roles:    identity.Roles.Strings(),
	})
}

// List returns every registered identity.
//
// @Summary      List identities
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   userResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	caller, err := ctxClaims(c)
	if err != nil {
		return err
	}

	identities, err := h.directory.List(c.Request().Context(), caller)
	if err != nil {
		return err
	}

	resp := make([]userResponse, 0, len(identities))
	for _, u := range identities {
		resp = append(resp, toUserResponse(u))
	}
	return c.JSON(http.StatusOK, resp)
}

// Delete removes an identity.
//
// @Summary      Delete an identity
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Identity id"
// @Success      200  {object}  deletedResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	caller, err := ctxClaims(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "user")
	if err != nil {
		return err
	}

	if err := h.directory.Delete(c.Request().Context(), id, caller); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deletedResponse{Status: "deleted"})
}
