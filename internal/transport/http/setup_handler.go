// Package http provides the HTTP transport layer: request decoding,
// validation, and RFC 7807 error rendering for the setup API.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "stocksetup/internal/errors"
	"stocksetup/internal/middleware"
	"stocksetup/internal/services"
	"stocksetup/internal/setup"
	"stocksetup/pkg/contracts/domain"
)

// SetupHandler handles setup wizard API endpoints.
type SetupHandler struct {
	service  services.SetupService
	logger   *slog.Logger
	validate *validator.Validate
}

// NewSetupHandler creates a new setup handler.
func NewSetupHandler(service services.SetupService, logger *slog.Logger) *SetupHandler {
	return &SetupHandler{
		service:  service,
		logger:   logger.With(slog.String("handler", "setup")),
		validate: validator.New(),
	}
}

// Routes returns the setup API routes.
func (h *SetupHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.GetStatus)
	r.Post("/advance", h.Advance)
	r.Post("/detect", h.Detect)
	r.Post("/confirm", h.Confirm)
	return r
}

// AdvanceRequest is the body of POST /api/setup/advance. Data carries
// optional renderer state; the machine ignores it.
type AdvanceRequest struct {
	Step int                    `json:"step" validate:"required,min=1,max=6"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// StatusResponse wraps the persisted progress with the static step catalog.
type StatusResponse struct {
	Progress domain.SetupProgress `json:"progress"`
	Steps    []domain.StepInfo    `json:"steps"`
}

// GetStatus returns the current wizard progress for the authenticated user.
func (h *SetupHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	progress, err := h.service.Status(r.Context(), userID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, StatusResponse{Progress: progress, Steps: domain.Steps()})
}

// Advance moves the user to the requested step.
func (h *SetupHandler) Advance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req AdvanceRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.renderProblem(w, r, apierrors.NewProblemDetails(
			http.StatusBadRequest, apierrors.TypeValidation,
			"Invalid Request", "request body must be valid JSON", r.URL.Path))
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.renderProblem(w, r, apierrors.NewProblemDetails(
			http.StatusBadRequest, apierrors.TypeValidation,
			"Invalid Request", "step must be between 1 and 6", r.URL.Path))
		return
	}

	progress, err := h.service.Advance(r.Context(), userID, domain.Step(req.Step))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, progress)
}

// DetectResponse is the body of a successful POST /api/setup/detect.
type DetectResponse struct {
	AlreadySetup  bool                    `json:"already_setup"`
	Configuration *domain.Configuration   `json:"configuration,omitempty"`
	Detection     *domain.DetectionResult `json:"detection,omitempty"`
}

// Detect runs resource detection against the user's workspace. If a
// configuration is already committed, the existing mapping is returned
// instead of re-running detection.
func (h *SetupHandler) Detect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	detection, err := h.service.Detect(r.Context(), userID)
	if err != nil {
		var already *setup.AlreadySetupError
		if errors.As(err, &already) {
			render.JSON(w, r, DetectResponse{
				AlreadySetup:  true,
				Configuration: &already.Config,
			})
			return
		}
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, DetectResponse{Detection: &detection})
}

// ConfirmResponse is the body of a successful POST /api/setup/confirm.
type ConfirmResponse struct {
	Configuration domain.Configuration `json:"configuration"`
	Progress      domain.SetupProgress `json:"progress"`
}

// Confirm validates and commits the submitted role-to-resource mapping, then
// completes the wizard.
func (h *SetupHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var sub setup.Submission
	if err := render.DecodeJSON(r.Body, &sub); err != nil {
		h.renderProblem(w, r, apierrors.NewProblemDetails(
			http.StatusBadRequest, apierrors.TypeValidation,
			"Invalid Request", "request body must be valid JSON", r.URL.Path))
		return
	}

	cfg, progress, err := h.service.Confirm(r.Context(), userID, sub)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, ConfirmResponse{Configuration: cfg, Progress: progress})
}

// renderError maps domain errors to RFC 7807 responses.
func (h *SetupHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErrs setup.ValidationErrors
		remoteErr      *setup.RemoteError
	)

	switch {
	case errors.As(err, &validationErrs):
		h.renderProblem(w, r, apierrors.NewProblemDetails(
			http.StatusBadRequest, apierrors.TypeValidation,
			"Validation Failed", "one or more submitted identifiers were rejected", r.URL.Path).
			WithExtension("errors", []domain.FieldError(validationErrs)))

	case errors.Is(err, setup.ErrInvalidTransition):
		h.renderProblem(w, r, apierrors.NewProblemDetails(
			http.StatusConflict, apierrors.TypeInvalidTransition,
			"Invalid Step Transition", err.Error(), r.URL.Path))

	case errors.As(err, &remoteErr):
		problemType := apierrors.TypeLookupFailure
		if remoteErr.Op == "search" {
			problemType = apierrors.TypeDetectionFailure
		}
		h.renderProblem(w, r, apierrors.NewProblemDetails(
			http.StatusBadGateway, problemType,
			"Upstream Request Failed", "the workspace API could not be reached, try again", r.URL.Path).
			WithExtension("retryable", true))

	case errors.Is(err, context.DeadlineExceeded):
		h.renderProblem(w, r, apierrors.NewProblemDetails(
			http.StatusGatewayTimeout, apierrors.TypeTimeout,
			"Request Timeout", "the operation did not complete in time", r.URL.Path).
			WithExtension("retryable", true))

	default:
		h.logger.ErrorContext(r.Context(), "unhandled service error",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("error", err.Error()))
		h.renderProblem(w, r, apierrors.NewProblemDetails(
			http.StatusInternalServerError, apierrors.TypeInternal,
			"Internal Server Error", "an unexpected error occurred", r.URL.Path))
	}
}

func (h *SetupHandler) renderProblem(w http.ResponseWriter, r *http.Request, pd *apierrors.ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	render.Status(r, pd.Status)
	render.JSON(w, r, pd)
}
