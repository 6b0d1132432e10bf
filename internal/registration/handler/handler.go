package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"podium/internal/platform/metrics"
	"podium/internal/platform/middleware"
	"podium/internal/registration/models"
	"podium/internal/registration/query"
	"podium/internal/registration/service"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
	"podium/pkg/platform/httputil"
	"podium/pkg/requestcontext"
)

//go:generate mockgen -destination=mocks/handler-mocks.go -package=mocks podium/internal/registration/handler SubmissionGateway

// SubmissionGateway is the public admission surface.
type SubmissionGateway interface {
	Submit(ctx context.Context, cmd service.SubmitCommand) (*service.SubmitResult, error)
	Window(ctx context.Context, eventID id.EventID) (*service.Window, error)
	Participants(ctx context.Context, eventID id.EventID, page, limit int) ([]*models.Submission, query.Page, error)
}

// VerificationEngine performs moderation decisions.
type VerificationEngine interface {
	Transition(ctx context.Context, subID id.SubmissionID, target models.Status, notes *string) (*models.Submission, error)
	BatchTransition(ctx context.Context, ids []id.SubmissionID, target models.Status, notes *string) (*service.BatchReport, error)
}

// Admin covers event management, listing and the tombstone lifecycle.
type Admin interface {
	CreateEvent(ctx context.Context, cmd service.CreateEventCommand) (*models.ParentEvent, error)
	GetEvent(ctx context.Context, eventID id.EventID) (*service.EventDetail, error)
	ListEvents(ctx context.Context, includeDeleted bool) ([]*models.ParentEvent, error)
	UpdateEvent(ctx context.Context, eventID id.EventID, patch models.EventPatch) (*models.ParentEvent, error)
	SoftDeleteEvent(ctx context.Context, eventID id.EventID) error
	RestoreEvent(ctx context.Context, eventID id.EventID) error
	PermanentDeleteEvent(ctx context.Context, eventID id.EventID, confirm bool) error

	GetSubmission(ctx context.Context, subID id.SubmissionID) (*service.SubmissionDetail, error)
	ListSubmissions(ctx context.Context, f query.Filters) ([]*models.Submission, query.Page, error)
	PatchSubmission(ctx context.Context, subID id.SubmissionID, patch models.SubmissionPatch) (*models.Submission, error)
	SoftDeleteSubmission(ctx context.Context, subID id.SubmissionID) error
	RestoreSubmission(ctx context.Context, subID id.SubmissionID) error
	PermanentDeleteSubmission(ctx context.Context, subID id.SubmissionID, confirm bool) error
}

// Handler serves the public and admin registration routes.
type Handler struct {
	gateway   SubmissionGateway
	engine    VerificationEngine
	admin     Admin
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validator middleware.AdminTokenValidator
	submitMW  func(http.Handler) http.Handler
	timeout   time.Duration
}

type Option func(*Handler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithSubmitMiddleware wraps only the public submit route, typically with
// the per-client rate limiter.
func WithSubmitMiddleware(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitMW = mw
	}
}

func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// New creates a registration Handler.
func New(
	gateway SubmissionGateway,
	engine VerificationEngine,
	admin Admin,
	validator middleware.AdminTokenValidator,
	logger *slog.Logger,
	opts ...Option) *Handler {
	h := &Handler{
		gateway:   gateway,
		engine:    engine,
		admin:     admin,
		validator: validator,
		logger:    logger,
		timeout:   30 * time.Second,
		submitMW:  func(next http.Handler) http.Handler { return next },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the registration routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(h.timeout))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Latency(h.metrics))

	router.Route("/events/{eventID}", func(r chi.Router) {
		r.Get("/", h.handleGetWindow)
		r.Get("/participants", h.handleParticipants)
		r.With(h.submitMW).Post("/submissions", h.handleSubmit)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.validator, h.logger))

		r.Post("/events", h.handleCreateEvent)
		r.Get("/events", h.handleListEvents)
		r.Get("/events/{eventID}", h.handleGetEvent)
		r.Patch("/events/{eventID}", h.handleUpdateEvent)
		r.Delete("/events/{eventID}", h.handleDeleteEvent)
		r.Post("/events/{eventID}/restore", h.handleRestoreEvent)

		r.Get("/submissions", h.handleListSubmissions)
		r.Post("/submissions/batch", h.handleBatchTransition)
		r.Get("/submissions/{submissionID}", h.handleGetSubmission)
		r.Patch("/submissions/{submissionID}", h.handlePatchSubmission)
		r.Delete("/submissions/{submissionID}", h.handleDeleteSubmission)
		r.Post("/submissions/{submissionID}/restore", h.handleRestoreSubmission)
	})

	r.Mount("/", router)
}

// writeError logs by severity and renders the domain error envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func eventIDParam(r *http.Request) (id.EventID, error) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		return id.EventID{}, dErrors.New(dErrors.CodeNotFound, "event not found")
	}
	return eventID, nil
}

func submissionIDParam(r *http.Request) (id.SubmissionID, error) {
	subID, err := id.ParseSubmissionID(chi.URLParam(r, "submissionID"))
	if err != nil {
		return id.SubmissionID{}, dErrors.New(dErrors.CodeNotFound, "submission not found")
	}
	return subID, nil
}

func boolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, dErrors.Validation(map[string]string{name: "must be true or false"})
	}
	return v, nil
}
