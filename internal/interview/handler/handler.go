// Package handler exposes the narrowing engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"visaflow/internal/interview/models"
	appmetrics "visaflow/internal/platform/metrics"
	"visaflow/internal/platform/middleware"
	"visaflow/internal/transport/http/shared"
	id "visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/engine_mocks.go -package=mocks Engine

// Engine defines the interview operations the handler delegates to.
type Engine interface {
	Start(ctx context.Context, userID id.UserID, category, instructions string) (*models.StepResponse, error)
	Answer(ctx context.Context, userID id.UserID, answer string) (*models.StepResponse, error)
	Reset(ctx context.Context, userID id.UserID) error
	GetState(ctx context.Context, userID id.UserID) (*models.State, error)
}

// Handler handles the interview endpoints.
type Handler struct {
	logger       *slog.Logger
	engine       Engine
	metrics      *appmetrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new interview Handler.
func New(
	engine Engine,
	logger *slog.Logger,
	metrics *appmetrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		engine:       engine,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the interview routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	interviewRouter := chi.NewRouter()
	interviewRouter.Use(middleware.Recovery(h.logger))
	interviewRouter.Use(middleware.RequestID)
	interviewRouter.Use(middleware.Logger(h.logger))
	interviewRouter.Use(middleware.Timeout(60 * time.Second))
	interviewRouter.Use(middleware.ContentTypeJSON)
	if h.metrics != nil {
		interviewRouter.Use(middleware.Latency(h.metrics))
	}
	interviewRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	interviewRouter.Post("/start", h.handleStart)
	interviewRouter.Post("/answer", h.handleAnswer)
	interviewRouter.Delete("/", h.handleReset)
	interviewRouter.Get("/", h.handleGetState)

	r.Mount("/interview", interviewRouter)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	var req models.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid start request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	resp, err := h.engine.Start(ctx, userID, req.Category, req.Instructions)
	if err != nil {
		h.writeEngineError(w, r, "failed to start interview", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid answer request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	resp, err := h.engine.Answer(ctx, userID, req.Answer)
	if err != nil {
		h.writeEngineError(w, r, "failed to process answer", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	if err := h.engine.Reset(r.Context(), userID); err != nil {
		h.writeEngineError(w, r, "failed to reset interview", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUser(w, r)
	if !ok {
		return
	}

	state, err := h.engine.GetState(r.Context(), userID)
	if err != nil {
		h.writeEngineError(w, r, "failed to load interview state", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, models.ToStateResponse(state))
}

// authenticatedUser pulls the user ID placed in context by RequireAuth.
func (h *Handler) authenticatedUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		// Should never happen behind RequireAuth.
		h.logger.ErrorContext(r.Context(), "user id missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.NilUserID, false
	}
	return userID, true
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	logFn := h.logger.ErrorContext
	if code != dErrors.CodeInternal {
		logFn = h.logger.WarnContext
	}
	logFn(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"code", string(code),
		"error", err.Error(),
	)
	shared.WriteError(w, err)
}
