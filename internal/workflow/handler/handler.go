// Package handler exposes the materialized workflow plan over HTTP.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"visaflow/internal/platform/middleware"
	"visaflow/internal/transport/http/shared"
	"visaflow/internal/workflow/store"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/platform/sentinel"
	"visaflow/pkg/requestcontext"
)

// Handler serves the read side of the workflow module.
type Handler struct {
	logger       *slog.Logger
	store        store.Store
	jwtValidator middleware.JWTValidator
}

// New creates a new workflow Handler.
func New(st store.Store, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{logger: logger, store: st, jwtValidator: jwtValidator}
}

// Register registers the workflow routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	workflowRouter := chi.NewRouter()
	workflowRouter.Use(middleware.Recovery(h.logger))
	workflowRouter.Use(middleware.RequestID)
	workflowRouter.Use(middleware.Logger(h.logger))
	workflowRouter.Use(middleware.Timeout(10 * time.Second))
	workflowRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	workflowRouter.Get("/", h.handleGetPlan)

	r.Mount("/workflow", workflowRouter)
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	plan, err := h.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no workflow plan for user"))
			return
		}
		h.logger.ErrorContext(ctx, "failed to load workflow plan",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load workflow plan"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, plan)
}
