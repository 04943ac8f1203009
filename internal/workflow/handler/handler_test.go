package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaflow/internal/platform/middleware"
	"visaflow/internal/workflow/handler"
	"visaflow/internal/workflow/models"
	"visaflow/internal/workflow/store/memory"
	id "visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/testutil"
)

type staticValidator struct {
	subject string
}

func (v staticValidator) ValidateToken(string) (*middleware.JWTClaims, error) {
	return &middleware.JWTClaims{UserID: v.subject}, nil
}

func setup(t *testing.T) (chi.Router, *memory.InMemoryStore, id.UserID) {
	t.Helper()

	subject := uuid.NewString()
	userID, err := id.ParseUserID(subject)
	require.NoError(t, err)

	st := memory.New()
	router := chi.NewRouter()
	handler.New(st, slog.Default(), staticValidator{subject: subject}).Register(router)
	return router, st, userID
}

func TestHandleGetPlan(t *testing.T) {
	t.Run("returns the materialized plan", func(t *testing.T) {
		router, st, userID := setup(t)
		require.NoError(t, st.Save(context.Background(), &models.Plan{
			UserID:   userID,
			VisaCode: "ESTA",
			Steps: []models.Step{
				{Name: "Apply online", EstimatedCost: 21, EstimatedTimeDays: 1},
			},
			EstimatedTotalCost:     21,
			EstimatedTotalTimeDays: 1,
			MaterializedAt:         time.Now(),
		}))

		req := testutil.NewRequest(t, http.MethodGet, "/workflow/")
		req.Header.Set("Authorization", "Bearer test-token")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		plan := testutil.UnmarshalResponse[models.Plan](t, rr)
		assert.Equal(t, id.VisaCode("ESTA"), plan.VisaCode)
		require.Len(t, plan.Steps, 1)
		assert.Equal(t, "Apply online", plan.Steps[0].Name)
	})

	t.Run("missing plan maps to not found", func(t *testing.T) {
		router, _, _ := setup(t)

		req := testutil.NewRequest(t, http.MethodGet, "/workflow/")
		req.Header.Set("Authorization", "Bearer test-token")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeNotFound))
	})

	t.Run("requires a bearer token", func(t *testing.T) {
		router, _, _ := setup(t)

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/workflow/"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}
