package handler_test

import (
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"visaflow/internal/interview/handler"
	"visaflow/internal/interview/handler/mocks"
	"visaflow/internal/interview/models"
	"visaflow/internal/platform/middleware"
	id "visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
	"visaflow/pkg/testutil"
)

// staticValidator accepts any bearer token and returns a fixed subject.
type staticValidator struct {
	subject string
	err     error
}

func (v staticValidator) ValidateToken(string) (*middleware.JWTClaims, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &middleware.JWTClaims{UserID: v.subject}, nil
}

type handlerFixture struct {
	engine *mocks.MockEngine
	router chi.Router
	userID id.UserID
}

func newFixture(t *testing.T) *handlerFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)

	subject := uuid.NewString()
	userID, err := id.ParseUserID(subject)
	require.NoError(t, err)

	router := chi.NewRouter()
	h := handler.New(engine, slog.Default(), nil, staticValidator{subject: subject})
	h.Register(router)

	return &handlerFixture{engine: engine, router: router, userID: userID}
}

func withAuth(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer test-token")
	return req
}

func TestHandleStart(t *testing.T) {
	t.Run("returns the first question", func(t *testing.T) {
		f := newFixture(t)
		f.engine.EXPECT().
			Start(gomock.Any(), f.userID, "visit", "keep it short").
			Return(&models.StepResponse{Question: "What is the purpose of your trip?", Step: 1}, nil)

		req := withAuth(testutil.NewJSONRequest(t, http.MethodPost, "/interview/start",
			models.StartRequest{Category: "visit", Instructions: "keep it short"}))
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[models.StepResponse](t, rr)
		assert.Equal(t, "What is the purpose of your trip?", resp.Question)
		assert.Equal(t, 1, resp.Step)
		assert.False(t, resp.IsComplete)
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		f := newFixture(t)

		req := withAuth(testutil.NewJSONRequest(t, http.MethodPost, "/interview/start", nil))
		req.Body = http.NoBody
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeBadRequest))
	})

	t.Run("requires a bearer token", func(t *testing.T) {
		f := newFixture(t)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/interview/start", models.StartRequest{Category: "visit"})
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("propagates engine errors with their status", func(t *testing.T) {
		f := newFixture(t)
		f.engine.EXPECT().
			Start(gomock.Any(), f.userID, "visit", "").
			Return(nil, dErrors.New(dErrors.CodeUnavailable, "could not serialize interview access"))

		req := withAuth(testutil.NewJSONRequest(t, http.MethodPost, "/interview/start",
			models.StartRequest{Category: "visit"}))
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeUnavailable))
	})
}

func TestHandleAnswer(t *testing.T) {
	t.Run("returns the next question", func(t *testing.T) {
		f := newFixture(t)
		f.engine.EXPECT().
			Answer(gomock.Any(), f.userID, "tourism").
			Return(&models.StepResponse{Question: "Will the stay exceed 90 days?", Step: 2}, nil)

		req := withAuth(testutil.NewJSONRequest(t, http.MethodPost, "/interview/answer",
			models.AnswerRequest{Answer: "tourism"}))
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[models.StepResponse](t, rr)
		assert.Equal(t, 2, resp.Step)
		assert.Equal(t, "Will the stay exceed 90 days?", resp.Question)
	})

	t.Run("returns the recommendation on completion", func(t *testing.T) {
		f := newFixture(t)
		f.engine.EXPECT().
			Answer(gomock.Any(), f.userID, "under 90 days").
			Return(&models.StepResponse{
				Step:       3,
				IsComplete: true,
				Recommendation: &models.Recommendation{
					Code:             "ESTA",
					WorkflowDocument: `{"steps":[]}`,
				},
			}, nil)

		req := withAuth(testutil.NewJSONRequest(t, http.MethodPost, "/interview/answer",
			models.AnswerRequest{Answer: "under 90 days"}))
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[models.StepResponse](t, rr)
		assert.True(t, resp.IsComplete)
		require.NotNil(t, resp.Recommendation)
		assert.Equal(t, "ESTA", resp.Recommendation.Code)
	})

	t.Run("answering before start maps to conflict", func(t *testing.T) {
		f := newFixture(t)
		f.engine.EXPECT().
			Answer(gomock.Any(), f.userID, "tourism").
			Return(nil, dErrors.New(dErrors.CodeInvalidState, "interview has not been started"))

		req := withAuth(testutil.NewJSONRequest(t, http.MethodPost, "/interview/answer",
			models.AnswerRequest{Answer: "tourism"}))
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusConflict)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeInvalidState))
	})

	t.Run("blank answer maps to bad request", func(t *testing.T) {
		f := newFixture(t)
		f.engine.EXPECT().
			Answer(gomock.Any(), f.userID, "").
			Return(nil, dErrors.New(dErrors.CodeBadRequest, "answer is required"))

		req := withAuth(testutil.NewJSONRequest(t, http.MethodPost, "/interview/answer",
			models.AnswerRequest{}))
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeBadRequest))
	})
}

func TestHandleReset(t *testing.T) {
	t.Run("resets and returns no content", func(t *testing.T) {
		f := newFixture(t)
		f.engine.EXPECT().Reset(gomock.Any(), f.userID).Return(nil)

		req := withAuth(testutil.NewRequest(t, http.MethodDelete, "/interview/"))
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusNoContent)
	})

	t.Run("internal failures map to 500", func(t *testing.T) {
		f := newFixture(t)
		f.engine.EXPECT().Reset(gomock.Any(), f.userID).
			Return(dErrors.Wrap(fmt.Errorf("boom"), dErrors.CodeInternal, "failed to reset interview state"))

		req := withAuth(testutil.NewRequest(t, http.MethodDelete, "/interview/"))
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeInternal))
	})
}

func TestHandleGetState(t *testing.T) {
	t.Run("projects the interview state", func(t *testing.T) {
		f := newFixture(t)
		f.engine.EXPECT().GetState(gomock.Any(), f.userID).
			Return(&models.State{
				UserID:       f.userID,
				Category:     "visit",
				Step:         2,
				Candidates:   models.NewCandidateSet([]id.VisaCode{"B-2", "ESTA"}),
				LastQuestion: "Will the stay exceed 90 days?",
			}, nil)

		req := withAuth(testutil.NewRequest(t, http.MethodGet, "/interview/"))
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[models.StateResponse](t, rr)
		assert.Equal(t, "visit", resp.Category)
		assert.Equal(t, 2, resp.Step)
		assert.Equal(t, []string{"B-2", "ESTA"}, resp.Candidates)
		assert.False(t, resp.IsCompleted)
	})

	t.Run("missing interview maps to not found", func(t *testing.T) {
		f := newFixture(t)
		f.engine.EXPECT().GetState(gomock.Any(), f.userID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "no interview found for user"))

		req := withAuth(testutil.NewRequest(t, http.MethodGet, "/interview/"))
		rr := testutil.DoRequest(f.router, req)

		testutil.AssertStatus(t, rr, http.StatusNotFound)
		testutil.AssertErrorCode(t, rr, string(dErrors.CodeNotFound))
	})
}
