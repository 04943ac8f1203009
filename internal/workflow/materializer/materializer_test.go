package materializer

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaflow/internal/interview/events"
	"visaflow/internal/workflow/store/memory"
	id "visaflow/pkg/domain"
)

func newService(t *testing.T) (*Service, *memory.InMemoryStore) {
	t.Helper()
	st := memory.New()
	svc, err := New(st, slog.Default())
	require.NoError(t, err)
	return svc, st
}

func newUserID(t *testing.T) id.UserID {
	t.Helper()
	userID, err := id.ParseUserID(uuid.NewString())
	require.NoError(t, err)
	return userID
}

func TestMaterialize_ParsesStepsAndTotals(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	userID := newUserID(t)

	doc := `{
		"steps":[
			{"name":"Apply online","description":"Submit the ESTA form.","estimatedCost":21,"estimatedTimeDays":1,"documents":["passport"]},
			{"name":"Await approval","estimatedCost":0,"estimatedTimeDays":3}
		],
		"estimatedTotalCost":21,
		"estimatedTotalTimeDays":4
	}`
	require.NoError(t, svc.Materialize(ctx, userID, "ESTA", doc))

	plan, err := st.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, id.VisaCode("ESTA"), plan.VisaCode)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "Apply online", plan.Steps[0].Name)
	assert.Equal(t, []string{"passport"}, plan.Steps[0].Documents)
	assert.Equal(t, 21.0, plan.EstimatedTotalCost)
	assert.Equal(t, 4, plan.EstimatedTotalTimeDays)
}

func TestMaterialize_ComputesMissingTotals(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	userID := newUserID(t)

	doc := `{"steps":[
		{"name":"File petition","estimatedCost":460,"estimatedTimeDays":30},
		{"name":"Attend interview","estimatedCost":190,"estimatedTimeDays":14}
	]}`
	require.NoError(t, svc.Materialize(ctx, userID, "H-1B", doc))

	plan, err := st.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 650.0, plan.EstimatedTotalCost)
	assert.Equal(t, 44, plan.EstimatedTotalTimeDays)
}

func TestMaterialize_DropsUnnamedSteps(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	userID := newUserID(t)

	doc := `{"steps":[{"name":"  "},{"name":"Real step","estimatedCost":10}]}`
	require.NoError(t, svc.Materialize(ctx, userID, "B-2", doc))

	plan, err := st.Get(ctx, userID)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "Real step", plan.Steps[0].Name)
}

func TestMaterialize_NeverProducesAnEmptyPlan(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	userID := newUserID(t)

	require.NoError(t, svc.Materialize(ctx, userID, "F-1", `{"steps":[]}`))

	plan, err := st.Get(ctx, userID)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Contains(t, plan.Steps[0].Description, "F-1")
}

func TestMaterialize_RejectsUnparseableDocuments(t *testing.T) {
	svc, _ := newService(t)
	err := svc.Materialize(context.Background(), newUserID(t), "B-1", "not a document")
	assert.Error(t, err)
}

func TestHandleCompleted(t *testing.T) {
	t.Run("materializes a valid event", func(t *testing.T) {
		svc, st := newService(t)
		ctx := context.Background()
		userID := newUserID(t)

		err := svc.HandleCompleted(ctx, events.CompletedEvent{
			EventID:          uuid.NewString(),
			UserID:           userID.String(),
			VisaCode:         "ESTA",
			WorkflowDocument: `{"steps":[{"name":"Apply online"}]}`,
			CompletedAt:      time.Now(),
		})
		require.NoError(t, err)

		plan, err := st.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, id.VisaCode("ESTA"), plan.VisaCode)
	})

	t.Run("rejects a malformed user id", func(t *testing.T) {
		svc, _ := newService(t)
		err := svc.HandleCompleted(context.Background(), events.CompletedEvent{
			UserID:   "not-a-uuid",
			VisaCode: "ESTA",
		})
		assert.Error(t, err)
	})
}

func TestChannelPublisherAndWorker(t *testing.T) {
	svc, st := newService(t)
	userID := newUserID(t)

	publisher := NewChannelPublisher(8, slog.Default())
	worker := NewWorker(svc, publisher, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	publisher.PublishCompleted(ctx, events.CompletedEvent{
		EventID:          uuid.NewString(),
		UserID:           userID.String(),
		VisaCode:         "B-2",
		WorkflowDocument: `{"steps":[{"name":"Book appointment"}]}`,
		CompletedAt:      time.Now(),
	})

	require.Eventually(t, func() bool {
		_, err := st.Get(context.Background(), userID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "the worker never materialized the event")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancellation")
	}
}

func TestChannelPublisher_DropsWhenFull(t *testing.T) {
	publisher := NewChannelPublisher(1, slog.Default())
	ctx := context.Background()

	// No worker draining: the second publish must not block.
	publisher.PublishCompleted(ctx, events.CompletedEvent{EventID: "1"})
	doneCh := make(chan struct{})
	go func() {
		publisher.PublishCompleted(ctx, events.CompletedEvent{EventID: "2"})
		close(doneCh)
	}()
	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full inbox")
	}
}
