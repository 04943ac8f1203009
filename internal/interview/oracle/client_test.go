package oracle

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaflow/internal/platform/config"
	"visaflow/pkg/platform/sentinel"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(config.OracleConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
		Retries: retries,
	})
}

func TestHTTPClient_FilterPostsVisaTypesAndAnswer(t *testing.T) {
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`["B-2"]`))
	}, 0)

	raw, err := client.Filter(context.Background(), []string{"B-1", "B-2"}, "tourism")
	require.NoError(t, err)
	assert.Equal(t, `["B-2"]`, raw)

	var payload struct {
		VisaTypes []string `json:"visaTypes"`
		Answer    string   `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, []string{"B-1", "B-2"}, payload.VisaTypes)
	assert.Equal(t, "tourism", payload.Answer)
}

func TestHTTPClient_HandshakePostsCategoryAndInstructions(t *testing.T) {
	var gotBody []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`["H-1B"]`))
	}, 0)

	_, err := client.Handshake(context.Background(), "work", "answer tersely")
	require.NoError(t, err)

	var payload struct {
		Category     string `json:"category"`
		Instructions string `json:"instructions"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "work", payload.Category)
	assert.Equal(t, "answer tersely", payload.Instructions)
}

func TestHTTPClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`["B-2"]`))
	}, 2)

	raw, err := client.Filter(context.Background(), []string{"B-1", "B-2"}, "tourism")
	require.NoError(t, err)
	assert.Equal(t, `["B-2"]`, raw)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPClient_ExhaustedRetriesAreUnavailable(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 2)

	_, err := client.Filter(context.Background(), []string{"B-1"}, "tourism")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Equal(t, int32(3), calls.Load(), "one call plus two retries")
}

func TestHTTPClient_CanceledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	}, 5)

	_, err := client.Filter(ctx, []string{"B-1"}, "tourism")
	require.Error(t, err)
	assert.LessOrEqual(t, calls.Load(), int32(2), "cancellation must stop the retry loop")
}
