// Package oracle talks to the external free-text classification service
// and normalizes its loosely shaped responses.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"visaflow/internal/platform/config"
	id "visaflow/pkg/domain"
	"visaflow/pkg/platform/sentinel"
)

// Client is the oracle round-trip surface consumed by the narrowing engine.
// Every method returns the raw response text; the engine normalizes it.
// Transport failures come back wrapped around sentinel.ErrUnavailable so
// the engine can degrade them uniformly.
type Client interface {
	// Handshake opens an interview: category plus free-text instructions
	// in, nominally a candidate list out.
	Handshake(ctx context.Context, category, instructions string) (string, error)
	// QuestionFor asks the oracle to propose a question discriminating
	// between the given candidates.
	QuestionFor(ctx context.Context, codes []string) (string, error)
	// Filter submits the user's answer against the current candidates.
	Filter(ctx context.Context, codes []string, answer string) (string, error)
	// WorkflowFor requests the workflow document for a single final code.
	WorkflowFor(ctx context.Context, code id.VisaCode) (string, error)
}

// handshakePayload mirrors the oracle's documented handshake request.
type handshakePayload struct {
	Category     string `json:"category"`
	Instructions string `json:"instructions"`
}

// filterPayload mirrors the answer round-trip request.
type filterPayload struct {
	VisaTypes []string `json:"visaTypes"`
	Answer    string   `json:"answer"`
}

// HTTPClient posts JSON payloads to the oracle's classify endpoint. Each
// round-trip carries its own timeout and an immediate-retry budget for
// transport failures; a round that exhausts the budget returns
// sentinel.ErrUnavailable and the engine falls back as if the response
// were unrecognized.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	retries int
	tracer  trace.Tracer
}

// NewHTTPClient builds the oracle HTTP client from configuration.
func NewHTTPClient(cfg config.OracleConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{},
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		tracer:  otel.Tracer("visaflow/oracle"),
	}
}

func (c *HTTPClient) Handshake(ctx context.Context, category, instructions string) (string, error) {
	return c.roundTrip(ctx, "handshake", handshakePayload{Category: category, Instructions: instructions})
}

func (c *HTTPClient) QuestionFor(ctx context.Context, codes []string) (string, error) {
	return c.roundTrip(ctx, "question_for", codes)
}

func (c *HTTPClient) Filter(ctx context.Context, codes []string, answer string) (string, error) {
	return c.roundTrip(ctx, "filter", filterPayload{VisaTypes: codes, Answer: answer})
}

func (c *HTTPClient) WorkflowFor(ctx context.Context, code id.VisaCode) (string, error) {
	return c.roundTrip(ctx, "workflow_for", string(code))
}

// roundTrip posts the payload and returns the raw response body. The
// payload shape alone tells the oracle which round this is; the engine
// never interprets transport-level detail.
func (c *HTTPClient) roundTrip(ctx context.Context, round string, payload any) (string, error) {
	ctx, span := c.tracer.Start(ctx, "oracle.roundTrip",
		trace.WithAttributes(attribute.String("oracle.round", round)))
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal oracle payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		raw, err := c.post(ctx, body)
		if err == nil {
			span.SetAttributes(attribute.Int("oracle.attempts", attempt+1))
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("oracle %s round failed: %w: %w", round, sentinel.ErrUnavailable, lastErr)
}

func (c *HTTPClient) post(ctx context.Context, body []byte) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post to oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read oracle response: %w", err)
	}
	return string(raw), nil
}
