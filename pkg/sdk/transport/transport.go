package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nicktill/thermonest/pkg/errdefs"
	"github.com/nicktill/thermonest/pkg/httpx"
	"github.com/nicktill/thermonest/pkg/ingest"
)

// Errors returned by HTTPTransport.Send for statuses the readings endpoint
// uses. They wrap the matching errdefs sentinel. A rejected batch will be
// rejected again, so callers should drop it rather than retry.
var (
	ErrRejected     = fmt.Errorf("%w: batch rejected", errdefs.ErrValidation)
	ErrUnauthorized = fmt.Errorf("%w: token refused", errdefs.ErrAuth)
	ErrStorageFull  = fmt.Errorf("%w: server storage full", errdefs.ErrStorageFull)
)

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 4 << 10

// Transport defines the interface for delivering readings to the server
type Transport interface {
	Send(ctx context.Context, readings []ingest.Reading) error
}

// HTTPTransport posts batches to the readings endpoint
type HTTPTransport struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTP creates a new HTTP transport. token is sent as a bearer token;
// the readings endpoint rejects anonymous writes.
func NewHTTP(endpoint, token string) (*HTTPTransport, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	return &HTTPTransport{
		endpoint: endpoint,
		token:    token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// Send posts readings as one ingest request
func (t *HTTPTransport) Send(ctx context.Context, readings []ingest.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	jsonData, err := json.Marshal(ingest.IngestRequest{Readings: readings})
	if err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	return nil
}

// statusError maps a non-2xx response to an error, carrying the server's
// message when the body is an httpx.ErrorResponse.
func statusError(resp *http.Response) error {
	detail := ""
	var body httpx.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err == nil && body.Message != "" {
		detail = ": " + body.Message
	}

	var kind error
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		kind = ErrRejected
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = ErrUnauthorized
	case http.StatusInsufficientStorage:
		kind = ErrStorageFull
	default:
		return fmt.Errorf("request failed with status %d%s", resp.StatusCode, detail)
	}
	return fmt.Errorf("%w: request failed with status %d%s", kind, resp.StatusCode, detail)
}
