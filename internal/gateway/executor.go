package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/orgdesk/modelgate/internal/provider"
)

// Executor issues one HTTP POST per gateway invocation. No retries: a failed
// call is the caller's problem to repeat.
type Executor struct {
	client *http.Client
}

// NewExecutor constructs an Executor. When client is nil the default client
// is used; deadlines come from the request context.
func NewExecutor(client *http.Client) *Executor {
	if client == nil {
		client = http.DefaultClient
	}
	return &Executor{client: client}
}

// Execute builds the provider request, posts it, and parses the response
// through the adapter.
func (e *Executor) Execute(ctx context.Context, adapter *provider.Adapter, model string, messages []provider.Message, apiKey string) (*provider.Result, error) {
	body, errMarshal := json.Marshal(adapter.BuildRequest(model, messages))
	if errMarshal != nil {
		return nil, fmt.Errorf("gateway: encode request: %w", errMarshal)
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, adapter.Endpoint, bytes.NewReader(body))
	if errReq != nil {
		return nil, fmt.Errorf("gateway: build request: %w", errReq)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, errDo := e.client.Do(httpReq)
	if errDo != nil {
		if isTimeout(errDo) {
			return nil, fmt.Errorf("%w: %s", ErrUpstreamTimeout, adapter.Name)
		}
		return nil, fmt.Errorf("gateway: call %s: %w", adapter.Name, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		if isTimeout(errRead) {
			return nil, fmt.Errorf("%w: %s", ErrUpstreamTimeout, adapter.Name)
		}
		return nil, fmt.Errorf("gateway: read %s response: %w", adapter.Name, errRead)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	return adapter.ParseResponse(raw)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
