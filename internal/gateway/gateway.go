// Package gateway is the single chokepoint for outbound model calls: it
// validates caller input, resolves the provider adapter, executes one HTTP
// call, and meters token usage as a best-effort side channel.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/orgdesk/modelgate/internal/metering"
	"github.com/orgdesk/modelgate/internal/provider"
	"github.com/orgdesk/modelgate/internal/util"
)

// DefaultCallTimeout bounds the outbound call when no timeout is configured.
const DefaultCallTimeout = 60 * time.Second

// InvokeRequest carries one gateway invocation.
type InvokeRequest struct {
	Provider string
	Model    string
	Messages []provider.Message
	APIKey   string
	// Source is the caller-supplied attribution descriptor, passed through
	// verbatim to metering.
	Source json.RawMessage
}

// Usage is the normalized token accounting returned to the caller.
type Usage struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	TotalTokens      int64 `json:"totalTokens"`
}

// InvokeResult is the normalized outcome of a successful invocation.
type InvokeResult struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Gateway orchestrates validation, adapter lookup, execution, and metering.
type Gateway struct {
	registry *provider.Registry
	executor *Executor
	recorder *metering.Recorder
	timeout  time.Duration
}

// New constructs a Gateway. recorder may be nil to disable metering.
func New(registry *provider.Registry, executor *Executor, recorder *metering.Recorder, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Gateway{
		registry: registry,
		executor: executor,
		recorder: recorder,
		timeout:  timeout,
	}
}

// ProviderNames lists the providers the gateway can reach.
func (g *Gateway) ProviderNames() []string {
	return g.registry.Names()
}

// Invoke executes one model call. Metering runs after the primary result is
// in hand and can never fail the call.
func (g *Gateway) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	providerName := strings.TrimSpace(req.Provider)
	model := strings.TrimSpace(req.Model)
	if providerName == "" || model == "" || len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: provider, model and messages are required", ErrMissingParameters)
	}

	adapter, errLookup := g.registry.Lookup(providerName)
	if errLookup != nil {
		return nil, errLookup
	}
	if adapter.RequiresAPIKey && strings.TrimSpace(req.APIKey) == "" {
		return nil, fmt.Errorf("%w: %s", ErrAPIKeyRequired, providerName)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, errExecute := g.executor.Execute(callCtx, adapter, model, req.Messages, req.APIKey)
	if errExecute != nil {
		log.WithFields(log.Fields{
			"provider": providerName,
			"model":    model,
			"api_key":  util.HideAPIKey(req.APIKey),
		}).WithError(errExecute).Error("model call failed")
		return nil, errExecute
	}

	if g.recorder != nil {
		g.recorder.Record(ctx, providerName, model, result.Usage, req.Source)
	}

	prompt, completion, total := metering.NormalizeTokens(result.Usage)
	return &InvokeResult{
		Content: result.Content,
		Usage: Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      total,
		},
	}, nil
}
