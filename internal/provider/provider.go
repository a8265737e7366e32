// Package provider holds the fixed table of model provider adapters. Each
// adapter reshapes the gateway's message list into the provider's native
// request schema and extracts the reply text plus the raw usage payload from
// the provider's response. Adapters are pure and perform no I/O.
package provider

import (
	"errors"
	"fmt"
)

// ErrUnsupportedProvider indicates a lookup for a provider outside the
// registry.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ErrInvalidResponseFormat indicates the upstream answered successfully but
// the body did not match the provider's expected shape. Callers use it to
// distinguish a contract change from an outage.
var ErrInvalidResponseFormat = errors.New("invalid response format")

// Message is one turn of a chat conversation in the gateway's internal shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RawUsage carries a provider usage payload before normalization. Vendors
// disagree on field names (prompt_tokens vs input_tokens); pointers keep
// "absent" distinguishable from zero so the metering layer can normalize.
type RawUsage struct {
	PromptTokens     *int64 `json:"prompt_tokens,omitempty"`
	CompletionTokens *int64 `json:"completion_tokens,omitempty"`
	InputTokens      *int64 `json:"input_tokens,omitempty"`
	OutputTokens     *int64 `json:"output_tokens,omitempty"`
	TotalTokens      *int64 `json:"total_tokens,omitempty"`
}

// Result is the normalized outcome of one upstream call.
type Result struct {
	Content string
	Usage   RawUsage
}

// Adapter normalizes one provider's wire protocol.
type Adapter struct {
	Name           string
	Endpoint       string
	RequiresAPIKey bool

	// BuildRequest reshapes the conversation into the provider's native
	// request body. The returned value must be JSON-marshalable.
	BuildRequest func(model string, messages []Message) any

	// ParseResponse extracts the reply text and usage payload from a decoded
	// response body.
	ParseResponse func(raw []byte) (*Result, error)
}

// Registry is an immutable provider table built once at process start.
type Registry struct {
	adapters map[string]*Adapter
}

// NewRegistryFromAdapters builds a registry from explicit adapters. Used by
// tests that point adapters at local servers; production code uses
// NewRegistry.
func NewRegistryFromAdapters(adapters ...*Adapter) *Registry {
	table := make(map[string]*Adapter, len(adapters))
	for _, adapter := range adapters {
		if adapter != nil {
			table[adapter.Name] = adapter
		}
	}
	return &Registry{adapters: table}
}

// Lookup returns the adapter for a provider name.
func (r *Registry) Lookup(name string) (*Adapter, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	return adapter, nil
}

// Names lists the registered provider names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
