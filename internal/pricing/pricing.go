// Package pricing holds the static per-model price table used for cost
// estimation. Prices are currency units per 1000 tokens.
package pricing

// FallbackSourceRatePer1K is the flat rate applied to by-source cost
// aggregation regardless of which model produced the tokens. Kept as a
// documented approximation until per-source pricing exists.
const FallbackSourceRatePer1K = 0.02

// Table maps provider to model to price per 1000 tokens.
type Table struct {
	prices map[string]map[string]float64
}

// NewTable builds the default price table.
func NewTable() *Table {
	return &Table{prices: map[string]map[string]float64{
		"qwen": {
			"qwen-max":        0.02,
			"qwen-plus":       0.01,
			"qwen-turbo":      0.005,
			"qwen-coder-plus": 0.01,
		},
		"deepseek": {
			"deepseek-chat":     0.01,
			"deepseek-coder":    0.01,
			"deepseek-reasoner": 0.02,
		},
		"moonshot": {
			"moonshot-v1-8k":   0.02,
			"moonshot-v1-32k":  0.04,
			"moonshot-v1-128k": 0.08,
		},
		"zhipu": {
			"glm-4":       0.02,
			"glm-4-flash": 0.01,
			"glm-3-turbo": 0.005,
		},
		"openai": {
			"gpt-4o-mini":  0.015,
			"gpt-4o":       0.03,
			"gpt-4.1-mini": 0.015,
			"gpt-4.1":      0.05,
		},
		"grok": {
			"grok-2-latest": 0.03,
			"grok-2-mini":   0.015,
			"grok-3":        0.05,
		},
		"gemini": {
			"gemini-1.5-pro":   0.03,
			"gemini-1.5-flash": 0.015,
			"gemini-2.0-flash": 0.02,
		},
	}}
}

// Lookup returns the price per 1000 tokens for a provider/model pair.
// Unknown pairs are free; the caller decides whether that matters.
func (t *Table) Lookup(provider, model string) float64 {
	if t == nil {
		return 0
	}
	models, ok := t.prices[provider]
	if !ok {
		return 0
	}
	return models[model]
}
