// Package report computes on-demand usage aggregates and renders them as a
// structured summary, a spreadsheet table, or a formatted document. There is
// no materialized view: every report is a full recomputation over the record
// set, which human-generated chat traffic keeps small.
package report

import (
	"math"

	"github.com/orgdesk/modelgate/internal/models"
	"github.com/orgdesk/modelgate/internal/pricing"
)

// labelUnattributed stands in for records whose source resolved to no label.
const labelUnattributed = "unattributed"

// Stat is one aggregated group of token counts with its estimated cost.
type Stat struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	Cost             float64 `json:"total_cost"`
}

// ProviderModelStat aggregates usage for one (provider, model) pair.
type ProviderModelStat struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Stat
}

// SourceStat aggregates usage for one attribution source.
type SourceStat struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Stat
}

// Summary is the full usage report. Group order is first-seen record order,
// so repeated exports over the same data are byte-stable.
type Summary struct {
	ByProviderModel []ProviderModelStat `json:"byProviderModel"`
	BySource        []SourceStat        `json:"bySource"`
}

// Aggregate groups records by (provider, model) and by source, summing token
// counts and pricing each group. Provider-model cost uses the price table;
// by-source cost uses the flat fallback rate. Unknown prices contribute zero.
func Aggregate(records []models.UsageRecord, prices *pricing.Table) *Summary {
	summary := &Summary{}

	pmIndex := make(map[[2]string]int)
	srcIndex := make(map[[2]string]int)

	for _, record := range records {
		pmKey := [2]string{record.Provider, record.Model}
		idx, seen := pmIndex[pmKey]
		if !seen {
			idx = len(summary.ByProviderModel)
			pmIndex[pmKey] = idx
			summary.ByProviderModel = append(summary.ByProviderModel, ProviderModelStat{
				Provider: record.Provider,
				Model:    record.Model,
			})
		}
		addTokens(&summary.ByProviderModel[idx].Stat, record)

		label := record.SourceLabel
		if label == "" {
			label = labelUnattributed
		}
		srcKey := [2]string{record.SourceType, label}
		idx, seen = srcIndex[srcKey]
		if !seen {
			idx = len(summary.BySource)
			srcIndex[srcKey] = idx
			summary.BySource = append(summary.BySource, SourceStat{
				Type:  record.SourceType,
				Label: label,
			})
		}
		addTokens(&summary.BySource[idx].Stat, record)
	}

	for i := range summary.ByProviderModel {
		group := &summary.ByProviderModel[i]
		group.Cost = roundCost(float64(group.TotalTokens) / 1000 * prices.Lookup(group.Provider, group.Model))
	}
	for i := range summary.BySource {
		group := &summary.BySource[i]
		group.Cost = roundCost(float64(group.TotalTokens) / 1000 * pricing.FallbackSourceRatePer1K)
	}

	return summary
}

// Totals sums every provider-model group into one overall stat.
func (s *Summary) Totals() Stat {
	var totals Stat
	for _, group := range s.ByProviderModel {
		totals.PromptTokens += group.PromptTokens
		totals.CompletionTokens += group.CompletionTokens
		totals.TotalTokens += group.TotalTokens
		totals.Cost = roundCost(totals.Cost + group.Cost)
	}
	return totals
}

func addTokens(stat *Stat, record models.UsageRecord) {
	stat.PromptTokens += record.PromptTokens
	stat.CompletionTokens += record.CompletionTokens
	stat.TotalTokens += record.TotalTokens
}

// roundCost rounds to 4 decimal places, the report's money precision.
func roundCost(value float64) float64 {
	return math.Round(value*10000) / 10000
}
