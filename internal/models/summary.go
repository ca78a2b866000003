package models

import "time"

// ExclusionReasonNoCohort is recorded when neither the fine nor the coarse
// cohort holds another record to compare against.
const ExclusionReasonNoCohort = "no comparable cohort"

// Exclusion records a transaction that was left out of the scored output.
type Exclusion struct {
	Index    int    `json:"index"` // position in the input table
	ID       int    `json:"id"`
	Town     string `json:"town"`
	FlatType string `json:"flat_type"`
	Address  string `json:"address"`
	Reason   string `json:"reason"`
}

// Diagnostics carries the non-fatal outcomes of a run.
type Diagnostics struct {
	Exclusions []Exclusion `json:"exclusions"`
	// Records whose storey range could not be parsed and took floor level 0.
	StoreyDefaults int `json:"storey_defaults"`
	// Records whose lease start year was missing or malformed and took the
	// placeholder remaining lease.
	LeaseDefaults int `json:"lease_defaults"`
	// Records whose town is missing from the accessibility table.
	AccessibilityDefaults int `json:"accessibility_defaults"`
}

// ExcludedCount returns the number of records left out of the scored table.
func (d *Diagnostics) ExcludedCount() int {
	return len(d.Exclusions)
}

// PriceRange holds the spread of raw sale prices.
type PriceRange struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// ValuationStats partitions the scored table by valuation bucket.
type ValuationStats struct {
	UndervaluedCount  int     `json:"undervalued_count"`
	OvervaluedCount   int     `json:"overvalued_count"`
	FairValueCount    int     `json:"fair_value_count"`
	MaxUndervaluation float64 `json:"max_undervaluation"`
	MaxOvervaluation  float64 `json:"max_overvaluation"` // magnitude of the minimum score
}

// ConfidenceDistribution counts scored records per confidence tier.
type ConfidenceDistribution struct {
	VeryHigh int `json:"very_high"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Summary holds corpus-level statistics over a scored table.
type Summary struct {
	RunID                  string                 `json:"run_id"`
	TotalTransactions      int                    `json:"total_transactions"`
	ExcludedCount          int                    `json:"excluded_count"`
	DateRange              string                 `json:"date_range"`
	Towns                  int                    `json:"towns"`
	FlatTypes              []string               `json:"flat_types"`
	PriceRange             PriceRange             `json:"price_range"`
	UndervaluationStats    ValuationStats         `json:"undervaluation_stats"`
	ConfidenceDistribution ConfidenceDistribution `json:"confidence_distribution"`
	ProcessedAt            time.Time              `json:"processed_at"`
}
