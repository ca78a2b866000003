// Package valuation scores resale transactions against comparable flats.
//
// A run flows through five stages, each reading the table the previous one
// produced:
//
//	Derive            raw fields -> unit price, floor level, remaining lease,
//	                  accessibility, size and floor buckets
//	GroupComparables  median unit price from the fine cohort
//	                  (town, flat type, size, floor), falling back to the
//	                  coarse cohort (town, flat type)
//	ApplyScores       score = base deviation + lease adjustment + accessibility adjustment
//	ApplyConfidence   tier from the size of the cohort that supplied the median
//	Summarize         corpus-level counts and extremes; the date range spans
//	                  every input transaction
//
// The package does no I/O and never reads the clock: the as-of time used for
// lease arithmetic is passed in.
package valuation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/flatvalue/internal/logger"
	"github.com/rewired-gh/flatvalue/internal/models"
)

// Engine runs the valuation pipeline with fixed parameters.
type Engine struct {
	params Params
	asOf   time.Time
}

// Result is the output of a completed run.
type Result struct {
	Records     []models.Scored
	Summary     models.Summary
	Diagnostics models.Diagnostics
}

// New creates an Engine. asOf anchors remaining-lease arithmetic and is
// stamped on the summary.
func New(params Params, asOf time.Time) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid valuation params: %w", err)
	}
	return &Engine{params: params, asOf: asOf}, nil
}

// Params returns the engine's tuning.
func (e *Engine) Params() Params {
	return e.params
}

// Run scores every transaction. It either returns a full result, with
// unscoreable records listed in the diagnostics, or a *DataQualityError for
// the first record whose price or area is unusable.
func (e *Engine) Run(txns []models.Transaction) (*Result, error) {
	derived, diag, err := Derive(txns, e.params, e.asOf)
	if err != nil {
		return nil, err
	}

	scored, excluded := GroupComparables(derived, e.params)
	diag.Exclusions = excluded

	ApplyScores(scored, TownMedianLease(derived), e.params)
	ApplyConfidence(scored)

	summary := Summarize(scored, e.params)
	summary.RunID = uuid.New().String()
	summary.ExcludedCount = len(excluded)
	summary.DateRange = DateRange(txns)
	summary.ProcessedAt = e.asOf

	fallbacks := 0
	for i := range scored {
		if scored[i].CohortLevel != models.CohortFine {
			fallbacks++
		}
	}
	logger.Debug("valuation run %s: input=%d scored=%d excluded=%d coarse_fallbacks=%d storey_defaults=%d lease_defaults=%d accessibility_defaults=%d",
		summary.RunID, len(txns), len(scored), len(excluded), fallbacks,
		diag.StoreyDefaults, diag.LeaseDefaults, diag.AccessibilityDefaults)

	return &Result{Records: scored, Summary: summary, Diagnostics: diag}, nil
}
