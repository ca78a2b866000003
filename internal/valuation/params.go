package valuation

import "fmt"

// Defaults for Params. The multipliers and thresholds are empirical tuning
// knobs; override them through configuration rather than editing these.
const (
	DefaultSqftPerSqm              = 10.764
	DefaultLeaseTermYears          = 99
	DefaultRemainingLease          = 70
	DefaultMinCohortSize           = 2
	DefaultLeaseMultiplier         = 0.2
	DefaultAccessibilityMultiplier = 0.5
	DefaultAccessibilityScore      = 5
	DefaultUndervaluedThreshold    = 10.0
	DefaultOvervaluedThreshold     = -10.0
)

// minComparableSize is the smallest cohort that holds a record plus at least
// one other. It is the only requirement on the last level of the fallback chain.
const minComparableSize = 2

// Params holds the tuning knobs of a valuation run.
type Params struct {
	// SqftPerSqm converts the dataset's square meters to the square feet used
	// for unit prices and size buckets.
	SqftPerSqm float64
	// LeaseTermYears is the statutory lease length added to the lease start year.
	LeaseTermYears int
	// DefaultRemainingLease is used when the lease start year is absent or malformed.
	DefaultRemainingLease int
	// MinCohortSize is the member count a fine-grained cohort needs before its
	// median is trusted. Values below 2 are raised to 2.
	MinCohortSize int
	// LeaseMultiplier scales (remaining lease - town median remaining lease).
	LeaseMultiplier float64
	// AccessibilityMultiplier scales (accessibility score - baseline).
	AccessibilityMultiplier float64
	// AccessibilityBaseline is the neutral point of the 1-10 accessibility scale
	// and the score given to towns missing from the table.
	AccessibilityBaseline int
	// Scores above UndervaluedThreshold count as undervalued, below
	// OvervaluedThreshold as overvalued, anything else as fair.
	UndervaluedThreshold float64
	OvervaluedThreshold  float64
}

// DefaultParams returns the standard tuning.
func DefaultParams() Params {
	return Params{
		SqftPerSqm:              DefaultSqftPerSqm,
		LeaseTermYears:          DefaultLeaseTermYears,
		DefaultRemainingLease:   DefaultRemainingLease,
		MinCohortSize:           DefaultMinCohortSize,
		LeaseMultiplier:         DefaultLeaseMultiplier,
		AccessibilityMultiplier: DefaultAccessibilityMultiplier,
		AccessibilityBaseline:   DefaultAccessibilityScore,
		UndervaluedThreshold:    DefaultUndervaluedThreshold,
		OvervaluedThreshold:     DefaultOvervaluedThreshold,
	}
}

// Validate checks that the parameters describe a usable run.
func (p Params) Validate() error {
	if p.SqftPerSqm <= 0 {
		return fmt.Errorf("sqft per sqm must be positive, got %v", p.SqftPerSqm)
	}
	if p.LeaseTermYears <= 0 {
		return fmt.Errorf("lease term must be positive, got %d", p.LeaseTermYears)
	}
	if p.AccessibilityBaseline < 1 || p.AccessibilityBaseline > 10 {
		return fmt.Errorf("accessibility baseline must be between 1 and 10, got %d", p.AccessibilityBaseline)
	}
	if p.OvervaluedThreshold > p.UndervaluedThreshold {
		return fmt.Errorf("overvalued threshold %v must not exceed undervalued threshold %v",
			p.OvervaluedThreshold, p.UndervaluedThreshold)
	}
	return nil
}

func (p Params) fineMinSize() int {
	if p.MinCohortSize < minComparableSize {
		return minComparableSize
	}
	return p.MinCohortSize
}
