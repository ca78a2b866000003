package models

// SizeBucket is the ordinal size class of a flat, binned on area in square feet.
type SizeBucket string

const (
	SizeVerySmall SizeBucket = "Very Small"
	SizeSmall     SizeBucket = "Small"
	SizeMedium    SizeBucket = "Medium"
	SizeLarge     SizeBucket = "Large"
	SizeVeryLarge SizeBucket = "Very Large"
)

// FloorBucket is the ordinal floor class of a flat, binned on floor level.
type FloorBucket string

const (
	FloorLow  FloorBucket = "Low Floor"
	FloorMid  FloorBucket = "Mid Floor"
	FloorHigh FloorBucket = "High Floor"
)

// Confidence reflects how many comparables backed the median used for a score.
type Confidence string

const (
	ConfidenceLow      Confidence = "Low"
	ConfidenceMedium   Confidence = "Medium"
	ConfidenceHigh     Confidence = "High"
	ConfidenceVeryHigh Confidence = "Very High"
)

// CohortLevel names the grouping level that supplied a record's median.
type CohortLevel string

const (
	CohortFine   CohortLevel = "fine"
	CohortCoarse CohortLevel = "coarse"
)

// Derived extends a Transaction with the attributes computed from its raw fields.
type Derived struct {
	Transaction
	AreaSqm        float64     `json:"area_sqm"`
	AreaSqft       float64     `json:"area_sqft"`
	Price          float64     `json:"price"`
	UnitPrice      float64     `json:"unit_price"` // price per square foot
	FloorLevel     int         `json:"floor_level"`
	RemainingLease int         `json:"remaining_lease_years"`
	Accessibility  int         `json:"accessibility_score"` // 1 (worst) to 10 (best)
	SizeBucket     SizeBucket  `json:"size_bucket"`
	FloorBucket    FloorBucket `json:"floor_bucket"`
	// FloorDefaulted marks a storey range that could not be parsed. The
	// floor bucket is then a placeholder and is not used for grouping.
	FloorDefaulted bool `json:"floor_defaulted"`
}

// Scored extends a Derived record with its comparable median and final score.
//
// Score = BaseScore + LeaseAdjustment + AccessibilityAdjustment. A positive
// score means the flat sold below its comparables.
type Scored struct {
	Derived
	CohortMedianPrice       float64     `json:"cohort_median_price"`
	ComparableCount         int         `json:"comparable_count"`
	CohortLevel             CohortLevel `json:"cohort_level"`
	BaseScore               float64     `json:"base_score"`
	LeaseAdjustment         float64     `json:"lease_adjustment"`
	AccessibilityAdjustment float64     `json:"accessibility_adjustment"`
	Score                   float64     `json:"undervaluation_score"`
	Confidence              Confidence  `json:"valuation_confidence"`
}
