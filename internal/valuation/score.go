package valuation

import "github.com/rewired-gh/flatvalue/internal/models"

// BaseScore is the percentage by which unitPrice sits below the cohort
// median. Positive means cheaper than comparables.
func BaseScore(unitPrice, cohortMedian float64) float64 {
	return (cohortMedian - unitPrice) / cohortMedian * 100
}

// LeaseAdjustment rewards more remaining lease than the town's norm.
func LeaseAdjustment(remainingLease int, townMedianLease, multiplier float64) float64 {
	return (float64(remainingLease) - townMedianLease) * multiplier
}

// AccessibilityAdjustment is linear around the baseline of the 1-10 scale.
func AccessibilityAdjustment(accessibility, baseline int, multiplier float64) float64 {
	return float64(accessibility-baseline) * multiplier
}

// TownMedianLease returns the median remaining lease per town across every
// record given, not just a record's comparable cohort.
func TownMedianLease(records []models.Derived) map[string]float64 {
	byTown := make(map[string][]float64)
	for i := range records {
		byTown[records[i].Town] = append(byTown[records[i].Town], float64(records[i].RemainingLease))
	}
	medians := make(map[string]float64, len(byTown))
	for town, leases := range byTown {
		medians[town] = median(leases)
	}
	return medians
}

// ApplyScores fills the score columns of every record in place. Scores are
// not clamped.
func ApplyScores(scored []models.Scored, townLease map[string]float64, p Params) {
	for i := range scored {
		s := &scored[i]
		s.BaseScore = BaseScore(s.UnitPrice, s.CohortMedianPrice)
		s.LeaseAdjustment = LeaseAdjustment(s.RemainingLease, townLease[s.Town], p.LeaseMultiplier)
		s.AccessibilityAdjustment = AccessibilityAdjustment(s.Accessibility, p.AccessibilityBaseline, p.AccessibilityMultiplier)
		s.Score = s.BaseScore + s.LeaseAdjustment + s.AccessibilityAdjustment
	}
}

// Confidence breakpoints on comparable count, right-closed:
// (0,3] Low, (3,10] Medium, (10,20] High, above 20 Very High.
var (
	confidenceBreaks = []int{3, 10, 20}
	confidenceLabels = []models.Confidence{
		models.ConfidenceLow, models.ConfidenceMedium, models.ConfidenceHigh, models.ConfidenceVeryHigh,
	}
)

// ClassifyConfidence maps a comparable count to its confidence tier.
func ClassifyConfidence(comparableCount int) models.Confidence {
	for i, b := range confidenceBreaks {
		if comparableCount <= b {
			return confidenceLabels[i]
		}
	}
	return confidenceLabels[len(confidenceLabels)-1]
}

// ApplyConfidence labels every record from the count of the cohort that
// supplied its median.
func ApplyConfidence(scored []models.Scored) {
	for i := range scored {
		scored[i].Confidence = ClassifyConfidence(scored[i].ComparableCount)
	}
}
