package valuation

import (
	"math"
	"sort"
	"strings"

	"github.com/rewired-gh/flatvalue/internal/models"
)

// Summarize reduces a scored table to corpus-level statistics. Run metadata
// (RunID, ExcludedCount, ProcessedAt) and the DateRange of the whole input
// are left for the caller to fill.
// An empty table yields a zero summary with a non-nil FlatTypes slice.
func Summarize(scored []models.Scored, p Params) models.Summary {
	sum := models.Summary{
		TotalTransactions: len(scored),
		FlatTypes:         []string{},
	}
	if len(scored) == 0 {
		return sum
	}

	towns := make(map[string]struct{})
	flatTypes := make(map[string]struct{})
	prices := make([]float64, 0, len(scored))
	maxScore, minScore := math.Inf(-1), math.Inf(1)

	for i := range scored {
		s := &scored[i]
		towns[s.Town] = struct{}{}
		flatTypes[s.FlatType] = struct{}{}
		prices = append(prices, s.Price)


		switch {
		case s.Score > p.UndervaluedThreshold:
			sum.UndervaluationStats.UndervaluedCount++
		case s.Score < p.OvervaluedThreshold:
			sum.UndervaluationStats.OvervaluedCount++
		default:
			sum.UndervaluationStats.FairValueCount++
		}
		maxScore = math.Max(maxScore, s.Score)
		minScore = math.Min(minScore, s.Score)

		switch s.Confidence {
		case models.ConfidenceVeryHigh:
			sum.ConfidenceDistribution.VeryHigh++
		case models.ConfidenceHigh:
			sum.ConfidenceDistribution.High++
		case models.ConfidenceMedium:
			sum.ConfidenceDistribution.Medium++
		case models.ConfidenceLow:
			sum.ConfidenceDistribution.Low++
		}
	}

	sum.Towns = len(towns)
	for ft := range flatTypes {
		sum.FlatTypes = append(sum.FlatTypes, ft)
	}
	sort.Strings(sum.FlatTypes)

	sort.Float64s(prices)
	sum.PriceRange = models.PriceRange{
		Min:    prices[0],
		Max:    prices[len(prices)-1],
		Median: median(prices),
	}

	sum.UndervaluationStats.MaxUndervaluation = maxScore
	sum.UndervaluationStats.MaxOvervaluation = math.Abs(minScore)

	return sum
}

// DateRange returns "first to last" over the months of every input
// transaction, scored or not. Empty months are skipped; "" when none remain.
func DateRange(txns []models.Transaction) string {
	minMonth, maxMonth := "", ""
	for i := range txns {
		m := strings.TrimSpace(txns[i].Month)
		if m == "" {
			continue
		}
		if minMonth == "" || m < minMonth {
			minMonth = m
		}
		if m > maxMonth {
			maxMonth = m
		}
	}
	if minMonth == "" {
		return ""
	}
	return minMonth + " to " + maxMonth
}
