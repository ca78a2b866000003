package valuation

import (
	"sort"
	"strings"

	"github.com/rewired-gh/flatvalue/internal/models"
)

const keySep = "\x1f"

// KeyFunc extracts a grouping key from a derived record. ok is false when the
// record has no key at this level and takes no part in its cohorts.
type KeyFunc func(d *models.Derived) (key string, ok bool)

// FineKey groups by town, flat type, size bucket and floor bucket. Records
// whose floor level was defaulted have no fine key.
func FineKey(d *models.Derived) (string, bool) {
	if d.FloorDefaulted {
		return "", false
	}
	return strings.Join([]string{d.Town, d.FlatType, string(d.SizeBucket), string(d.FloorBucket)}, keySep), true
}

// CoarseKey groups by town and flat type only.
func CoarseKey(d *models.Derived) (string, bool) {
	return strings.Join([]string{d.Town, d.FlatType}, keySep), true
}

// Cohort is a set of records sharing a grouping key.
type Cohort struct {
	Count  int
	Median float64 // median unit price
}

// CohortTable maps grouping keys to their cohorts.
type CohortTable map[string]Cohort

// BuildCohorts groups records by key and computes each group's member count
// and median unit price.
func BuildCohorts(records []models.Derived, key KeyFunc) CohortTable {
	prices := make(map[string][]float64)
	for i := range records {
		k, ok := key(&records[i])
		if !ok {
			continue
		}
		prices[k] = append(prices[k], records[i].UnitPrice)
	}

	table := make(CohortTable, len(prices))
	for k, ps := range prices {
		table[k] = Cohort{Count: len(ps), Median: median(ps)}
	}
	return table
}

// cohortLevel is one step of the fallback chain. A record takes its median
// from the first level whose cohort has at least minSize members.
type cohortLevel struct {
	name    models.CohortLevel
	key     KeyFunc
	minSize int
}

// fallbackChain lists the grouping levels from most to least specific.
// Append a level here to add another fallback.
func fallbackChain(p Params) []cohortLevel {
	return []cohortLevel{
		{name: models.CohortFine, key: FineKey, minSize: p.fineMinSize()},
		{name: models.CohortCoarse, key: CoarseKey, minSize: minComparableSize},
	}
}

// GroupComparables assigns each record the median and member count of the
// first cohort in the fallback chain that can back it. The value is taken
// whole from a single level, never blended. Records no level can back are
// returned as exclusions. Input order is preserved.
func GroupComparables(records []models.Derived, p Params) ([]models.Scored, []models.Exclusion) {
	chain := fallbackChain(p)
	tables := make([]CohortTable, len(chain))
	for i, level := range chain {
		tables[i] = BuildCohorts(records, level.key)
	}

	scored := make([]models.Scored, 0, len(records))
	var excluded []models.Exclusion

	for i := range records {
		rec := &records[i]
		resolved := false
		for li, level := range chain {
			k, ok := level.key(rec)
			if !ok {
				continue
			}
			c, ok := tables[li][k]
			if !ok || c.Count < level.minSize {
				continue
			}
			scored = append(scored, models.Scored{
				Derived:           *rec,
				CohortMedianPrice: c.Median,
				ComparableCount:   c.Count,
				CohortLevel:       level.name,
			})
			resolved = true
			break
		}
		if !resolved {
			excluded = append(excluded, models.Exclusion{
				Index:    i,
				ID:       rec.ID,
				Town:     rec.Town,
				FlatType: rec.FlatType,
				Address:  rec.FormattedAddress(),
				Reason:   models.ExclusionReasonNoCohort,
			})
		}
	}

	return scored, excluded
}

// median returns the middle value of xs, averaging the two middle values for
// an even count. It sorts a copy; xs is left untouched.
func median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
