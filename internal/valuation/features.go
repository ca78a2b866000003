package valuation

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/flatvalue/internal/models"
)

// accessibilityByTown approximates transit and amenity access per town on a
// 1-10 scale. Towns not listed score Params.AccessibilityBaseline.
var accessibilityByTown = map[string]int{
	"ANG MO KIO":      8,
	"BEDOK":           7,
	"BISHAN":          9,
	"BUKIT BATOK":     6,
	"BUKIT MERAH":     8,
	"BUKIT PANJANG":   6,
	"BUKIT TIMAH":     7,
	"CENTRAL AREA":    10,
	"CHOA CHU KANG":   5,
	"CLEMENTI":        7,
	"GEYLANG":         8,
	"HOUGANG":         6,
	"JURONG EAST":     8,
	"JURONG WEST":     6,
	"KALLANG/WHAMPOA": 8,
	"MARINE PARADE":   6,
	"PASIR RIS":       5,
	"PUNGGOL":         7,
	"QUEENSTOWN":      8,
	"SEMBAWANG":       4,
	"SENGKANG":        7,
	"SERANGOON":       8,
	"TAMPINES":        7,
	"TOA PAYOH":       9,
	"WOODLANDS":       6,
	"YISHUN":          6,
}

// Size buckets on area in square feet. Bins are left-closed, so a value equal
// to a breakpoint belongs to the upper bucket (700 is Small).
var (
	sizeBreaks = []float64{700, 900, 1100, 1400}
	sizeLabels = []models.SizeBucket{
		models.SizeVerySmall, models.SizeSmall, models.SizeMedium, models.SizeLarge, models.SizeVeryLarge,
	}
)

// Floor buckets on floor level, left-closed like the size buckets.
var (
	floorBreaks = []float64{5, 12}
	floorLabels = []models.FloorBucket{models.FloorLow, models.FloorMid, models.FloorHigh}
)

// bin returns labels[i] for the first breakpoint the value lies below, or the
// last label when it lies at or above every breakpoint.
func bin[T any](v float64, breaks []float64, labels []T) T {
	for i, b := range breaks {
		if v < b {
			return labels[i]
		}
	}
	return labels[len(labels)-1]
}

// NormalizeLabel upper-cases a town or flat type and collapses whitespace so
// that "bishan" and " BISHAN " group together.
func NormalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// AccessibilityScore looks up a town's score. ok is false for unknown towns,
// which receive the given fallback.
func AccessibilityScore(town string, fallback int) (score int, ok bool) {
	score, ok = accessibilityByTown[NormalizeLabel(town)]
	if !ok {
		return fallback, false
	}
	return score, true
}

// ParseFloorLevel returns the lower bound of a storey range such as "07 TO 09".
// Unparseable input yields 0 with ok false.
func ParseFloorLevel(storeyRange string) (level int, ok bool) {
	fields := strings.Fields(storeyRange)
	if len(fields) == 0 {
		return 0, false
	}
	level, err := strconv.Atoi(fields[0])
	if err != nil || level < 0 {
		return 0, false
	}
	return level, true
}

// RemainingLease estimates the years left on a lease that started in
// leaseStart. A missing or malformed start year yields fallback with ok false.
func RemainingLease(leaseStart string, asOfYear, leaseTerm, fallback int) (years int, ok bool) {
	start, err := strconv.Atoi(strings.TrimSpace(leaseStart))
	if err != nil {
		return fallback, false
	}
	return start + leaseTerm - asOfYear, true
}

// SizeBucketFor bins an area in square feet.
func SizeBucketFor(sqft float64) models.SizeBucket {
	return bin(sqft, sizeBreaks, sizeLabels)
}

// FloorBucketFor bins a floor level.
func FloorBucketFor(level int) models.FloorBucket {
	return bin(float64(level), floorBreaks, floorLabels)
}

func parsePositive(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, ErrNotPositive
	}
	return v, nil
}

// Derive computes the derived attributes of every transaction, in input order.
//
// A transaction with a missing town or flat type, or with a price or area
// that is not a positive number, aborts the run with a *DataQualityError.
// Malformed storey ranges and lease years fall back to their defaults and are
// counted in the returned diagnostics instead. A record with a defaulted
// storey range has no fine cohort, see FineKey.
//
// Town and flat type are normalised with NormalizeLabel before anything is
// keyed on them.
func Derive(txns []models.Transaction, p Params, asOf time.Time) ([]models.Derived, models.Diagnostics, error) {
	var diag models.Diagnostics
	derived := make([]models.Derived, 0, len(txns))
	asOfYear := asOf.Year()

	for i := range txns {
		tx := txns[i]
		tx.Town = NormalizeLabel(tx.Town)
		tx.FlatType = NormalizeLabel(tx.FlatType)

		if err := tx.Validate(); err != nil {
			dqe := &DataQualityError{Index: i, ID: tx.ID, Err: err}
			var fe *models.FieldError
			if errors.As(err, &fe) {
				dqe.Field = fe.Field
				dqe.Value = fe.Value
			}
			return nil, diag, dqe
		}

		areaSqm, err := parsePositive(tx.FloorAreaSqm)
		if err != nil {
			return nil, diag, &DataQualityError{Index: i, ID: tx.ID, Field: "floor_area_sqm", Value: tx.FloorAreaSqm, Err: err}
		}
		price, err := parsePositive(tx.ResalePrice)
		if err != nil {
			return nil, diag, &DataQualityError{Index: i, ID: tx.ID, Field: "resale_price", Value: tx.ResalePrice, Err: err}
		}

		floor, floorOK := ParseFloorLevel(tx.StoreyRange)
		if !floorOK {
			diag.StoreyDefaults++
		}
		lease, ok := RemainingLease(tx.LeaseCommenceDate, asOfYear, p.LeaseTermYears, p.DefaultRemainingLease)
		if !ok {
			diag.LeaseDefaults++
		}
		access, ok := AccessibilityScore(tx.Town, p.AccessibilityBaseline)
		if !ok {
			diag.AccessibilityDefaults++
		}

		areaSqft := areaSqm * p.SqftPerSqm
		derived = append(derived, models.Derived{
			Transaction:    tx,
			AreaSqm:        areaSqm,
			AreaSqft:       areaSqft,
			Price:          price,
			UnitPrice:      price / areaSqft,
			FloorLevel:     floor,
			RemainingLease: lease,
			Accessibility:  access,
			SizeBucket:     SizeBucketFor(areaSqft),
			FloorBucket:    FloorBucketFor(floor),
			FloorDefaulted: !floorOK,
		})
	}

	return derived, diag, nil
}
