package valuation

import (
	"errors"
	"fmt"

	"github.com/rewired-gh/flatvalue/internal/models"
)

// ErrNotPositive is the cause recorded when a price or area parses but is
// zero, negative or not finite.
var ErrNotPositive = errors.New("must be a positive finite number")

// DataQualityError identifies the first record whose price or area could not
// be coerced. It aborts the run; callers are expected to fix or filter the
// input upstream.
type DataQualityError struct {
	Index int    // position in the input table
	ID    int    // dataset record id
	Field string // dataset column name
	Value string // raw value as received
	Err   error
}

func (e *DataQualityError) Error() string {
	var fe *models.FieldError
	if errors.As(e.Err, &fe) {
		return fmt.Sprintf("data quality error at record %d (id %d): %s=%q: failed %q check",
			e.Index, e.ID, e.Field, e.Value, fe.Rule)
	}
	return fmt.Sprintf("data quality error at record %d (id %d): %s=%q: %v",
		e.Index, e.ID, e.Field, e.Value, e.Err)
}

func (e *DataQualityError) Unwrap() error {
	return e.Err
}
