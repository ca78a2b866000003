// Package models defines the core domain entities for the flatvalue application.
// These models represent resale transactions as published by the public data API,
// the attributes derived from them, and the scored output of a valuation run.
//
// Terminology (matching the dataset's own naming):
//   - Town: the planning area a flat belongs to. This is the "location" dimension.
//   - Flat type: the room-count class of a flat (e.g. "4 ROOM"). This is the "unit type".
package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names so errors match the dataset columns.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Transaction is one resale event as ingested from the data API.
// Numeric columns are kept as the raw strings the API returns; coercion
// happens during feature derivation so a malformed value can be reported
// against the record that carried it.
type Transaction struct {
	ID                int    `json:"_id"`
	Month             string `json:"month"`
	Town              string `json:"town" validate:"required"`
	FlatType          string `json:"flat_type" validate:"required"`
	Block             string `json:"block"`
	StreetName        string `json:"street_name"`
	StoreyRange       string `json:"storey_range"`
	FloorAreaSqm      string `json:"floor_area_sqm" validate:"required"`
	FlatModel         string `json:"flat_model"`
	LeaseCommenceDate string `json:"lease_commence_date"`
	ResalePrice       string `json:"resale_price" validate:"required"`
}

// FieldError describes the first field that failed validation.
type FieldError struct {
	Field string
	Value string
	Rule  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s=%q failed %q check", e.Field, e.Value, e.Rule)
}

// Validate checks that the fields the valuation depends on are present.
// Numeric coercion of price and area happens later, during feature
// derivation. The returned error is a *FieldError.
func (t *Transaction) Validate() error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &FieldError{
			Field: fe.Field(),
			Value: fmt.Sprint(fe.Value()),
			Rule:  fe.Tag(),
		}
	}
	return err
}

// FormattedAddress returns the display address, e.g. "Block 406, ANG MO KIO AVE 10".
func (t *Transaction) FormattedAddress() string {
	return fmt.Sprintf("Block %s, %s", t.Block, t.StreetName)
}

// DisplayName returns a short human label, e.g. "4 ROOM at ANG MO KIO AVE 10".
func (t *Transaction) DisplayName() string {
	return fmt.Sprintf("%s at %s", t.FlatType, t.StreetName)
}

// Slug returns a stable, URL-friendly identifier built from the display fields.
func (t *Transaction) Slug() string {
	parts := []string{t.Town, t.FlatType, t.StreetName, t.Block}
	for i, p := range parts {
		parts[i] = strings.Join(strings.Fields(strings.ToLower(p)), "-")
	}
	return strings.Join(parts, "-")
}
