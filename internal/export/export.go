// Package export writes scored transactions and run summaries to files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/flatvalue/internal/models"
)

const (
	ScoredSheet  = "Scored"
	SummarySheet = "Summary"
)

type column struct {
	header string
	value  func(r *models.Scored) any
}

var columns = []column{
	{"id", func(r *models.Scored) any { return r.ID }},
	{"month", func(r *models.Scored) any { return r.Month }},
	{"town", func(r *models.Scored) any { return r.Town }},
	{"flat_type", func(r *models.Scored) any { return r.FlatType }},
	{"block", func(r *models.Scored) any { return r.Block }},
	{"street_name", func(r *models.Scored) any { return r.StreetName }},
	{"storey_range", func(r *models.Scored) any { return r.StoreyRange }},
	{"flat_model", func(r *models.Scored) any { return r.FlatModel }},
	{"lease_commence_date", func(r *models.Scored) any { return r.LeaseCommenceDate }},
	{"area_sqm", func(r *models.Scored) any { return r.AreaSqm }},
	{"area_sqft", func(r *models.Scored) any { return r.AreaSqft }},
	{"price", func(r *models.Scored) any { return r.Price }},
	{"unit_price", func(r *models.Scored) any { return r.UnitPrice }},
	{"floor_level", func(r *models.Scored) any { return r.FloorLevel }},
	{"remaining_lease_years", func(r *models.Scored) any { return r.RemainingLease }},
	{"accessibility_score", func(r *models.Scored) any { return r.Accessibility }},
	{"size_bucket", func(r *models.Scored) any { return string(r.SizeBucket) }},
	{"floor_bucket", func(r *models.Scored) any { return string(r.FloorBucket) }},
	{"cohort_level", func(r *models.Scored) any { return string(r.CohortLevel) }},
	{"cohort_median_price", func(r *models.Scored) any { return r.CohortMedianPrice }},
	{"comparable_count", func(r *models.Scored) any { return r.ComparableCount }},
	{"base_score", func(r *models.Scored) any { return r.BaseScore }},
	{"lease_adjustment", func(r *models.Scored) any { return r.LeaseAdjustment }},
	{"accessibility_adjustment", func(r *models.Scored) any { return r.AccessibilityAdjustment }},
	{"undervaluation_score", func(r *models.Scored) any { return r.Score }},
	{"valuation_confidence", func(r *models.Scored) any { return string(r.Confidence) }},
}

// Headers returns the column names used by every tabular export.
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}

func formatCell(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, records []models.Scored) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(columns))
	for i := range records {
		for j, c := range columns {
			row[j] = formatCell(c.value(&records[i]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates path (and its directory) and writes the records to it.
func WriteCSVFile(path string, records []models.Scored) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteXLSX writes a workbook with a "Scored" sheet of records and a
// "Summary" sheet of key/value rows.
func WriteXLSX(path string, records []models.Scored, summary models.Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ScoredSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c.header
	}
	if err := f.SetSheetRow(ScoredSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = c.value(&records[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ScoredSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	for i, kv := range summaryRows(summary) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := []any{kv[0], kv[1]}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func summaryRows(s models.Summary) [][2]any {
	return [][2]any{
		{"run_id", s.RunID},
		{"processed_at", s.ProcessedAt.Format(time.RFC3339)},
		{"total_transactions", s.TotalTransactions},
		{"excluded_count", s.ExcludedCount},
		{"date_range", s.DateRange},
		{"towns", s.Towns},
		{"flat_types", strings.Join(s.FlatTypes, ", ")},
		{"price_min", s.PriceRange.Min},
		{"price_max", s.PriceRange.Max},
		{"price_median", s.PriceRange.Median},
		{"undervalued_count", s.UndervaluationStats.UndervaluedCount},
		{"overvalued_count", s.UndervaluationStats.OvervaluedCount},
		{"fair_value_count", s.UndervaluationStats.FairValueCount},
		{"max_undervaluation", s.UndervaluationStats.MaxUndervaluation},
		{"max_overvaluation", s.UndervaluationStats.MaxOvervaluation},
		{"confidence_very_high", s.ConfidenceDistribution.VeryHigh},
		{"confidence_high", s.ConfidenceDistribution.High},
		{"confidence_medium", s.ConfidenceDistribution.Medium},
		{"confidence_low", s.ConfidenceDistribution.Low},
	}
}

// summaryFile is the on-disk layout of the summary JSON.
type summaryFile struct {
	Summary     models.Summary     `json:"summary"`
	Diagnostics models.Diagnostics `json:"diagnostics"`
}

// WriteSummaryJSON writes the summary and diagnostics as indented JSON.
func WriteSummaryJSON(path string, summary models.Summary, diagnostics models.Diagnostics) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if diagnostics.Exclusions == nil {
		diagnostics.Exclusions = []models.Exclusion{}
	}

	data, err := json.MarshalIndent(summaryFile{Summary: summary, Diagnostics: diagnostics}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// TopUndervalued returns up to k records with a positive score, highest
// score first. Ties are broken by ascending id.
func TopUndervalued(records []models.Scored, k int) []models.Scored {
	if k <= 0 {
		return []models.Scored{}
	}

	out := make([]models.Scored, 0, len(records))
	for _, r := range records {
		if r.Score > 0 {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	if len(out) > k {
		out = out[:k]
	}
	return out
}
