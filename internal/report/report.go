// Package report renders ranked opportunities as Excel workbooks for the
// people who chase the deals.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/logger"
)

const (
	opportunitySheet = "Opportunities"
	summarySheet     = "Summary"
)

// headers is the column order of the opportunity sheet.
var headers = []string{
	"severity",
	"confidence",
	"year",
	"make",
	"model",
	"trim",
	"price",
	"currency",
	"mileage",
	"estimated_market_value",
	"discount_pct",
	"price_variation",
	"quality_score",
	"reasons",
	"source_id",
	"url",
	"scraped_at",
}

// Writer builds opportunity workbooks. Row order follows the input, so
// callers pass ranker-sorted opportunities.
type Writer struct {
	logger logger.Interface
}

// NewWriter creates a report writer.
func NewWriter(log logger.Interface) *Writer {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Writer{logger: log}
}

// Save writes the workbook for the opportunities to path.
func (w *Writer) Save(opportunities []*domain.Opportunity, path string) error {
	f, err := w.workbook(opportunities)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	w.logger.Info("Report written", "path", path, "opportunities", len(opportunities))
	return nil
}

// Write streams the workbook to out.
func (w *Writer) Write(opportunities []*domain.Opportunity, out io.Writer) error {
	f, err := w.workbook(opportunities)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (w *Writer) workbook(opportunities []*domain.Opportunity) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", opportunitySheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	for i, h := range headers {
		if err := setCell(f, opportunitySheet, i+1, 1, h); err != nil {
			return nil, err
		}
	}

	for rowIdx, opp := range opportunities {
		if err := w.writeRow(f, rowIdx+2, opp); err != nil {
			return nil, err
		}
	}

	if err := w.writeSummary(f, opportunities); err != nil {
		return nil, err
	}
	return f, nil
}

func (w *Writer) writeRow(f *excelize.File, row int, opp *domain.Opportunity) error {
	listing := opp.Listing
	if listing == nil {
		listing = &domain.Listing{}
	}
	vehicle := listing.Vehicle

	values := []any{
		string(opp.Severity),
		opp.Confidence,
		intCell(vehicle.Year),
		vehicle.Make,
		vehicle.Model,
		vehicle.Trim,
		floatCell(vehicle.Price),
		vehicle.Currency,
		intCell(vehicle.Mileage),
		floatCell(opp.EstimatedMarketValue),
		discountCell(vehicle.Price, opp.EstimatedMarketValue),
		opp.PriceVariation,
		listing.QualityScore,
		strings.Join(opp.Reasons, "; "),
		listing.SourceID,
		listing.CanonicalURL,
		timeCell(listing.ScrapedAt),
	}
	for col, v := range values {
		if v == nil {
			continue
		}
		if err := setCell(f, opportunitySheet, col+1, row, v); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeSummary(f *excelize.File, opportunities []*domain.Opportunity) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}

	bySeverity := make(map[domain.Severity]int)
	variations := 0
	for _, opp := range opportunities {
		bySeverity[opp.Severity]++
		if opp.PriceVariation {
			variations++
		}
	}

	lines := []struct {
		label string
		value any
	}{
		{"generated_at", time.Now().UTC().Format(time.RFC3339)},
		{"total_opportunities", len(opportunities)},
		{"high", bySeverity[domain.SeverityHigh]},
		{"medium", bySeverity[domain.SeverityMedium]},
		{"low", bySeverity[domain.SeverityLow]},
		{"price_variations", variations},
	}
	for i, line := range lines {
		if err := setCell(f, summarySheet, 1, i+1, line.label); err != nil {
			return err
		}
		if err := setCell(f, summarySheet, 2, i+1, line.value); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to build cell name: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}

func intCell(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatCell(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// discountCell computes the percent below market, one decimal.
func discountCell(price, market *float64) any {
	if price == nil || market == nil || *market <= 0 {
		return nil
	}
	pct := (*market - *price) / *market * 100
	return float64(int(pct*10)) / 10
}

func timeCell(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
