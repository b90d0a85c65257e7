package export

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/Veraticus/rxsync/internal/engine"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the change report.
const (
	ChangesSheet   = "Price Changes"
	UnmatchedSheet = "Unmatched"
	DeclinedSheet  = "Declined Matches"
)

const reportDateLayout = "2006-01-02 15:04"

// BuildChangeReport lays the price changes, unmatched entries and declined
// candidates of result out as a workbook.
func BuildChangeReport(result *engine.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	// Rename the default sheet so the workbook opens on the changes.
	if err := f.SetSheetName(f.GetSheetName(0), ChangesSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	changes := [][]any{}
	for _, c := range result.Changes {
		var delta any = ""
		if d, ok := CostDelta(c.OldCost, c.NewCost); ok {
			delta = d.InexactFloat64()
		}
		changes = append(changes, []any{
			c.NameDose,
			c.Category,
			c.OldCost,
			c.NewCost,
			delta,
			c.ItemNumber,
			c.InvoiceNameDose,
			formatDate(c),
			c.Kind.String(),
		})
	}
	if err := writeSheet(f, ChangesSheet,
		[]string{"Name/Dose", "Category", "Old Cost", "New Cost", "Change", "Item", "Invoice Description", "Requisition Date", "Match"},
		changes); err != nil {
		return nil, err
	}

	unmatched := [][]any{}
	for _, e := range result.Unmatched {
		unmatched = append(unmatched, []any{e.NameDose, e.Category, e.Cost})
	}
	if err := writeSheet(f, UnmatchedSheet, []string{"Name/Dose", "Category", "Cost"}, unmatched); err != nil {
		return nil, err
	}

	declined := [][]any{}
	for _, m := range result.Declined {
		declined = append(declined, []any{
			m.Entry.NameDose,
			m.Entry.Cost,
			m.Invoice.NameDose,
			m.Invoice.Cost,
			m.Invoice.ItemNumber,
		})
	}
	if err := writeSheet(f, DeclinedSheet, []string{"Name/Dose", "Cost", "Invoice Description", "Invoice Cost", "Item"}, declined); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// WriteChangeReport writes the change report workbook to path atomically.
func WriteChangeReport(path string, result *engine.Result) error {
	f, err := BuildChangeReport(result)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Failed to close workbook", "error", err)
		}
	}()

	return common.WriteFileAtomic(path, func(w io.Writer) error {
		if _, err := f.WriteTo(w); err != nil {
			return fmt.Errorf("failed to write change report: %w", err)
		}
		return nil
	})
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", sheet, err)
		}
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header %q: %w", h, err)
		}
	}

	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
			}
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 32)
	return nil
}

func formatDate(c engine.PriceChange) string {
	if c.RequisitionDate.IsZero() {
		return ""
	}
	return c.RequisitionDate.Format(reportDateLayout)
}
