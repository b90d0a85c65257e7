// Package export writes reconciliation outputs: the flattened per-dose table
// and the XLSX change report.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/Veraticus/rxsync/internal/model"
	"github.com/Veraticus/rxsync/internal/pricetable"
)

// DoseHeader is the first row of the per-dose table.
var DoseHeader = []string{"NAMEDOSE", "COST", "CATEGORY", "ITEMNUM", "REQDATE"}

// WriteDoses emits one tab-separated row per dose entry. Entries that never
// matched an invoice have empty ITEMNUM and REQDATE columns.
func WriteDoses(w io.Writer, entries []model.DoseEntry) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintln(bw, strings.Join(DoseHeader, "\t")); err != nil {
		return fmt.Errorf("failed to write dose header: %w", err)
	}

	for _, e := range entries {
		date := ""
		if !e.RequisitionDate.IsZero() {
			date = e.RequisitionDate.Format(pricetable.DateLayout)
		}

		fields := []string{e.NameDose, e.Cost, e.Category, e.ItemNumber, date}
		if _, err := fmt.Fprintln(bw, strings.Join(fields, "\t")); err != nil {
			return fmt.Errorf("failed to write dose row %q: %w", e.NameDose, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush dose table: %w", err)
	}
	return nil
}

// WriteDoseTSV writes the per-dose table to path atomically.
func WriteDoseTSV(path string, entries []model.DoseEntry) error {
	return common.WriteFileAtomic(path, func(w io.Writer) error {
		return WriteDoses(w, entries)
	})
}
