package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/rxsync/internal/engine"
	"github.com/Veraticus/rxsync/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteDoses(t *testing.T) {
	entries := []model.DoseEntry{
		{
			NameDose:        "Aspirin 81mg",
			Cost:            "$0.15",
			Category:        "CARDIO",
			ItemNumber:      "54321",
			RequisitionDate: time.Date(2015, time.March, 14, 9, 26, 0, 0, time.UTC),
		},
		{NameDose: "Lidocaine 4%", Cost: "$2.00", Category: "TOPICAL"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDoses(&buf, entries))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "NAMEDOSE\tCOST\tCATEGORY\tITEMNUM\tREQDATE", lines[0])
	assert.Equal(t, "Aspirin 81mg\t$0.15\tCARDIO\t54321\t2015-03-14 09:26", lines[1])
	assert.Equal(t, "Lidocaine 4%\t$2.00\tTOPICAL\t\t", lines[2])
}

func TestWriteDoseTSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doses.tsv")
	require.NoError(t, WriteDoseTSV(path, []model.DoseEntry{{NameDose: "Aspirin 81mg", Cost: "$0.15"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Aspirin 81mg\t$0.15")
}

func TestCostDelta(t *testing.T) {
	tests := []struct {
		name   string
		old    string
		new    string
		want   string
		wantOK bool
	}{
		{"increase", "$0.10", "$0.15", "0.05", true},
		{"decrease", "$1,200.00", "$1,000.50", "-199.5", true},
		{"no dollar sign", "0.10", "0.10", "0", true},
		{"range", "$1.00-$1.50", "$1.20", "0", false},
		{"text", "$0.10", "call", "0", false},
		{"empty", "", "$1", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CostDelta(tt.old, tt.new)
			assert.Equal(t, tt.wantOK, ok)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestWriteChangeReport(t *testing.T) {
	result := &engine.Result{
		Changes: []engine.PriceChange{
			{
				NameDose:        "Aspirin 81mg",
				Category:        "CARDIO",
				OldCost:         "$0.10",
				NewCost:         "$0.15",
				ItemNumber:      "54321",
				InvoiceNameDose: "aspirin 81mg tablet",
				RequisitionDate: time.Date(2015, time.March, 14, 9, 26, 0, 0, time.UTC),
				Kind:            engine.Confirmed,
			},
			{NameDose: "Ibuprofen 400mg", OldCost: "$1.00-$1.50", NewCost: "$1.20", Kind: engine.Ambiguous},
		},
		Unmatched: []model.DoseEntry{{NameDose: "Lidocaine 4%", Category: "TOPICAL", Cost: "$2.00"}},
		Declined: []engine.AmbiguousMatch{{
			Entry:   model.DoseEntry{NameDose: "Amox 250mg", Cost: "$0.20"},
			Invoice: model.InvoiceRecord{NameDose: "amoxicillin 250mg", Cost: "$0.25", ItemNumber: "11111"},
		}},
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteChangeReport(path, result))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{ChangesSheet, UnmatchedSheet, DeclinedSheet}, f.GetSheetList())

	rows, err := f.GetRows(ChangesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Name/Dose", rows[0][0])
	assert.Equal(t, []string{"Aspirin 81mg", "CARDIO", "$0.10", "$0.15", "0.05", "54321", "aspirin 81mg tablet", "2015-03-14 09:26", "confirmed"}, rows[1])
	assert.Equal(t, "", rows[2][4])
	assert.Equal(t, "ambiguous", rows[2][8])

	unmatched, err := f.GetRows(UnmatchedSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name/Dose", "Category", "Cost"}, {"Lidocaine 4%", "TOPICAL", "$2.00"}}, unmatched)

	declined, err := f.GetRows(DeclinedSheet)
	require.NoError(t, err)
	require.Len(t, declined, 2)
	assert.Equal(t, "amoxicillin 250mg", declined[1][2])
}
