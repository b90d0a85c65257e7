// Package testutil provides input-file fixtures for rxsync tests.
//
// Example:
//
//	path := testutil.NewInvoiceBuilder(t).
//		WithHeader().
//		WithItem("54321", "Aspirin 81mg Tablet", "CARDIO", "3/14/15 09:26", "$0.15").
//		WriteCSV(t.TempDir())
package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Positional invoice columns, mirrored from the supplier export layout.
const (
	itemColumn     = 2
	nameDoseColumn = 3
	categoryColumn = 8
	dateColumn     = 12
	costColumn     = 15
	invoiceWidth   = 18
)

// SampleFormulary is a small formulary document covering blacklisted drugs,
// annotations, ranges and subcategories.
const SampleFormulary = `# Formulary

* ANALGESICS
> ~Acetaminophen (Tylenol) - oral | $0.10 (325mg), $0.12 (500mg) | Oral
> Aspirin | $0.10 (81mg), $0.12 (325mg) | Oral
> Ibuprofen (Advil) | $0.50 (200mg), $1.00-$1.50 (400mg)
* ANTIBIOTICS
> Amox | $0.20 (250mg) | Oral
`

// InvoiceBuilder assembles supplier invoice rows.
type InvoiceBuilder struct {
	t    *testing.T
	rows [][]string
}

// NewInvoiceBuilder creates an empty invoice.
func NewInvoiceBuilder(t *testing.T) *InvoiceBuilder {
	t.Helper()
	return &InvoiceBuilder{t: t}
}

// WithHeader adds the column-title row suppliers put first.
func (b *InvoiceBuilder) WithHeader() *InvoiceBuilder {
	row := make([]string, invoiceWidth)
	row[itemColumn] = "Item"
	row[nameDoseColumn] = "Description"
	row[categoryColumn] = "Category"
	row[dateColumn] = "Req Date"
	row[costColumn] = "Unit Cost"
	b.rows = append(b.rows, row)
	return b
}

// WithItem adds a priced line item.
func (b *InvoiceBuilder) WithItem(item, nameDose, category, date, cost string) *InvoiceBuilder {
	row := make([]string, invoiceWidth)
	row[itemColumn] = item
	row[nameDoseColumn] = nameDose
	row[categoryColumn] = category
	row[dateColumn] = date
	row[costColumn] = cost
	b.rows = append(b.rows, row)
	return b
}

// WithRow adds a raw row.
func (b *InvoiceBuilder) WithRow(fields ...string) *InvoiceBuilder {
	b.rows = append(b.rows, fields)
	return b
}

// Rows returns the rows added so far.
func (b *InvoiceBuilder) Rows() [][]string {
	return b.rows
}

// WriteCSV writes the invoice as invoice.csv in dir and returns its path.
func (b *InvoiceBuilder) WriteCSV(dir string) string {
	b.t.Helper()
	return b.write(dir, "invoice.csv", ',')
}

// WriteTSV writes the invoice as invoice.tsv in dir and returns its path.
func (b *InvoiceBuilder) WriteTSV(dir string) string {
	b.t.Helper()
	return b.write(dir, "invoice.tsv", '\t')
}

func (b *InvoiceBuilder) write(dir, name string, comma rune) string {
	b.t.Helper()

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Comma = comma
	if err := w.WriteAll(b.rows); err != nil {
		b.t.Fatalf("failed to encode invoice: %v", err)
	}
	return WriteFile(b.t, dir, name, sb.String())
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content of path.
func ReadFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
