// Package pricetable deduplicates invoice records into one price per nameDose.
package pricetable

import (
	"github.com/Veraticus/rxsync/internal/model"
)

// Table maps a normalized nameDose to the most recently requisitioned invoice
// record for it. Iteration follows the order in which keys were first added.
type Table struct {
	records map[string]model.InvoiceRecord
	keys    []string
}

// New returns an empty table.
func New() *Table {
	return &Table{records: make(map[string]model.InvoiceRecord)}
}

// Build creates a table from records in the order given.
func Build(records []model.InvoiceRecord) *Table {
	t := New()
	t.AddAll(records)
	return t
}

// Add inserts record under its key. An existing record is replaced only when
// record carries a strictly later requisition date. Reports whether the table
// changed.
func (t *Table) Add(record model.InvoiceRecord) bool {
	key := record.Key()
	existing, ok := t.records[key]
	if !ok {
		t.records[key] = record
		t.keys = append(t.keys, key)
		return true
	}

	if !existing.SupersededBy(record) {
		return false
	}
	t.records[key] = record
	return true
}

// AddAll adds every record and returns how many changed the table.
func (t *Table) AddAll(records []model.InvoiceRecord) int {
	changed := 0
	for _, r := range records {
		if t.Add(r) {
			changed++
		}
	}
	return changed
}

// Get looks up a nameDose case-insensitively.
func (t *Table) Get(nameDose string) (model.InvoiceRecord, bool) {
	r, ok := t.records[model.NormalizeKey(nameDose)]
	return r, ok
}

// Len returns the number of distinct keys.
func (t *Table) Len() int {
	return len(t.keys)
}

// Entries returns the records in first-seen key order.
func (t *Table) Entries() []model.InvoiceRecord {
	out := make([]model.InvoiceRecord, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, t.records[k])
	}
	return out
}
