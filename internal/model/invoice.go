// Package model defines the core domain models used throughout the application.
package model

import (
	"strings"
	"time"
)

// InvoiceRecord is a single supplier invoice line item.
type InvoiceRecord struct {
	RequisitionDate time.Time
	ItemNumber      string // 5-digit supplier item identifier
	NameDose        string // Drug name and dose as the supplier spells it
	Cost            string
	Category        string
}

// Key returns the case-normalized nameDose used to deduplicate invoice records.
func (r InvoiceRecord) Key() string {
	return NormalizeKey(r.NameDose)
}

// SupersededBy reports whether other replaces r in a price table.
// Only a strictly later requisition date wins.
func (r InvoiceRecord) SupersededBy(other InvoiceRecord) bool {
	return other.RequisitionDate.After(r.RequisitionDate)
}

// NormalizeKey lower-cases and trims a nameDose string.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
