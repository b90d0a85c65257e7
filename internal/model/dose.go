package model

import "time"

// DoseEntry is a single priced dose of a formulary drug, keyed by "{name} {dose}".
// Entries are values: updates produce a new entry rather than mutating one in place.
type DoseEntry struct {
	RequisitionDate time.Time
	NameDose        string
	Name            string
	Dose            string
	Cost            string
	Category        string
	ItemNumber      string
}

// WithInvoice returns a copy of the entry carrying the invoice's price provenance.
func (e DoseEntry) WithInvoice(inv InvoiceRecord) DoseEntry {
	e.Cost = inv.Cost
	e.ItemNumber = inv.ItemNumber
	e.RequisitionDate = inv.RequisitionDate
	return e
}

// DoseCost converts the entry back into a formulary dose/cost pair.
func (e DoseEntry) DoseCost() DoseCost {
	return DoseCost{Cost: e.Cost, Dose: e.Dose}
}
