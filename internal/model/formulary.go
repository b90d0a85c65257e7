package model

import "strings"

// BlacklistMarker prefixes the name of a drug that is not approved for use.
const BlacklistMarker = "~"

// DoseCost is one priced dose of a formulary drug, e.g. ("$0.50", "200mg").
type DoseCost struct {
	Cost string
	Dose string
}

// FormularyRecord represents one drug line of the formulary document.
type FormularyRecord struct {
	Name        string // Cleaned drug name used for matching
	Label       string // Display text as written, without the blacklist marker
	Category    string
	Subcategory string
	DoseCosts   []DoseCost
	Blacklisted bool
}

// DoseEntries materializes one DoseEntry per dose/cost pair, in source order.
func (r FormularyRecord) DoseEntries() []DoseEntry {
	entries := make([]DoseEntry, 0, len(r.DoseCosts))
	for _, dc := range r.DoseCosts {
		entries = append(entries, DoseEntry{
			NameDose: JoinNameDose(r.Name, dc.Dose),
			Name:     r.Name,
			Dose:     dc.Dose,
			Cost:     dc.Cost,
			Category: r.Category,
		})
	}
	return entries
}

// WithDoseCosts returns a copy of the record carrying the given pairs.
func (r FormularyRecord) WithDoseCosts(pairs []DoseCost) FormularyRecord {
	out := r
	out.DoseCosts = make([]DoseCost, len(pairs))
	copy(out.DoseCosts, pairs)
	return out
}

// DisplayName returns the label if present, otherwise the cleaned name.
func (r FormularyRecord) DisplayName() string {
	if strings.TrimSpace(r.Label) != "" {
		return r.Label
	}
	return r.Name
}

// JoinNameDose builds the "{name} {dose}" key of a dose entry.
func JoinNameDose(name, dose string) string {
	return name + " " + dose
}
