package engine

import (
	"time"

	"github.com/Veraticus/rxsync/internal/model"
)

// Stats counts the outcomes of a reconciliation pass.
type Stats struct {
	Entries      int // Dose entries examined
	Matches      int // Confirmed plus operator-accepted candidates
	SoftMatches  int // Candidates whose name words all appear in the invoice
	PriceChanges int
	Ambiguous    int // Candidates sent to the resolver
	Accepted     int
	Rejected     int
	Unmatched    int // Entries with no confirmed or accepted candidate
}

// PriceChange records one cost replacement applied to a dose entry.
type PriceChange struct {
	RequisitionDate time.Time
	NameDose        string
	Category        string
	OldCost         string
	NewCost         string
	ItemNumber      string
	InvoiceNameDose string
	Kind            MatchKind
}

// Result is the outcome of Reconcile. Records and Entries are new values; the
// inputs are left untouched.
type Result struct {
	Records      []model.FormularyRecord
	Entries      []model.DoseEntry
	Changes      []PriceChange
	Unmatched    []model.DoseEntry
	Declined     []AmbiguousMatch
	MultiMatched []string
	Stats        Stats
}
