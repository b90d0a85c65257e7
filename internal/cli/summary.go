package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Veraticus/rxsync/internal/engine"
)

// maxListedChanges caps the price changes listed in the summary box.
const maxListedChanges = 15

// ShowSummary writes the reconciliation counters, the price changes and the
// written output files in a box.
func ShowSummary(w io.Writer, result *engine.Result, outputs []string, dryRun bool) {
	if result == nil {
		return
	}
	if _, err := fmt.Fprintln(w, RenderBox(PillIcon+" Reconciliation Complete", FormatSummary(result, outputs, dryRun))); err != nil {
		slog.Warn("Failed to write summary box", "error", err)
	}
}

// FormatSummary renders the body of the summary box.
func FormatSummary(result *engine.Result, outputs []string, dryRun bool) string {
	s := result.Stats

	var b strings.Builder
	b.WriteString(ChartIcon + " Statistics:\n")
	fmt.Fprintf(&b, "  • Dose entries: %d\n", s.Entries)
	fmt.Fprintf(&b, "  • Matches: %d\n", s.Matches)
	fmt.Fprintf(&b, "  • Soft matches: %d\n", s.SoftMatches)
	fmt.Fprintf(&b, "  • Price changes: %d\n", s.PriceChanges)
	fmt.Fprintf(&b, "  • Ambiguous: %d (%d accepted, %d declined)\n", s.Ambiguous, s.Accepted, s.Rejected)
	fmt.Fprintf(&b, "  • Unmatched: %d\n", s.Unmatched)

	if len(result.Changes) > 0 {
		b.WriteString("\nPrice changes:\n")
		for i, c := range result.Changes {
			if i == maxListedChanges {
				fmt.Fprintf(&b, "  … and %d more\n", len(result.Changes)-maxListedChanges)
				break
			}
			fmt.Fprintf(&b, "  %s: %s → %s (#%s)\n", c.NameDose, c.OldCost, WarningStyle.Render(c.NewCost), c.ItemNumber)
		}
	}

	if len(result.MultiMatched) > 0 {
		b.WriteString("\n" + FormatWarning(fmt.Sprintf("%d entries matched more than one invoice line", len(result.MultiMatched))) + "\n")
	}

	b.WriteString("\n")
	switch {
	case dryRun:
		b.WriteString(FormatInfo("Dry run: no files written"))
	case len(outputs) == 0:
		b.WriteString(FormatInfo("No outputs configured"))
	default:
		b.WriteString("Wrote:\n")
		for _, o := range outputs {
			b.WriteString("  " + FormatSuccess(o) + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
