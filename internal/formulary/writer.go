package formulary

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/Veraticus/rxsync/internal/model"
)

// Write serializes records back into the Markdown convention. A category header
// is emitted whenever the category differs from the previous record's; source
// order is preserved.
func Write(w io.Writer, records []model.FormularyRecord) error {
	bw := bufio.NewWriter(w)

	previous := ""
	for i, record := range records {
		if (i == 0 && record.Category != "") || (i > 0 && record.Category != previous) {
			if _, err := fmt.Fprintf(bw, "%s %s\n", categoryPrefix, record.Category); err != nil {
				return fmt.Errorf("failed to write category header: %w", err)
			}
		}
		previous = record.Category

		if _, err := fmt.Fprintln(bw, FormatRecord(record)); err != nil {
			return fmt.Errorf("failed to write formulary entry %q: %w", record.Name, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush formulary: %w", err)
	}
	return nil
}

// FormatRecord renders one "> [~]name | cost (dose), ... | subcategory" line.
func FormatRecord(record model.FormularyRecord) string {
	var b strings.Builder
	b.WriteString(entryPrefix + " ")
	if record.Blacklisted {
		b.WriteString(model.BlacklistMarker)
	}
	b.WriteString(record.DisplayName())
	b.WriteString(" " + fieldSeparator + " ")
	b.WriteString(FormatDoseCosts(record.DoseCosts))
	if record.Subcategory != "" {
		b.WriteString(" " + fieldSeparator + " ")
		b.WriteString(record.Subcategory)
	}
	return b.String()
}

// FormatDoseCosts renders pairs as "cost (dose), cost (dose)".
func FormatDoseCosts(pairs []model.DoseCost) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s (%s)", p.Cost, p.Dose))
	}
	return strings.Join(parts, ", ")
}

// WriteFile writes records to path atomically.
func WriteFile(path string, records []model.FormularyRecord) error {
	return common.WriteFileAtomic(path, func(w io.Writer) error {
		return Write(w, records)
	})
}
