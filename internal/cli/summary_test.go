package cli

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/Veraticus/rxsync/internal/engine"
	"github.com/stretchr/testify/assert"
)

func TestFormatSummary(t *testing.T) {
	result := &engine.Result{
		Stats: engine.Stats{Entries: 4, Matches: 2, SoftMatches: 3, PriceChanges: 1, Ambiguous: 2, Accepted: 1, Rejected: 1, Unmatched: 2},
		Changes: []engine.PriceChange{
			{NameDose: "Aspirin 81mg", OldCost: "$0.10", NewCost: "$0.15", ItemNumber: "54321"},
		},
		MultiMatched: []string{"Aspirin 81mg"},
	}

	tests := []struct {
		name     string
		outputs  []string
		dryRun   bool
		expected []string
	}{
		{
			name:     "written outputs",
			outputs:  []string{"formulary.md", "doses.tsv"},
			expected: []string{"Dose entries: 4", "Price changes: 1", "2 (1 accepted, 1 declined)", "Aspirin 81mg: $0.10", "$0.15", "#54321", "formulary.md", "doses.tsv", "matched more than one"},
		},
		{
			name:     "dry run",
			dryRun:   true,
			expected: []string{"Dry run: no files written"},
		},
		{
			name:     "no outputs",
			expected: []string{"No outputs configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatSummary(result, tt.outputs, tt.dryRun)
			for _, want := range tt.expected {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestFormatSummary_TruncatesChanges(t *testing.T) {
	result := &engine.Result{}
	for i := 0; i < maxListedChanges+5; i++ {
		result.Changes = append(result.Changes, engine.PriceChange{NameDose: fmt.Sprintf("drug %d", i)})
	}

	out := FormatSummary(result, nil, true)
	assert.Contains(t, out, "and 5 more")
	assert.NotContains(t, out, fmt.Sprintf("drug %d:", maxListedChanges))
}

func TestShowSummary(t *testing.T) {
	var buf bytes.Buffer
	ShowSummary(&buf, &engine.Result{}, nil, true)
	assert.Contains(t, buf.String(), "Reconciliation Complete")

	buf.Reset()
	ShowSummary(&buf, nil, nil, false)
	assert.Empty(t, buf.String())
}
