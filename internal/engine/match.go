package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Veraticus/rxsync/internal/model"
)

// MatchKind classifies how a dose entry relates to one invoice record.
type MatchKind int

const (
	// NoMatch means the invoice record is not a candidate.
	NoMatch MatchKind = iota
	// Contained means the name appears in the invoice description but the dose does not.
	Contained
	// Confirmed means every name word and the dose appear in the invoice description.
	Confirmed
	// Ambiguous means the name and dose appear, but not every name word stands alone.
	Ambiguous
)

func (k MatchKind) String() string {
	switch k {
	case Contained:
		return "contained"
	case Confirmed:
		return "confirmed"
	case Ambiguous:
		return "ambiguous"
	default:
		return "none"
	}
}

// Candidate is the evaluation of one entry against one invoice record.
type Candidate struct {
	Kind MatchKind
	Soft bool
}

// Evaluate compares a dose entry with an invoice record. Empty names or doses
// never match.
func Evaluate(entry model.DoseEntry, inv model.InvoiceRecord) Candidate {
	name := strings.ToLower(strings.TrimSpace(entry.Name))
	dose := strings.ToLower(strings.TrimSpace(entry.Dose))
	desc := strings.ToLower(inv.NameDose)

	if name == "" || dose == "" || !strings.Contains(desc, name) {
		return Candidate{Kind: NoMatch}
	}

	soft := SoftMatch(name, desc)
	if !ContainsWord(desc, dose) {
		return Candidate{Kind: Contained, Soft: soft}
	}
	if soft {
		return Candidate{Kind: Confirmed, Soft: true}
	}
	return Candidate{Kind: Ambiguous}
}

// SoftMatch reports whether every whitespace-separated word of name is also a
// word of desc. Comparison is case-insensitive.
func SoftMatch(name, desc string) bool {
	words := strings.Fields(strings.ToLower(name))
	if len(words) == 0 {
		return false
	}

	have := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(desc)) {
		have[w] = struct{}{}
	}

	for _, w := range words {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}

// ContainsWord reports whether needle occurs in s with a word boundary on both
// sides, the way a regular expression \bneedle\b would.
func ContainsWord(s, needle string) bool {
	if needle == "" {
		return false
	}

	for offset := 0; offset <= len(s)-len(needle); {
		i := strings.Index(s[offset:], needle)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(needle)

		if boundaryAt(s, start) && boundaryAt(s, end) {
			return true
		}

		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

// boundaryAt reports whether the word-character status changes at byte offset i.
func boundaryAt(s string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:i])
		before = isWordRune(r)
	}
	if i < len(s) {
		r, _ := utf8.DecodeRuneInString(s[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
