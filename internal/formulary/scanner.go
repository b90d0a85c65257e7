package formulary

import (
	"strings"

	"github.com/Veraticus/rxsync/internal/model"
)

// NameParts is the result of reading a raw formulary name field.
type NameParts struct {
	Name        string // Name with annotations removed, used for matching
	Label       string // Field text with the blacklist marker removed
	Blacklisted bool
}

type annotationKind int

const (
	noAnnotation annotationKind = iota
	parenAnnotation
	dashAnnotation
)

const dashSeparator = " - "

// ExtractName strips the blacklist marker and trailing annotations from a raw name field.
//
//	"~Acetaminophen (Tylenol) - oral" -> Name "Acetaminophen", Blacklisted
//	"Ibuprofen (Advil)"               -> Name "Ibuprofen"
//	"(Tylenol) Acetaminophen"         -> Name "Acetaminophen"
func ExtractName(raw string) NameParts {
	text := strings.TrimSpace(raw)

	parts := NameParts{}
	if strings.HasPrefix(text, model.BlacklistMarker) {
		parts.Blacklisted = true
		text = strings.TrimSpace(strings.TrimLeft(text, model.BlacklistMarker))
	}

	parts.Label = text
	parts.Name = cleanName(text)
	return parts
}

func cleanName(text string) string {
	start, kind := annotationStart(text)
	if kind == noAnnotation {
		return text
	}

	if name := strings.TrimSpace(text[:start]); name != "" {
		return name
	}

	if name := annotationFallback(text, kind); name != "" {
		return name
	}
	return text
}

// annotationStart finds the earliest "(" or " - " in text.
func annotationStart(text string) (int, annotationKind) {
	paren := strings.Index(text, "(")
	dash := strings.Index(text, dashSeparator)
	if strings.HasPrefix(text, "- ") {
		dash = 0
	}

	switch {
	case paren < 0 && dash < 0:
		return -1, noAnnotation
	case dash < 0 || (paren >= 0 && paren < dash):
		return paren, parenAnnotation
	default:
		return dash, dashAnnotation
	}
}

// annotationFallback handles an annotation at position 0: prefer the text that
// follows it, then the annotation's own content.
func annotationFallback(text string, kind annotationKind) string {
	if kind == dashAnnotation {
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "-"))
		if rest == "" {
			return ""
		}
		return cleanName(rest)
	}

	closing := strings.Index(text, ")")
	if closing < 0 {
		return strings.TrimSpace(text[1:])
	}

	if rest := strings.TrimSpace(text[closing+1:]); rest != "" {
		return cleanName(rest)
	}
	return strings.TrimSpace(text[1:closing])
}

// ScanDoseCosts extracts every non-overlapping "$cost (dose)" pair from text.
// A cost is "$amount" or a "$amount-$amount" range; an amount is digits with an
// optional decimal part. Exactly one whitespace character separates the cost
// from "(dose)"; the dose may be empty. Text with no priced doses yields no
// pairs.
func ScanDoseCosts(text string) []model.DoseCost {
	var pairs []model.DoseCost

	for i := 0; i < len(text); {
		if text[i] != '$' {
			i++
			continue
		}

		pair, next, ok := scanPair(text, i)
		if !ok {
			i++
			continue
		}

		pairs = append(pairs, pair)
		i = next
	}

	return pairs
}

// scanPair reads one pair starting at the '$' at position start.
func scanPair(text string, start int) (model.DoseCost, int, bool) {
	end, ok := scanAmount(text, start)
	if !ok {
		return model.DoseCost{}, 0, false
	}

	if end+1 < len(text) && text[end] == '-' && text[end+1] == '$' {
		if rangeEnd, ok := scanAmount(text, end+1); ok {
			end = rangeEnd
		}
	}
	cost := text[start:end]

	if end+1 >= len(text) || !isSpace(text[end]) || text[end+1] != '(' {
		return model.DoseCost{}, 0, false
	}

	doseStart := end + 2
	closing := strings.IndexByte(text[doseStart:], ')')
	if closing < 0 {
		return model.DoseCost{}, 0, false
	}

	raw := text[doseStart : doseStart+closing]
	if strings.ContainsAny(raw, "\r\n") {
		return model.DoseCost{}, 0, false
	}

	return model.DoseCost{Cost: cost, Dose: strings.TrimSpace(raw)}, doseStart + closing + 1, true
}

// scanAmount reads "$" digits ["." digits] and returns the index after it.
func scanAmount(text string, start int) (int, bool) {
	if start >= len(text) || text[start] != '$' {
		return 0, false
	}

	pos := start + 1
	digits := pos
	for pos < len(text) && isDigit(text[pos]) {
		pos++
	}
	if pos == digits {
		return 0, false
	}

	if pos < len(text) && text[pos] == '.' {
		pos++
		for pos < len(text) && isDigit(text[pos]) {
			pos++
		}
	}

	return pos, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
