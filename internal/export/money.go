package export

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseCost reads a single "$1.25" amount. Ranges such as "$1.00-$1.50" and
// other text are not single amounts.
func ParseCost(cost string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(cost)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || strings.ContainsAny(s, "-$ ") {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// CostDelta returns newCost minus oldCost when both are single amounts.
func CostDelta(oldCost, newCost string) (decimal.Decimal, bool) {
	before, ok := ParseCost(oldCost)
	if !ok {
		return decimal.Zero, false
	}
	after, ok := ParseCost(newCost)
	if !ok {
		return decimal.Zero, false
	}
	return after.Sub(before), true
}
