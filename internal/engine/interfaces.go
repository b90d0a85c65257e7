package engine

import (
	"context"

	"github.com/Veraticus/rxsync/internal/model"
)

// AmbiguousMatch is a candidate whose dose matches but whose name words do not
// all appear in the invoice description.
type AmbiguousMatch struct {
	Entry   model.DoseEntry
	Invoice model.InvoiceRecord
}

// Resolver decides ambiguous candidates during reconciliation.
type Resolver interface {
	// Resolve reports whether the invoice price should replace the entry's price.
	Resolve(ctx context.Context, match AmbiguousMatch) (bool, error)
}

// StaticResolver gives the same answer to every ambiguous candidate.
type StaticResolver struct {
	Accept bool
}

// Resolve returns the fixed decision.
func (s StaticResolver) Resolve(ctx context.Context, _ AmbiguousMatch) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Accept, nil
}
