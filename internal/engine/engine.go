// Package engine reconciles formulary dose prices against a supplier price table.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/rxsync/internal/model"
	"github.com/Veraticus/rxsync/internal/pricetable"
)

// ReconciliationEngine matches formulary dose entries to invoice prices.
type ReconciliationEngine struct {
	resolver Resolver
	progress func()
}

// Config holds configuration options for the reconciliation engine.
type Config struct {
	// Progress is called once per dose entry examined.
	Progress func()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{}
}

// New creates a reconciliation engine that sends ambiguous candidates to resolver.
func New(resolver Resolver) *ReconciliationEngine {
	return NewWithConfig(resolver, DefaultConfig())
}

// NewWithConfig creates a reconciliation engine with custom configuration.
func NewWithConfig(resolver Resolver, config Config) *ReconciliationEngine {
	if resolver == nil {
		resolver = StaticResolver{}
	}
	return &ReconciliationEngine{
		resolver: resolver,
		progress: config.Progress,
	}
}

// CountEntries returns the number of dose entries Reconcile will examine.
func CountEntries(records []model.FormularyRecord) int {
	n := 0
	for _, r := range records {
		n += len(r.DoseCosts)
	}
	return n
}

// Reconcile compares every dose entry of records with every record of table,
// in table order. Confirmed candidates with a different cost replace the
// entry's price; ambiguous candidates are put to the resolver. When several
// candidates apply to one entry the last one wins.
func (e *ReconciliationEngine) Reconcile(ctx context.Context, records []model.FormularyRecord, table *pricetable.Table) (*Result, error) {
	invoices := table.Entries()
	result := &Result{
		Records: make([]model.FormularyRecord, 0, len(records)),
	}

	slog.Info("Starting reconciliation",
		"formulary_records", len(records),
		"dose_entries", CountEntries(records),
		"price_table_entries", len(invoices))

	for _, record := range records {
		entries := record.DoseEntries()
		pairs := make([]model.DoseCost, 0, len(entries))

		for _, entry := range entries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			reconciled, err := e.reconcileEntry(ctx, entry, invoices, result)
			if err != nil {
				return nil, err
			}

			result.Entries = append(result.Entries, reconciled)
			pairs = append(pairs, reconciled.DoseCost())

			if e.progress != nil {
				e.progress()
			}
		}

		result.Records = append(result.Records, record.WithDoseCosts(pairs))
	}

	slog.Info("Reconciliation complete",
		"entries", result.Stats.Entries,
		"matches", result.Stats.Matches,
		"price_changes", result.Stats.PriceChanges,
		"soft_matches", result.Stats.SoftMatches,
		"ambiguous", result.Stats.Ambiguous,
		"unmatched", result.Stats.Unmatched)

	return result, nil
}

func (e *ReconciliationEngine) reconcileEntry(ctx context.Context, entry model.DoseEntry, invoices []model.InvoiceRecord, result *Result) (model.DoseEntry, error) {
	result.Stats.Entries++
	current := entry
	applied := 0

	for _, inv := range invoices {
		candidate := Evaluate(current, inv)
		if candidate.Soft {
			result.Stats.SoftMatches++
		}

		switch candidate.Kind {
		case Confirmed:
			result.Stats.Matches++
			applied++
			if !strings.EqualFold(current.Cost, inv.Cost) {
				current = e.applyChange(current, inv, Confirmed, result)
			}

		case Ambiguous:
			result.Stats.Ambiguous++
			match := AmbiguousMatch{Entry: current, Invoice: inv}
			accept, err := e.resolver.Resolve(ctx, match)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return model.DoseEntry{}, err
				}
				return model.DoseEntry{}, fmt.Errorf("failed to resolve %q against %q: %w", current.NameDose, inv.NameDose, err)
			}
			if !accept {
				result.Stats.Rejected++
				result.Declined = append(result.Declined, match)
				continue
			}

			result.Stats.Accepted++
			result.Stats.Matches++
			applied++
			if strings.EqualFold(current.Cost, inv.Cost) {
				current = current.WithInvoice(inv)
			} else {
				current = e.applyChange(current, inv, Ambiguous, result)
			}

		case NoMatch, Contained:
		}
	}

	switch {
	case applied == 0:
		result.Stats.Unmatched++
		result.Unmatched = append(result.Unmatched, current)
		slog.Debug("No invoice match", "name_dose", current.NameDose)
	case applied > 1:
		result.MultiMatched = append(result.MultiMatched, current.NameDose)
		slog.Warn("Multiple invoice records matched dose entry, keeping the last",
			"name_dose", current.NameDose,
			"matches", applied,
			"cost", current.Cost)
	}

	return current, nil
}

func (e *ReconciliationEngine) applyChange(current model.DoseEntry, inv model.InvoiceRecord, kind MatchKind, result *Result) model.DoseEntry {
	updated := current.WithInvoice(inv)

	result.Stats.PriceChanges++
	result.Changes = append(result.Changes, PriceChange{
		NameDose:        current.NameDose,
		Category:        current.Category,
		OldCost:         current.Cost,
		NewCost:         inv.Cost,
		ItemNumber:      inv.ItemNumber,
		InvoiceNameDose: inv.NameDose,
		RequisitionDate: inv.RequisitionDate,
		Kind:            kind,
	})

	slog.Debug("Price change",
		"name_dose", current.NameDose,
		"old_cost", current.Cost,
		"new_cost", inv.Cost,
		"item_number", inv.ItemNumber,
		"match", kind.String())

	return updated
}
