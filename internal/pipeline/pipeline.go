// Package pipeline runs one reconciliation from input files to output files.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/Veraticus/rxsync/internal/engine"
	"github.com/Veraticus/rxsync/internal/export"
	"github.com/Veraticus/rxsync/internal/formulary"
	"github.com/Veraticus/rxsync/internal/invoice"
	"github.com/Veraticus/rxsync/internal/pricetable"
)

// Options names the inputs and outputs of a run. Empty output paths are skipped.
type Options struct {
	// Start is called with the number of dose entries before matching begins.
	Start func(total int)
	// Progress is called once per dose entry.
	Progress func()

	FormularyPath  string
	InvoicePath    string
	PriceTablePath string // Previously written price table to merge, optional

	OutFormulary  string
	OutDoses      string
	OutPriceTable string
	OutReport     string

	DryRun bool
}

// Summary describes a completed run.
type Summary struct {
	Result   *engine.Result
	Outputs  []string
	Invoices int // Invoice line items read
	Table    int // Distinct nameDose keys in the price table
	Records  int // Formulary drug records read
	Duration time.Duration
}

// Validate checks that the required inputs are named.
func (o Options) Validate() error {
	var missing []string
	if strings.TrimSpace(o.FormularyPath) == "" {
		missing = append(missing, "formulary")
	}
	if strings.TrimSpace(o.InvoicePath) == "" {
		missing = append(missing, "invoice")
	}
	if len(missing) > 0 {
		return common.NewUserError(
			fmt.Sprintf("missing required input: %s", strings.Join(missing, ", ")),
			common.ErrMissingInput)
	}
	return nil
}

// Run reads the inputs, reconciles the formulary against the invoice prices and
// writes every configured output. Outputs are written only after matching
// finishes; nothing is written on error or cancellation.
func Run(ctx context.Context, opts Options, resolver engine.Resolver) (*Summary, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	invoices, err := invoice.ReadFile(opts.InvoicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice: %w", err)
	}

	table := pricetable.New()
	if opts.PriceTablePath != "" {
		previous, err := pricetable.ReadTSV(opts.PriceTablePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read price table: %w", err)
		}
		table.AddAll(previous)
		slog.Info("Seeded price table", "path", opts.PriceTablePath, "entries", table.Len())
	}
	updated := table.AddAll(invoices)
	slog.Info("Built price table", "invoice_records", len(invoices), "entries", table.Len(), "updated", updated)

	records, err := formulary.ParseFile(opts.FormularyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read formulary: %w", err)
	}

	if opts.Start != nil {
		opts.Start(engine.CountEntries(records))
	}

	eng := engine.NewWithConfig(resolver, engine.Config{Progress: opts.Progress})
	result, err := eng.Reconcile(ctx, records, table)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Result:   result,
		Invoices: len(invoices),
		Table:    table.Len(),
		Records:  len(records),
	}

	if opts.DryRun {
		slog.Info("Dry run, skipping outputs")
	} else {
		outputs, err := writeOutputs(opts, result, table)
		summary.Outputs = outputs
		if err != nil {
			return summary, err
		}
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

type output struct {
	write func(path string) error
	path  string
}

func writeOutputs(opts Options, result *engine.Result, table *pricetable.Table) ([]string, error) {
	outputs := []output{
		{path: opts.OutFormulary, write: func(p string) error { return formulary.WriteFile(p, result.Records) }},
		{path: opts.OutDoses, write: func(p string) error { return export.WriteDoseTSV(p, result.Entries) }},
		{path: opts.OutPriceTable, write: func(p string) error { return pricetable.WriteTSV(p, table) }},
		{path: opts.OutReport, write: func(p string) error { return export.WriteChangeReport(p, result) }},
	}

	var written []string
	for _, o := range outputs {
		if o.path == "" {
			continue
		}
		if err := o.write(o.path); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", o.path, err)
		}
		slog.Info("Wrote output", "path", o.path)
		written = append(written, o.path)
	}
	return written, nil
}
