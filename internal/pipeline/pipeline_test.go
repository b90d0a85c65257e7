package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/Veraticus/rxsync/internal/engine"
	"github.com/Veraticus/rxsync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dir       string
	formulary string
	invoice   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	invoicePath := testutil.NewInvoiceBuilder(t).
		WithHeader().
		WithItem("54321", "Aspirin 81mg Tablet", "CARDIO", "3/14/15 09:26", "$0.15").
		WithItem("11111", "Amoxicillin 250mg", "ABX", "3/14/15 09:30", "$0.25").
		WithItem("99999", "Acetaminophen 500mg", "PAIN", "3/15/15 10:00", "$0.12").
		WithRow("", "", "TOTAL").
		WriteCSV(dir)

	return fixture{
		dir:       dir,
		formulary: testutil.WriteFile(t, dir, "formulary.md", testutil.SampleFormulary),
		invoice:   invoicePath,
	}
}

func (f fixture) options() Options {
	return Options{
		FormularyPath: f.formulary,
		InvoicePath:   f.invoice,
		OutFormulary:  filepath.Join(f.dir, "out", "formulary.md"),
		OutDoses:      filepath.Join(f.dir, "out", "doses.tsv"),
		OutPriceTable: filepath.Join(f.dir, "out", "pricetable.tsv"),
		OutReport:     filepath.Join(f.dir, "out", "changes.xlsx"),
	}
}

func TestRun(t *testing.T) {
	f := newFixture(t)
	opts := f.options()

	started, steps := 0, 0
	opts.Start = func(total int) { started = total }
	opts.Progress = func() { steps++ }

	summary, err := Run(context.Background(), opts, engine.StaticResolver{Accept: false})
	require.NoError(t, err)

	assert.Equal(t, 7, started)
	assert.Equal(t, 7, steps)
	assert.Equal(t, 3, summary.Invoices)
	assert.Equal(t, 3, summary.Table)
	assert.Equal(t, 4, summary.Records)
	assert.Equal(t, engine.Stats{
		Entries:      7,
		Matches:      2,
		SoftMatches:  4,
		PriceChanges: 1,
		Ambiguous:    1,
		Rejected:     1,
		Unmatched:    5,
	}, summary.Result.Stats)
	assert.Equal(t, []string{opts.OutFormulary, opts.OutDoses, opts.OutPriceTable, opts.OutReport}, summary.Outputs)

	out := testutil.ReadFile(t, opts.OutFormulary)
	assert.Contains(t, out, "* ANALGESICS\n")
	assert.Contains(t, out, "> Aspirin | $0.15 (81mg), $0.12 (325mg) | Oral\n")
	assert.Contains(t, out, "> ~Acetaminophen (Tylenol) - oral | $0.10 (325mg), $0.12 (500mg) | Oral\n")
	assert.Contains(t, out, "> Amox | $0.20 (250mg) | Oral\n")

	doses := testutil.ReadFile(t, opts.OutDoses)
	assert.Contains(t, doses, "Aspirin 81mg\t$0.15\tANALGESICS\t54321\t2015-03-14 09:26\n")

	table := testutil.ReadFile(t, opts.OutPriceTable)
	assert.Equal(t, 4, strings.Count(table, "\n"))

	_, err = os.Stat(opts.OutReport)
	assert.NoError(t, err)
}

func TestRun_SecondRunChangesNothing(t *testing.T) {
	f := newFixture(t)
	opts := f.options()

	_, err := Run(context.Background(), opts, engine.StaticResolver{})
	require.NoError(t, err)

	second := opts
	second.FormularyPath = opts.OutFormulary
	second.PriceTablePath = opts.OutPriceTable
	second.OutFormulary = filepath.Join(f.dir, "second", "formulary.md")
	second.OutDoses = ""
	second.OutPriceTable = ""
	second.OutReport = ""

	summary, err := Run(context.Background(), second, engine.StaticResolver{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Result.Stats.PriceChanges)
	assert.Equal(t, testutil.ReadFile(t, opts.OutFormulary), testutil.ReadFile(t, second.OutFormulary))
}

func TestRun_AcceptAmbiguous(t *testing.T) {
	f := newFixture(t)
	opts := f.options()

	resolver := engine.NewMockResolver(true)
	summary, err := Run(context.Background(), opts, resolver)
	require.NoError(t, err)

	assert.Len(t, resolver.Calls(), 1)
	assert.Equal(t, 2, summary.Result.Stats.PriceChanges)
	assert.Contains(t, testutil.ReadFile(t, opts.OutFormulary), "> Amox | $0.25 (250mg) | Oral\n")
}

func TestRun_DryRun(t *testing.T) {
	f := newFixture(t)
	opts := f.options()
	opts.DryRun = true

	summary, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Empty(t, summary.Outputs)

	_, err = os.Stat(filepath.Join(f.dir, "out"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_MissingInputs(t *testing.T) {
	_, err := Run(context.Background(), Options{FormularyPath: "formulary.md"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMissingInput)

	var userErr *common.UserError
	require.True(t, errors.As(err, &userErr))
	assert.Equal(t, "missing required input: invoice", userErr.UserMessage)

	err = Options{}.Validate()
	assert.Equal(t, "missing required input: formulary, invoice", common.UserMessage(err))
}

func TestRun_BadInvoiceWritesNothing(t *testing.T) {
	f := newFixture(t)
	opts := f.options()
	opts.InvoicePath = testutil.NewInvoiceBuilder(t).
		WithItem("54321", "Aspirin 81mg Tablet", "CARDIO", "yesterday", "$0.15").
		WriteTSV(t.TempDir())

	_, err := Run(context.Background(), opts, nil)
	assert.ErrorIs(t, err, common.ErrParse)

	_, err = os.Stat(opts.OutFormulary)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, f.options(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
