package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/rxsync/internal/cli"
	"github.com/Veraticus/rxsync/internal/config"
	"github.com/Veraticus/rxsync/internal/engine"
	"github.com/Veraticus/rxsync/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Update formulary prices from a supplier invoice",
		Long: `Reconcile the formulary against a supplier invoice.

Every priced dose in the formulary is compared with the invoice price table.
Confident matches update the price directly; matches whose name only partly
agrees are shown for confirmation unless --yes or --no is given.`,
		Example: `  rxsync reconcile --formulary formulary.md --invoice march.csv
  rxsync reconcile --formulary formulary.md --invoice march.xlsx --pricetable rxsync-out/pricetable.tsv --no`,
		RunE: runReconcile,
	}

	cmd.Flags().StringP("formulary", "f", "", "formulary document (Markdown)")
	cmd.Flags().StringP("invoice", "i", "", "supplier invoice (.csv, .tsv, .txt or .xlsx)")
	cmd.Flags().StringP("pricetable", "p", "", "previous price table to merge with the invoice")

	cmd.Flags().StringP("out-dir", "o", "rxsync-out", "directory for relative output names")
	cmd.Flags().String("out-formulary", "formulary.md", "updated formulary output (empty to skip)")
	cmd.Flags().String("out-doses", "doses.tsv", "per-dose table output (empty to skip)")
	cmd.Flags().String("out-pricetable", "pricetable.tsv", "price table output (empty to skip)")
	cmd.Flags().String("report", "changes.xlsx", "XLSX change report output (empty to skip)")

	cmd.Flags().Bool("dry-run", false, "reconcile without writing any output")
	cmd.Flags().String("confirm", config.ConfirmAsk, "ambiguous matches: ask, yes or no")
	cmd.Flags().Bool("yes", false, "accept every ambiguous match (same as --confirm yes)")
	cmd.Flags().Bool("no", false, "decline every ambiguous match (same as --confirm no)")
	cmd.Flags().Duration("confirm-timeout", 0, "keep the current price when a prompt is unanswered this long (0 waits forever)")
	cmd.Flags().Bool("progress", false, "show a progress bar")
	cmd.MarkFlagsMutuallyExclusive("yes", "no")

	_ = viper.BindPFlag(config.KeyFormulary, cmd.Flags().Lookup("formulary"))
	_ = viper.BindPFlag(config.KeyInvoice, cmd.Flags().Lookup("invoice"))
	_ = viper.BindPFlag(config.KeyPriceTable, cmd.Flags().Lookup("pricetable"))
	_ = viper.BindPFlag(config.KeyOutputDir, cmd.Flags().Lookup("out-dir"))
	_ = viper.BindPFlag(config.KeyOutputFormulary, cmd.Flags().Lookup("out-formulary"))
	_ = viper.BindPFlag(config.KeyOutputDoses, cmd.Flags().Lookup("out-doses"))
	_ = viper.BindPFlag(config.KeyOutputPriceTable, cmd.Flags().Lookup("out-pricetable"))
	_ = viper.BindPFlag(config.KeyOutputReport, cmd.Flags().Lookup("report"))
	_ = viper.BindPFlag(config.KeyDryRun, cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag(config.KeyConfirm, cmd.Flags().Lookup("confirm"))
	_ = viper.BindPFlag(config.KeyConfirmTimeout, cmd.Flags().Lookup("confirm-timeout"))
	_ = viper.BindPFlag(config.KeyProgress, cmd.Flags().Lookup("progress"))

	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		viper.Set(config.KeyConfirm, config.ConfirmYes)
	}
	if no, _ := cmd.Flags().GetBool("no"); no {
		viper.Set(config.KeyConfirm, config.ConfirmNo)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	opts := reconcileOptions(cfg)

	var progress *cli.Progress
	if cfg.Reconcile.Progress {
		opts.Start = func(total int) { progress = cli.NewProgress(cmd.ErrOrStderr(), total) }
		opts.Progress = func() { progress.Step() }
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := handler.HandleInterrupts(cmd.Context(), cfg.Reconcile.DryRun)

	resolver := newResolver(cfg.Reconcile, cmd.InOrStdin(), out)
	slog.Debug("Starting reconcile",
		"formulary", opts.FormularyPath,
		"invoice", opts.InvoicePath,
		"pricetable", opts.PriceTablePath,
		"confirm", cfg.Reconcile.Confirm)

	summary, err := pipeline.Run(ctx, opts, resolver)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		if handler.WasInterrupted() {
			return nil
		}
		if summary != nil && len(summary.Outputs) > 0 {
			slog.Warn("Some outputs were written before the failure", "outputs", summary.Outputs)
		}
		return err
	}

	if _, err := fmt.Fprintln(out, cli.FormatTitle("rxsync")); err != nil {
		slog.Warn("Failed to write title", "error", err)
	}
	cli.ShowSummary(out, summary.Result, summary.Outputs, cfg.Reconcile.DryRun)
	return nil
}

func reconcileOptions(cfg config.Config) pipeline.Options {
	outputs := cfg.Outputs.OutputPaths()
	return pipeline.Options{
		FormularyPath:  cfg.Inputs.Formulary,
		InvoicePath:    cfg.Inputs.Invoice,
		PriceTablePath: cfg.Inputs.PriceTable,
		OutFormulary:   outputs.Formulary,
		OutDoses:       outputs.Doses,
		OutPriceTable:  outputs.PriceTable,
		OutReport:      outputs.Report,
		DryRun:         cfg.Reconcile.DryRun,
	}
}

func newResolver(cfg config.Reconcile, in io.Reader, out io.Writer) engine.Resolver {
	switch cfg.Confirm {
	case config.ConfirmYes:
		return engine.StaticResolver{Accept: true}
	case config.ConfirmNo:
		return engine.StaticResolver{Accept: false}
	default:
		return cli.NewResolver(in, out, cfg.ConfirmTimeout)
	}
}
