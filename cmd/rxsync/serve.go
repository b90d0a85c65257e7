package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/rxsync/internal/config"
	"github.com/Veraticus/rxsync/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload front end",
		Long: `Serve an HTTP endpoint that accepts a formulary, an invoice and an optional
price table, runs the reconciliation and offers the outputs for download.

Ambiguous matches are never applied by the server; they are listed in the
response for review.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("upload-dir", "", "directory for uploads and run outputs")
	cmd.Flags().Int64("max-upload-mb", 32, "maximum total upload size in MB")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate")
	cmd.Flags().StringSlice("tls-host", nil, "extra host name or IP the certificate covers (repeatable)")
	cmd.Flags().Duration("retention", 24*time.Hour, "delete upload runs older than this (0 keeps them)")

	_ = viper.BindPFlag(config.KeyServerAddr, cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag(config.KeyMaxUploadMB, cmd.Flags().Lookup("max-upload-mb"))
	_ = viper.BindPFlag(config.KeyTLS, cmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag(config.KeyTLSHosts, cmd.Flags().Lookup("tls-host"))
	_ = viper.BindPFlag(config.KeyRetention, cmd.Flags().Lookup("retention"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	if dir, _ := cmd.Flags().GetString("upload-dir"); dir != "" {
		viper.Set(config.KeyUploadDir, dir)
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	srv := server.New(cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
