// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/finmem-dev/finmem/internal/config"
	"github.com/finmem-dev/finmem/internal/secrets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the finmem tool server",
		Long:  "Load configuration, open the transaction store, reconcile the ledger and embedding index, and start the HTTP server.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()

	// Resolve keyring:// URIs before the config is unmarshalled so the
	// embedder sees real credentials.
	secrets.ResolveViperSecrets(v, secrets.NewKeyringStore())

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if v.GetBool("verbose") {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := WireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("closing app", "error", err)
		}
	}()

	// Repair any ledger/index divergence left by a previous crash before
	// serving requests.
	repaired, err := app.Store.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconciling stores: %w", err)
	}
	if repaired > 0 {
		slog.Info("reconciled transaction store", "repairs", repaired)
	}

	slog.Info("starting finmem",
		"listen", cfg.Networking.Listen,
		"data_dir", cfg.DataDir,
		"embedding_provider", cfg.Embedding.Provider,
	)

	return app.Start(ctx)
}
