// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package main

import (
	"context"
	"errors"
	"os"

	"github.com/finmem-dev/finmem/internal/config"
	"github.com/finmem-dev/finmem/internal/embed"
	"github.com/finmem-dev/finmem/internal/server"
	"github.com/finmem-dev/finmem/internal/store"
	"github.com/finmem-dev/finmem/internal/store/jsonledger"
	_ "github.com/finmem-dev/finmem/internal/store/sqlite" // register sqlite backend
	finerr "github.com/finmem-dev/finmem/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Server *server.Server
	Store  *store.TransactionStore
	Query  *store.QueryEngine
}

// WireApp creates all subsystems and wires them together. The configured
// data directory is the root for all persistent state: the ledger file and
// the embedding index both live under it.
func WireApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, finerr.Errorf(finerr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. Embedder — the index side of the store depends on it.
	emb, err := buildEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. Ledger — the durable source of truth.
	ledger, err := jsonledger.Open(cfg.DataDir)
	if err != nil {
		return nil, finerr.Wrapf(err, finerr.CodeCLISetupFailure, "opening transaction ledger")
	}

	// 3. Embedding index.
	index, err := store.NewEmbeddingIndex(cfg.Storage.IndexBackend, cfg.DataDir, emb)
	if err != nil {
		_ = ledger.Close()
		return nil, finerr.Errorf(finerr.CodeCLISetupFailure, "creating embedding index: %w", err)
	}

	ts := store.NewTransactionStore(ledger, index)

	// 4. HTTP server with the tool operations.
	srv, err := server.New(server.Config{
		ListenAddr: cfg.Networking.Listen,
	})
	if err != nil {
		_ = ts.Close()
		return nil, finerr.Errorf(finerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	qe := store.NewQueryEngine(ts)
	srv.RegisterTools(ts, qe)

	return &App{
		Server: srv,
		Store:  ts,
		Query:  qe,
	}, nil
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) error {
	return a.Server.Start(ctx)
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildEmbedder creates the embedder named by the config. The local provider
// needs no credentials and is the default; openai and google require an
// api_key (possibly resolved from the OS keyring).
func buildEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "", "local":
		dims := cfg.Embedding.Dimensions
		if dims <= 0 {
			dims = embed.DefaultLocalDimensions
		}
		return embed.NewLocal(dims), nil

	case "openai":
		return embed.NewOpenAI(embed.OpenAIConfig{
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})

	case "google":
		return embed.NewGoogle(ctx, embed.GoogleConfig{
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})

	default:
		return nil, finerr.Errorf(finerr.CodeConfigValidateInvalidValue,
			"unknown embedding provider %q", cfg.Embedding.Provider)
	}
}
