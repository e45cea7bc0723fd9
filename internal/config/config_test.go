// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/finmem-dev/finmem/internal/config"
	finerr "github.com/finmem-dev/finmem/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, "127.0.0.1:18790", cfg.Networking.Listen)
	assert.Equal(t, "sqlite", cfg.Storage.IndexBackend)
	assert.Equal(t, "local", cfg.Embedding.Provider)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FINMEM_DATA_DIR", "/var/lib/finmem")
	t.Setenv("FINMEM_EMBEDDING_PROVIDER", "openai")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/finmem", cfg.DataDir)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "finmem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /data/finmem
networking:
  listen: 0.0.0.0:9000
embedding:
  provider: google
  dimensions: 768
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/finmem", cfg.DataDir)
	assert.Equal(t, "0.0.0.0:9000", cfg.Networking.Listen)
	assert.Equal(t, "google", cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	// File values merge over defaults.
	assert.Equal(t, "sqlite", cfg.Storage.IndexBackend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, finerr.CodeConfigLoadReadFailure, finerr.CodeOf(err))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &config.Config{
		DataDir: "",
		Networking: config.NetworkingConfig{
			Listen: "not-an-address",
		},
		Storage: config.StorageConfig{
			IndexBackend: "postgres",
		},
		Embedding: config.EmbeddingConfig{
			Provider:   "onnx",
			Dimensions: -1,
		},
	}

	errs := cfg.Validate()
	assert.Len(t, errs, 5)
}

func TestValidateListenPortRange(t *testing.T) {
	cfg := &config.Config{
		DataDir:    "/tmp/finmem",
		Networking: config.NetworkingConfig{Listen: "127.0.0.1:99999"},
		Storage:    config.StorageConfig{IndexBackend: "sqlite"},
		Embedding:  config.EmbeddingConfig{Provider: "local"},
	}

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "port must be between")
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := &config.Config{
		DataDir:    "/tmp/finmem",
		Networking: config.NetworkingConfig{Listen: ":8080"},
		Storage:    config.StorageConfig{IndexBackend: "sqlite"},
		Embedding:  config.EmbeddingConfig{Provider: "local"},
	}

	assert.Empty(t, cfg.Validate())
}

func TestBootstrapDefaultConfigIsParseable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "finmem.yaml")
	require.NoError(t, os.WriteFile(path, config.DefaultConfigYAML, 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Embedding.Provider)
}
