// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	finerr "github.com/finmem-dev/finmem/pkg/errors"
)

// EnvPrefix is the environment variable prefix; FINMEM_DATA_DIR overrides
// data_dir and so on.
const EnvPrefix = "FINMEM"

// Config is the top-level FinMem configuration.
type Config struct {
	// DataDir is the single directory root holding both the ledger file
	// and the embedding index directory.
	DataDir    string           `mapstructure:"data_dir"`
	Networking NetworkingConfig `mapstructure:"networking"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
}

// NetworkingConfig controls how the tool server listens for connections.
type NetworkingConfig struct {
	Listen string `mapstructure:"listen"`
}

// StorageConfig selects the embedding index backend.
type StorageConfig struct {
	IndexBackend string `mapstructure:"index_backend"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // local, openai, or google
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"` // may be a keyring:// URI
	Dimensions int    `mapstructure:"dimensions"`
}

// SetDefaults installs configuration defaults on the given Viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("networking.listen", "127.0.0.1:18790")
	v.SetDefault("storage.index_backend", "sqlite")
	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dimensions", 0)
}

// SetupEnv binds environment variables with the FINMEM_ prefix.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, finerr.Errorf(finerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, finerr.Errorf(finerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Load reads configuration from the given path (or defaults only) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, finerr.Errorf(finerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors, collecting all
// issues rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, finerr.New(finerr.CodeConfigValidateInvalidValue, "config: data_dir must not be empty"))
	}

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedding()...)

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, finerr.New(finerr.CodeConfigValidateInvalidValue, "config: networking.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Networking.Listen)
	if err != nil {
		errs = append(errs, finerr.Errorf(finerr.CodeConfigValidateInvalidValue,
			"config: networking.listen must be a valid host:port address, got %q: %w",
			c.Networking.Listen, err,
		))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, finerr.Errorf(finerr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, finerr.Errorf(finerr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.IndexBackend] {
		errs = append(errs, finerr.Errorf(finerr.CodeConfigValidateInvalidValue,
			"config: storage.index_backend must be one of [sqlite], got %q",
			c.Storage.IndexBackend,
		))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	validProviders := map[string]bool{"local": true, "openai": true, "google": true}
	if !validProviders[c.Embedding.Provider] {
		errs = append(errs, finerr.Errorf(finerr.CodeConfigValidateInvalidValue,
			"config: embedding.provider must be one of [local, openai, google], got %q",
			c.Embedding.Provider,
		))
	}

	if c.Embedding.Dimensions < 0 {
		errs = append(errs, finerr.Errorf(finerr.CodeConfigValidateInvalidValue,
			"config: embedding.dimensions must be non-negative, got %d",
			c.Embedding.Dimensions,
		))
	}

	return errs
}

// defaultDataDir returns ~/.finmem, falling back to a relative directory
// when the home directory cannot be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".finmem"
	}
	return filepath.Join(home, ".finmem")
}
