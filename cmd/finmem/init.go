// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/finmem-dev/finmem/internal/config"
	"github.com/finmem-dev/finmem/internal/secrets"
	finerr "github.com/finmem-dev/finmem/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var supportedProviders = []string{"local", "openai", "google"}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter finmem config",
		Long: `Generate a finmem.yaml in the standard config location.

With --provider openai or --provider google, pass --api-key to store the
credential in the OS keyring; the config references it via a keyring://
URI so no secret is written in plain text.`,
		RunE: runInit,
	}

	cmd.Flags().String("provider", "local", "embedding provider (local, openai, google)")
	cmd.Flags().String("api-key", "", "API key to store in the OS keyring")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	provider, _ := cmd.Flags().GetString("provider")
	apiKey, _ := cmd.Flags().GetString("api-key")
	force, _ := cmd.Flags().GetBool("force")

	if !isSupportedProvider(provider) {
		return finerr.Errorf(finerr.CodeConfigValidateInvalidValue,
			"unknown provider %q: expected one of %s", provider, strings.Join(supportedProviders, ", "))
	}
	if provider != "local" && apiKey == "" {
		return finerr.Errorf(finerr.CodeConfigValidateInvalidValue,
			"provider %s requires --api-key", provider)
	}

	cfgPath, err := config.DefaultConfigPath()
	if err != nil {
		return err
	}
	if !force {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return finerr.Errorf(finerr.CodeCLISetupFailure,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	keyRef := ""
	if apiKey != "" {
		keyName := provider + "-api-key"
		if err := secretStoreFactory().Store(serviceName, keyName, apiKey); err != nil {
			return finerr.Wrapf(err, finerr.CodeSecretStoreFailure, "storing %s API key", provider)
		}
		keyRef = fmt.Sprintf("keyring://%s/%s", serviceName, keyName)
	}

	data, err := generateConfigYAML(provider, keyRef)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return finerr.Errorf(finerr.CodeCLISetupFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return finerr.Errorf(finerr.CodeCLISetupFailure, "writing config to %s: %w", cfgPath, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", cfgPath)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run `finmem serve` to start the tool server.")
	return nil
}

// initConfigDoc mirrors the config file layout for YAML generation.
type initConfigDoc struct {
	DataDir    string `yaml:"data_dir,omitempty"`
	Networking struct {
		Listen string `yaml:"listen"`
	} `yaml:"networking"`
	Storage struct {
		IndexBackend string `yaml:"index_backend"`
	} `yaml:"storage"`
	Embedding struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key,omitempty"`
	} `yaml:"embedding"`
}

func generateConfigYAML(provider, keyRef string) ([]byte, error) {
	var doc initConfigDoc
	doc.Networking.Listen = "127.0.0.1:18790"
	doc.Storage.IndexBackend = "sqlite"
	doc.Embedding.Provider = provider
	doc.Embedding.APIKey = keyRef

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, finerr.Errorf(finerr.CodeCLISetupFailure, "marshalling config: %w", err)
	}

	header := "# FinMem configuration — generated by finmem init\n"
	return append([]byte(header), out...), nil
}

func isSupportedProvider(name string) bool {
	for _, p := range supportedProviders {
		if p == name {
			return true
		}
	}
	return false
}

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}
