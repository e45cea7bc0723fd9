// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

// Package secrets keeps embedding-provider credentials out of config files:
// config values may use keyring://service/key URIs which are resolved
// against the OS keyring after the config is loaded.
package secrets

// Store provides secure secret storage operations.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// Returns a secret.get.not_found error if the key does not exist.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	Delete(service, key string) error
}
