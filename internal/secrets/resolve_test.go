// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package secrets_test

import (
	"testing"

	"github.com/finmem-dev/finmem/internal/secrets"
	finerr "github.com/finmem-dev/finmem/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory secrets.Store for tests.
type fakeStore struct {
	values map[string]string
}

func (f *fakeStore) Store(service, key, value string) error {
	f.values[service+"/"+key] = value
	return nil
}

func (f *fakeStore) Retrieve(service, key string) (string, error) {
	val, ok := f.values[service+"/"+key]
	if !ok {
		return "", finerr.Errorf(finerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return val, nil
}

func (f *fakeStore) Delete(service, key string) error {
	delete(f.values, service+"/"+key)
	return nil
}

func TestParseKeyringURI(t *testing.T) {
	service, key, err := secrets.ParseKeyringURI("keyring://finmem/openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "finmem", service)
	assert.Equal(t, "openai-api-key", key)
}

func TestParseKeyringURIMalformed(t *testing.T) {
	for _, uri := range []string{
		"keyring://",
		"keyring://serviceonly",
		"keyring:///key",
		"keyring://service/",
		"not-a-uri",
	} {
		_, _, err := secrets.ParseKeyringURI(uri)
		assert.Error(t, err, "uri %q should be rejected", uri)
	}
}

func TestResolveKeyringURI(t *testing.T) {
	store := &fakeStore{values: map[string]string{"finmem/openai-api-key": "sk-test"}}

	val, err := secrets.ResolveKeyringURI(store, "keyring://finmem/openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", val)
}

func TestResolveKeyringURIPassthrough(t *testing.T) {
	store := &fakeStore{values: map[string]string{}}

	val, err := secrets.ResolveKeyringURI(store, "plain-value")
	require.NoError(t, err)
	assert.Equal(t, "plain-value", val)
}

func TestResolveKeyringURINotFound(t *testing.T) {
	store := &fakeStore{values: map[string]string{}}

	_, err := secrets.ResolveKeyringURI(store, "keyring://finmem/missing")
	require.Error(t, err)
	assert.Equal(t, finerr.CodeSecretResolveFailure, finerr.CodeOf(err))
}

func TestResolveViperSecrets(t *testing.T) {
	store := &fakeStore{values: map[string]string{"finmem/gemini-key": "g-test"}}

	v := viper.New()
	v.Set("embedding.api_key", "keyring://finmem/gemini-key")
	v.Set("embedding.provider", "google")
	v.Set("data_dir", "/tmp/finmem")

	secrets.ResolveViperSecrets(v, store)

	assert.Equal(t, "g-test", v.GetString("embedding.api_key"))
	assert.Equal(t, "google", v.GetString("embedding.provider"))
}

func TestResolveViperSecretsKeepsUnresolvable(t *testing.T) {
	store := &fakeStore{values: map[string]string{}}

	v := viper.New()
	v.Set("embedding.api_key", "keyring://finmem/nope")

	secrets.ResolveViperSecrets(v, store)

	assert.Equal(t, "keyring://finmem/nope", v.GetString("embedding.api_key"))
}
