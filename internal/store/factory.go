// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package store

import (
	"fmt"
	"sync"

	"github.com/finmem-dev/finmem/internal/embed"
)

// IndexFactory creates an embedding index rooted at dataDir using the given
// embedder.
type IndexFactory func(dataDir string, emb embed.Embedder) (EmbeddingIndex, error)

var (
	indexFactories = map[string]IndexFactory{}
	factoriesMu    sync.RWMutex
)

// RegisterIndexBackend registers a factory for a named index backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterIndexBackend(name string, f IndexFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	indexFactories[name] = f
}

// NewEmbeddingIndex creates the embedding index for the named backend,
// defaulting to "sqlite" when backend is empty.
func NewEmbeddingIndex(backend, dataDir string, emb embed.Embedder) (EmbeddingIndex, error) {
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	factory, ok := indexFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported index backend: %q", backend)
	}

	return factory(dataDir, emb)
}
