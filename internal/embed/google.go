// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package embed

import (
	"context"

	"google.golang.org/genai"

	finerr "github.com/finmem-dev/finmem/pkg/errors"
)

// DefaultGoogleModel is the Gemini embedding model used when none is
// configured.
const DefaultGoogleModel = "gemini-embedding-001"

// DefaultGoogleDimensions is the truncated output size requested from the
// Gemini API.
const DefaultGoogleDimensions = 1536

// GoogleConfig holds Gemini embedder configuration.
type GoogleConfig struct {
	APIKey     string
	Model      string
	Dimensions int
}

// Compile-time interface check.
var _ Embedder = (*Google)(nil)

// Google embeds text via the Gemini API.
type Google struct {
	client *genai.Client
	model  string
	dims   int
}

// NewGoogle creates a Gemini embedder. Returns an error if the API key is
// missing.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if cfg.APIKey == "" {
		return nil, finerr.New(finerr.CodeConfigValidateInvalidValue, "google embedder: missing api_key in config")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, finerr.Wrapf(err, finerr.CodeCLISetupFailure, "creating gemini client")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGoogleModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultGoogleDimensions
	}

	return &Google{client: client, model: model, dims: dims}, nil
}

func (g *Google) Dimensions() int { return g.dims }

func (g *Google) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, finerr.New(finerr.CodeTxValidateInvalidInput, "embed: text must not be empty")
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.model,
		genai.Text(text),
		&genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(g.dims)),
		},
	)
	if err != nil {
		return nil, finerr.Wrapf(err, finerr.CodeIndexEmbedUpstreamFailure, "gemini embedding request for model %s", g.model)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, finerr.Errorf(finerr.CodeIndexEmbedUpstreamFailure, "gemini embedding response contained no values")
	}

	return resp.Embeddings[0].Values, nil
}
