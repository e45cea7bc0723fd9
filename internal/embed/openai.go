// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package embed

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	finerr "github.com/finmem-dev/finmem/pkg/errors"
)

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = string(openaisdk.EmbeddingModelTextEmbedding3Small)

// DefaultOpenAIDimensions matches text-embedding-3-small's native output.
const DefaultOpenAIDimensions = 1536

// OpenAIConfig holds OpenAI embedder configuration.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional, useful for testing against a mock server
	Model      string
	Dimensions int
}

// Compile-time interface check.
var _ Embedder = (*OpenAI)(nil)

// OpenAI embeds text via the OpenAI embeddings API.
type OpenAI struct {
	client openaisdk.Client
	model  string
	dims   int
}

// NewOpenAI creates an OpenAI embedder. Returns an error if the API key is
// missing.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, finerr.New(finerr.CodeConfigValidateInvalidValue, "openai embedder: missing api_key in config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultOpenAIDimensions
	}

	return &OpenAI{
		client: openaisdk.NewClient(opts...),
		model:  model,
		dims:   dims,
	}, nil
}

func (o *OpenAI) Dimensions() int { return o.dims }

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, finerr.New(finerr.CodeTxValidateInvalidInput, "embed: text must not be empty")
	}

	resp, err := o.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Model:      openaisdk.EmbeddingModel(o.model),
		Dimensions: param.NewOpt(int64(o.dims)),
	})
	if err != nil {
		return nil, finerr.Wrapf(err, finerr.CodeIndexEmbedUpstreamFailure, "openai embedding request for model %s", o.model)
	}
	if len(resp.Data) == 0 {
		return nil, finerr.Errorf(finerr.CodeIndexEmbedUpstreamFailure, "openai embedding response contained no data")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
