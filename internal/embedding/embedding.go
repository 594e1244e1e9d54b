// Package embedding provides the text-to-vector functions used for indexing and querying.
// Every provider is exposed as a chromem.EmbeddingFunc so it plugs straight into the index.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"

	"rag_chatbot/internal/config"
	"rag_chatbot/internal/resilience"
)

// New builds the configured provider, guarded by policy.
func New(cfg *config.Config, policy resilience.Policy) (chromem.EmbeddingFunc, error) {
	var fn chromem.EmbeddingFunc
	switch cfg.EmbedProvider {
	case config.ProviderOllama:
		fn = chromem.NewEmbeddingFuncOllama(cfg.OllamaEmbedModel, strings.TrimRight(cfg.OllamaURL, "/")+"/api")
	case config.ProviderOpenAI:
		client, err := NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIEmbedModel)
		if err != nil {
			return nil, err
		}
		fn = client.Embed
	case config.ProviderHash:
		fn = NewHash(cfg.HashEmbedDim)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbedProvider)
	}
	return WithPolicy(fn, policy), nil
}

// WithPolicy runs every embedding call under policy and returns unit-length vectors.
// An empty vector is an error.
func WithPolicy(fn chromem.EmbeddingFunc, policy resilience.Policy) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		var vec []float32
		err := policy.Do(ctx, "embed", func(ctx context.Context) error {
			v, err := fn(ctx, text)
			if err != nil {
				return err
			}
			if len(v) == 0 {
				return errors.New("embedding service returned an empty vector")
			}
			vec = normalize(append([]float32(nil), v...))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}
		return vec, nil
	}
}
