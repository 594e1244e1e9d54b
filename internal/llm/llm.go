// Package llm adapts language model services to a single prompt-in, text-out call.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"rag_chatbot/internal/config"
	"rag_chatbot/internal/resilience"
)

// Generator is the language model contract used for both paraphrasing and answering.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New builds the configured provider, guarded by policy.
func New(cfg *config.Config, policy resilience.Policy) (Generator, error) {
	var g Generator
	switch cfg.LLMProvider {
	case config.ProviderOllama:
		g = NewOllama(cfg.OllamaURL, cfg.OllamaModel, &http.Client{})
	case config.ProviderOpenAI:
		o, err := NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		g = o
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
	return WithPolicy(g, policy), nil
}

type guarded struct {
	next   Generator
	policy resilience.Policy
}

// WithPolicy runs every generation under policy.
func WithPolicy(g Generator, policy resilience.Policy) Generator {
	return &guarded{next: g, policy: policy}
}

func (g *guarded) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := g.policy.Do(ctx, "generate", func(ctx context.Context) error {
		text, err := g.next.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

// Render substitutes {name} placeholders in a prompt template.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
