package testutil

import (
	"context"
	"strings"
	"sync"
)

// Generator is a scripted language model. Respond decides the reply for each prompt;
// every prompt is recorded.
type Generator struct {
	Respond func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (g *Generator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if g.Respond == nil {
		return "", nil
	}
	return g.Respond(prompt)
}

func (g *Generator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

// RAGResponder replies with variants to paraphrase prompts (recognised by marker)
// and with answer to everything else.
func RAGResponder(marker string, variants []string, answer string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		if strings.Contains(prompt, marker) {
			return strings.Join(variants, "\n"), nil
		}
		return answer, nil
	}
}
