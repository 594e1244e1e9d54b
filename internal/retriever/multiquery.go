// Package retriever widens recall by searching with model-generated paraphrases of the
// question alongside the question itself.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"rag_chatbot/internal/llm"
	"rag_chatbot/internal/vectorindex"
)

// Searcher finds the k chunks nearest to a text.
type Searcher interface {
	Search(ctx context.Context, text string, k int) ([]vectorindex.Result, error)
}

type MultiQuery struct {
	gen      llm.Generator
	template string
	n        int
	k        int
	logger   *slog.Logger
}

// New returns a retriever asking gen for n paraphrases and taking k results per query.
func New(gen llm.Generator, template string, n, k int, logger *slog.Logger) *MultiQuery {
	if logger == nil {
		logger = slog.Default()
	}
	if n < 1 {
		n = 1
	}
	return &MultiQuery{gen: gen, template: template, n: n, k: k, logger: logger}
}

// Retrieve searches the question and each paraphrase, merging results by chunk ID in
// first-seen order with the question's own results first. Paraphrase failures degrade
// to the question alone; a failure searching the question itself is returned.
func (m *MultiQuery) Retrieve(ctx context.Context, s Searcher, question string) ([]vectorindex.Result, error) {
	base, err := s.Search(ctx, question, m.k)
	if err != nil {
		return nil, fmt.Errorf("search question: %w", err)
	}

	variants, err := m.Variants(ctx, question)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.logger.Warn("Query variant generation failed, using the question only", "error", err)
		return base, nil
	}

	seen := make(map[string]struct{}, len(base))
	merged := make([]vectorindex.Result, 0, len(base)*(len(variants)+1))
	add := func(results []vectorindex.Result) {
		for _, r := range results {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
			merged = append(merged, r)
		}
	}

	add(base)
	for _, v := range variants {
		results, err := s.Search(ctx, v, m.k)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn("Search for query variant failed, skipping", "variant", v, "error", err)
			continue
		}
		add(results)
	}

	m.logger.Debug("Multi-query retrieval", "variants", len(variants), "results", len(merged))
	return merged, nil
}

var errNoVariants = errors.New("model returned no usable query variants")

// Variants asks the model for paraphrases of question.
func (m *MultiQuery) Variants(ctx context.Context, question string) ([]string, error) {
	prompt := llm.Render(m.template, map[string]string{
		"n":        strconv.Itoa(m.n),
		"question": question,
	})
	out, err := m.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	variants := ParseVariants(out, question, m.n)
	if len(variants) == 0 {
		return nil, errNoVariants
	}
	return variants, nil
}

var listMarker = regexp.MustCompile(`^\s*(?:\d+\s*[.)]|[-*•])\s*`)

// ParseVariants reads one paraphrase per line, dropping list markers, blank lines,
// repeats and copies of the question, and keeps at most n.
func ParseVariants(output, question string, n int) []string {
	seen := map[string]struct{}{
		strings.ToLower(strings.TrimSpace(question)): {},
	}
	var out []string
	for _, line := range strings.Split(output, "\n") {
		line = listMarker.ReplaceAllString(line, "")
		line = strings.Trim(strings.TrimSpace(line), `"`)
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
		if len(out) == n {
			break
		}
	}
	return out
}
