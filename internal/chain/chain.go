// Package chain composes retrieval and generation into a question-answering pipeline.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rag_chatbot/internal/domain"
	"rag_chatbot/internal/llm"
	"rag_chatbot/internal/retriever"
	"rag_chatbot/internal/vectorindex"
)

// Answer fills the answer template with retrieved context and makes one model call.
type Answer struct {
	gen      llm.Generator
	template string
}

func NewAnswer(gen llm.Generator, template string) *Answer {
	return &Answer{gen: gen, template: template}
}

// Generate returns the model output unmodified. Unreachable or timed-out services keep
// their domain.ErrServiceUnavailable classification; every other failure, including an
// empty reply, is domain.ErrGenerationFailed.
func (a *Answer) Generate(ctx context.Context, question string, docs []vectorindex.Result) (string, error) {
	prompt := llm.Render(a.template, map[string]string{
		"context":  FormatContext(docs),
		"question": question,
	})

	out, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return "", classify(err)
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: empty model output", domain.ErrGenerationFailed)
	}
	return out, nil
}

// FormatContext joins chunk texts with a blank line.
func FormatContext(docs []vectorindex.Result) string {
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Text)
	}
	return strings.Join(texts, "\n\n")
}

func classify(err error) error {
	if errors.Is(err, domain.ErrServiceUnavailable) || errors.Is(err, domain.ErrGenerationFailed) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
}

// RAG answers questions over one index: answer(q) = generate(template(retrieve(q), q)).
// It holds no mutable state and is safe for concurrent use.
type RAG struct {
	Corpus    string
	Index     *vectorindex.Index
	Retriever *retriever.MultiQuery
	Answer    *Answer
}

func NewRAG(corpus string, idx *vectorindex.Index, r *retriever.MultiQuery, a *Answer) *RAG {
	return &RAG{Corpus: corpus, Index: idx, Retriever: r, Answer: a}
}

func (r *RAG) Run(ctx context.Context, question string) (string, error) {
	docs, err := r.Retriever.Retrieve(ctx, r.Index, question)
	if err != nil {
		return "", fmt.Errorf("retrieve: %w", classify(err))
	}
	return r.Answer.Generate(ctx, question, docs)
}
