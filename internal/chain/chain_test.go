package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag_chatbot/internal/chunker"
	"rag_chatbot/internal/config"
	"rag_chatbot/internal/domain"
	"rag_chatbot/internal/embedding"
	"rag_chatbot/internal/loader"
	"rag_chatbot/internal/retriever"
	"rag_chatbot/internal/testutil"
	"rag_chatbot/internal/vectorindex"
)

func TestAnswer_TemplateAndRawOutput(t *testing.T) {
	gen := &testutil.Generator{Respond: func(string) (string, error) {
		return "  <p>1. Twenty days.</p>\n", nil
	}}
	a := NewAnswer(gen, "CTX[{context}] Q[{question}]")

	docs := []vectorindex.Result{{ID: "1", Text: "first chunk"}, {ID: "2", Text: "second chunk"}}
	out, err := a.Generate(context.Background(), "How many days?", docs)
	require.NoError(t, err)

	assert.Equal(t, "  <p>1. Twenty days.</p>\n", out, "output is returned unmodified")
	prompts := gen.Prompts()
	require.Len(t, prompts, 1, "exactly one model call")
	assert.Equal(t, "CTX[first chunk\n\nsecond chunk] Q[How many days?]", prompts[0])
}

func TestAnswer_Errors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  error
	}{
		{"model error", "", errors.New("bad request"), domain.ErrGenerationFailed},
		{"empty output", "   \n", nil, domain.ErrGenerationFailed},
		{"unavailable kept", "", fmt.Errorf("ollama: %w", domain.ErrServiceUnavailable), domain.ErrServiceUnavailable},
		{"timeout kept", "", domain.ErrServiceTimeout, domain.ErrServiceTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &testutil.Generator{Respond: func(string) (string, error) { return tt.reply, tt.err }}
			_, err := NewAnswer(gen, config.DefaultAnswerPrompt).Generate(context.Background(), "q", nil)
			assert.ErrorIs(t, err, tt.want)
			assert.Len(t, gen.Prompts(), 1, "no retries inside the chain")
		})
	}
}

func TestAnswer_UnavailableIsNotGenerationFailure(t *testing.T) {
	gen := &testutil.Generator{Respond: func(string) (string, error) { return "", domain.ErrServiceTimeout }}
	_, err := NewAnswer(gen, config.DefaultAnswerPrompt).Generate(context.Background(), "q", nil)
	assert.False(t, errors.Is(err, domain.ErrGenerationFailed))
}

func TestRAG_Run(t *testing.T) {
	doc := loader.Document{Source: "handbook.docx", Format: loader.FormatDOCX}
	chunks := []chunker.Chunk{
		chunker.CreateChunk("the vacation policy grants twenty days", doc, 0),
		chunker.CreateChunk("expense reports are due monthly", doc, 1),
	}
	idx, err := vectorindex.FromChunks(context.Background(), "user", chunks, embedding.NewHash(64), "hash/64")
	require.NoError(t, err)

	gen := &testutil.Generator{Respond: testutil.RAGResponder("different versions",
		[]string{"how long is vacation", "vacation days allowed"}, "<p>Twenty days.</p>")}
	rag := NewRAG("user", idx,
		retriever.New(gen, config.DefaultMultiQueryPrompt, 2, 1, nil),
		NewAnswer(gen, config.DefaultAnswerPrompt))

	out, err := rag.Run(context.Background(), "how many vacation days")
	require.NoError(t, err)
	assert.Equal(t, "<p>Twenty days.</p>", out)

	prompts := gen.Prompts()
	require.Len(t, prompts, 2, "one paraphrase call and one answer call")
	assert.True(t, strings.Contains(prompts[1], "the vacation policy grants twenty days"))
	assert.True(t, strings.Contains(prompts[1], "Question: how many vacation days"))
}

func TestRAG_RetrievalFailure(t *testing.T) {
	idx, err := vectorindex.FromChunks(context.Background(), "user",
		[]chunker.Chunk{chunker.CreateChunk("text", loader.Document{Source: "a.pdf"}, 0)},
		func(ctx context.Context, text string) ([]float32, error) {
			if text == "text" {
				return []float32{1, 0}, nil
			}
			return nil, fmt.Errorf("embed: %w", domain.ErrServiceUnavailable)
		}, "test/2")
	require.NoError(t, err)

	gen := &testutil.Generator{}
	rag := NewRAG("user", idx,
		retriever.New(gen, config.DefaultMultiQueryPrompt, 2, 4, nil),
		NewAnswer(gen, config.DefaultAnswerPrompt))

	_, err = rag.Run(context.Background(), "question")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Empty(t, gen.Prompts())
}
