package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag_chatbot/internal/config"
	"rag_chatbot/internal/domain"
	"rag_chatbot/internal/resilience"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHash_DeterministicAndNormalised(t *testing.T) {
	fn := NewHash(64)
	ctx := context.Background()

	a, err := fn(ctx, "The quick brown fox")
	require.NoError(t, err)
	b, err := fn(ctx, "the QUICK brown fox!")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b, "case and punctuation do not matter")
	assert.InDelta(t, 1.0, math.Sqrt(dot(a, a)), 1e-5)
}

func TestHash_SharedWordsScoreHigher(t *testing.T) {
	fn := NewHash(256)
	ctx := context.Background()

	q, _ := fn(ctx, "vacation policy days")
	near, _ := fn(ctx, "the vacation policy grants twenty days")
	far, _ := fn(ctx, "quarterly revenue grew in europe")

	assert.Greater(t, dot(q, near), dot(q, far))
}

func TestHash_EmptyText(t *testing.T) {
	v, err := NewHash(8)(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, float32(1), v[0])
}

func TestWithPolicy_RetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	fn := func(ctx context.Context, text string) ([]float32, error) {
		if calls.Add(1) == 1 {
			return nil, domain.ErrServiceUnavailable
		}
		return []float32{1, 0}, nil
	}

	guarded := WithPolicy(fn, resilience.Policy{MaxRetries: 1, RetryInterval: time.Millisecond})
	v, err := guarded(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWithPolicy_EmptyVectorIsError(t *testing.T) {
	fn := func(ctx context.Context, text string) ([]float32, error) { return nil, nil }
	_, err := WithPolicy(fn, resilience.Policy{})(context.Background(), "x")
	assert.Error(t, err)
}

func TestOpenAI_Embed(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel, _ = body["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.5,0.25,-0.5]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	client, err := NewOpenAI("test-key", srv.URL, "text-embedding-3-small")
	require.NoError(t, err)

	v, err := client.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, -0.5}, v)
	assert.Equal(t, "text-embedding-3-small", gotModel)
}

func TestOpenAI_UnavailableStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	client, err := NewOpenAI("test-key", srv.URL, "text-embedding-3-small")
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI("", "", "text-embedding-3-small")
	assert.Error(t, err)
}

func TestNew_Providers(t *testing.T) {
	cfg := &config.Config{EmbedProvider: config.ProviderHash, HashEmbedDim: 16}
	fn, err := New(cfg, resilience.Policy{})
	require.NoError(t, err)
	v, err := fn(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, v, 16)

	_, err = New(&config.Config{EmbedProvider: config.ProviderOpenAI}, resilience.Policy{})
	assert.Error(t, err, "openai without a key")

	_, err = New(&config.Config{EmbedProvider: "cohere"}, resilience.Policy{})
	assert.Error(t, err)
}

func TestNew_OllamaUsesServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":[0.6,0.8],"embeddings":[[0.6,0.8]]}`))
	}))
	defer srv.Close()

	cfg := &config.Config{EmbedProvider: config.ProviderOllama, OllamaURL: srv.URL + "/", OllamaEmbedModel: "nomic-embed-text"}
	fn, err := New(cfg, resilience.Policy{})
	require.NoError(t, err)

	v, err := fn(context.Background(), "hello")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, v, 1e-6)
}
