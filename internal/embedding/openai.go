package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"rag_chatbot/internal/resilience"
)

// OpenAI embeds through the OpenAI embeddings API or any compatible server.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI requires an API key; baseURL may be empty for the public API.
// Retries are left to the resilience policy.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, resilience.StatusError("openai embeddings", apiErr.StatusCode, apiErr.Message, errEmbeddingRejected)
		}
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embeddings: empty response")
	}
	return toFloat32(resp.Data[0].Embedding), nil
}

var errEmbeddingRejected = errors.New("embedding request rejected")

// toFloat32 converts the API's float64 values to the index's float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
