package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"rag_chatbot/internal/domain"
	"rag_chatbot/internal/resilience"
)

// Ollama talks to the native /api/chat endpoint without streaming.
type Ollama struct {
	client  *http.Client
	baseURL string
	model   string
}

func NewOllama(baseURL, model string, client *http.Client) *Ollama {
	if client == nil {
		client = &http.Client{}
	}
	return &Ollama{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	jsonData, err := json.Marshal(chatRequest{
		Model:    o.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", resilience.StatusError("ollama", resp.StatusCode, string(body), domain.ErrGenerationFailed)
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", domain.ErrGenerationFailed, err)
	}
	return response.Message.Content, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// EnsureModels checks that Ollama is reachable and pulls any model it does not have yet.
func (o *Ollama) EnsureModels(ctx context.Context, logger *slog.Logger, models ...string) error {
	if logger == nil {
		logger = slog.Default()
	}

	available, err := o.listModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: ollama is not reachable at %s: %v", domain.ErrServiceUnavailable, o.baseURL, err)
	}

	for _, model := range models {
		if hasModel(available, model) {
			logger.Info("Model is available", "model", model)
			continue
		}
		logger.Info("Model not found, pulling", "model", model)
		if err := o.pull(ctx, model); err != nil {
			return fmt.Errorf("failed to pull model %s: %w", model, err)
		}
		logger.Info("Model pulled", "model", model)
	}
	return nil
}

func (o *Ollama) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (o *Ollama) pull(ctx context.Context, model string) error {
	b, err := json.Marshal(map[string]any{"name": model, "stream": false})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/pull", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// hasModel treats "llama3.2" and "llama3.2:latest" as the same model.
func hasModel(available []string, model string) bool {
	for _, name := range available {
		if name == model || name == model+":latest" {
			return true
		}
	}
	return false
}
