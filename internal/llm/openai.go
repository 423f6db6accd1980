package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/slotter-org/cocreation-backend/internal/logger"
)

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	EmbedModel string
	Timeout    time.Duration
}

// OpenAIGateway talks to any OpenAI-compatible chat-completions endpoint.
type OpenAIGateway struct {
	log        *logger.Logger
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	timeout    time.Duration
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func NewOpenAIGateway(cfg OpenAIConfig, log *logger.Logger) (*OpenAIGateway, error) {
	gatewayLog := log.With("component", "OpenAIGateway")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing OpenAI base URL")
	}
	if cfg.APIKey == "" {
		gatewayLog.Warn("OPENAI_API_KEY not set; calls might fail or be unauthorized")
	}
	return &OpenAIGateway{
		log:        gatewayLog,
		client:     &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		timeout:    cfg.Timeout,
	}, nil
}

func (g *OpenAIGateway) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	ctx, cancel := withDeadline(ctx, g.timeout)
	defer cancel()

	model := opts.Model
	if model == "" {
		model = g.model
	}
	body := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxOutputTokens,
	}
	var out chatCompletionResponse
	start := time.Now()
	if err := g.post(ctx, "/chat/completions", body, &out); err != nil {
		g.log.Warn("chat completion failed", "model", model, "error", err)
		return "", classify(ctx, "chat completion", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("chat completion: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	g.log.Debug("chat completion success", "model", model, "messages", len(messages), "replyLen", len(reply), "elapsed", time.Since(start))
	return reply, nil
}

func (g *OpenAIGateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := withDeadline(ctx, g.timeout)
	defer cancel()

	var out embeddingResponse
	if err := g.post(ctx, "/embeddings", embeddingRequest{Model: g.embedModel, Input: texts}, &out); err != nil {
		return nil, classify(ctx, "embeddings", err)
	}
	vectors := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	return vectors, nil
}

func (g *OpenAIGateway) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
