package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/slotter-org/cocreation-backend/internal/logger"
)

type GenAIConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
	Timeout    time.Duration
}

// GenAIGateway serves completions and embeddings from the Gemini API.
type GenAIGateway struct {
	log        *logger.Logger
	client     *genai.Client
	model      string
	embedModel string
	timeout    time.Duration
}

func NewGenAIGateway(ctx context.Context, cfg GenAIConfig, log *logger.Logger) (*GenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = "gemini-embedding-001"
	}
	return &GenAIGateway{
		log:        log.With("component", "GenAIGateway"),
		client:     client,
		model:      model,
		embedModel: embedModel,
		timeout:    cfg.Timeout,
	}, nil
}

func (g *GenAIGateway) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	ctx, cancel := withDeadline(ctx, g.timeout)
	defer cancel()

	model := opts.Model
	if model == "" {
		model = g.model
	}
	system, contents := toGenAIContents(messages)
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		g.log.Warn("GenAI generate failed", "model", model, "error", err)
		return "", classify(ctx, "GenAI generate", err)
	}
	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return "", fmt.Errorf("GenAI generate: empty response")
	}
	return reply, nil
}

func (g *GenAIGateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := withDeadline(ctx, g.timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, nil)
	if err != nil {
		return nil, classify(ctx, "GenAI embed", err)
	}
	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// toGenAIContents folds system messages into one system instruction and maps
// assistant turns onto the model role.
func toGenAIContents(messages []Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
