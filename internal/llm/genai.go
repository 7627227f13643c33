package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAIConfig 設定 google.golang.org/genai，可走 Gemini API 或 Vertex AI
type GenAIConfig struct {
	APIKey   string
	Model    string
	Vertex   bool
	Project  string
	Location string
	TopP     float32
}

// GenAIClient 使用 Models.GenerateContent 一次送出整段對話
type GenAIClient struct {
	client *genai.Client
	model  string
	topP   float32
}

func NewGenAIClient(ctx context.Context, cfg GenAIConfig) (*GenAIClient, error) {
	cc := &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: cfg.APIKey}
	if cfg.Vertex {
		cc = &genai.ClientConfig{Backend: genai.BackendVertexAI, Project: cfg.Project, Location: cfg.Location}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GenAIClient{client: client, model: model, topP: cfg.TopP}, nil
}

func (g *GenAIClient) Name() string { return "genai" }

func (g *GenAIClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if opts.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}
	if topP := pick(opts.TopP, g.topP); topP > 0 {
		config.TopP = genai.Ptr(topP)
	}
	if sys := systemText(messages); sys != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: sys}}}
	}

	var contents []*genai.Content
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	if len(contents) == 0 {
		return "", errors.New("genai: conversation is empty")
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		te := newTransportError("genai", err)
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			te.StatusCode = apiErr.Code
			te.Message = apiErr.Message
		}
		return "", te
	}
	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
