package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash-lite"

// GeminiClient 使用 generative-ai-go 的對話模式
type GeminiClient struct {
	client *genai.Client
	model  string
	topP   float32
}

func NewGeminiClient(ctx context.Context, apiKey, model string, topP float32, opts ...option.ClientOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is not configured")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiClient{client: client, model: model, topP: topP}, nil
}

func (g *GeminiClient) Name() string { return "gemini" }

func (g *GeminiClient) Close() error { return g.client.Close() }

func (g *GeminiClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	last := lastUserIndex(messages)
	if last < 0 {
		return "", errors.New("gemini: conversation has no user message")
	}

	model := g.client.GenerativeModel(g.model)
	if sys := systemText(messages); sys != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(sys))
	}
	model.SetTemperature(opts.Temperature)
	if opts.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxOutputTokens))
	}
	if topP := pick(opts.TopP, g.topP); topP > 0 {
		model.SetTopP(topP)
	}

	cs := model.StartChat()
	for _, m := range messages[:last] {
		if m.Role == RoleSystem {
			continue
		}
		// Gemini 的助理角色叫做 "model"
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	res, err := cs.SendMessage(ctx, genai.Text(messages[last].Content))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", fmt.Errorf("%w: %v", ErrEmptyResponse, err)
		}
		te := newTransportError("gemini", err)
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			te.StatusCode = gerr.Code
		}
		return "", te
	}

	var sb strings.Builder
	if len(res.Candidates) > 0 && res.Candidates[0].Content != nil {
		for _, part := range res.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func systemText(messages []Message) string {
	var parts []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func pick(v, def float32) float32 {
	if v != 0 {
		return v
	}
	return def
}
