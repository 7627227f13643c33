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
)

const defaultDeepSeekURL = "https://api.deepseek.com/v1"

// OpenAIConfig 相容 OpenAI chat/completions 的服務 (DeepSeek、OpenAI、本地閘道)
type OpenAIConfig struct {
	Provider         string
	BaseURL          string
	APIKey           string
	Model            string
	Timeout          time.Duration
	TopP             float32
	PresencePenalty  float32
	FrequencyPenalty float32
	HTTPClient       *http.Client
}

// OpenAIClient 透過 HTTP 呼叫 chat/completions
type OpenAIClient struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

type chatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      float32   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens,omitempty"`
	TopP             float32   `json:"top_p,omitempty"`
	PresencePenalty  float32   `json:"presence_penalty,omitempty"`
	FrequencyPenalty float32   `json:"frequency_penalty,omitempty"`
	Stream           bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is not configured", cfg.Provider)
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultDeepSeekURL
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAIClient{cfg: cfg, httpClient: hc}, nil
}

func (c *OpenAIClient) Name() string { return c.cfg.Provider }

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	topP := opts.TopP
	if topP == 0 {
		topP = c.cfg.TopP
	}
	body, err := json.Marshal(chatRequest{
		Model:            c.cfg.Model,
		Messages:         messages,
		Temperature:      opts.Temperature,
		MaxTokens:        opts.MaxOutputTokens,
		TopP:             topP,
		PresencePenalty:  c.cfg.PresencePenalty,
		FrequencyPenalty: c.cfg.FrequencyPenalty,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", newTransportError(c.cfg.Provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newTransportError(c.cfg.Provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(c.cfg.Provider, resp.StatusCode, errorBody(raw))
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &TransportError{Provider: c.cfg.Provider, StatusCode: resp.StatusCode, Message: "unreadable response body", Err: err}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}

func errorBody(raw []byte) string {
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err == nil && out.Error != nil && out.Error.Message != "" {
		return out.Error.Message
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
