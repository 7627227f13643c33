package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config 選擇供應商與連線參數
type Config struct {
	Provider         string
	Model            string
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	TopP             float32
	PresencePenalty  float32
	FrequencyPenalty float32
	Vertex           bool
	Project          string
	Location         string
}

// New 依設定建立 Client
func New(ctx context.Context, cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "deepseek", "openai":
		provider := strings.ToLower(cfg.Provider)
		if provider == "" {
			provider = "deepseek"
		}
		return NewOpenAIClient(OpenAIConfig{
			Provider:         provider,
			BaseURL:          cfg.BaseURL,
			APIKey:           cfg.APIKey,
			Model:            cfg.Model,
			Timeout:          cfg.Timeout,
			TopP:             cfg.TopP,
			PresencePenalty:  cfg.PresencePenalty,
			FrequencyPenalty: cfg.FrequencyPenalty,
		})
	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.TopP)
		if err != nil {
			return nil, err
		}
		return withTimeout(c, cfg.Timeout), nil
	case "genai", "vertex":
		c, err := NewGenAIClient(ctx, GenAIConfig{
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			Vertex:   cfg.Vertex || strings.EqualFold(cfg.Provider, "vertex"),
			Project:  cfg.Project,
			Location: cfg.Location,
			TopP:     cfg.TopP,
		})
		if err != nil {
			return nil, err
		}
		return withTimeout(c, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// PingResult 連線測試結果
type PingResult struct {
	Provider string
	Reply    string
	Latency  time.Duration
}

// Ping 送一則很短的訊息確認金鑰與網路可用
func Ping(ctx context.Context, c Client) (PingResult, error) {
	start := time.Now()
	reply, err := c.Chat(ctx, []Message{
		{Role: RoleUser, Content: "Reply with the single word OK."},
	}, Options{Temperature: 0, MaxOutputTokens: 10})
	res := PingResult{Provider: c.Name(), Reply: strings.TrimSpace(reply), Latency: time.Since(start)}
	if err != nil {
		return res, fmt.Errorf("ping %s: %w", c.Name(), err)
	}
	return res, nil
}

// timeoutClient 給沒有自己 HTTP 逾時設定的 SDK 用，每次呼叫最多等 timeout
type timeoutClient struct {
	next    Client
	timeout time.Duration
}

func withTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &timeoutClient{next: c, timeout: d}
}

func (t *timeoutClient) Name() string { return t.next.Name() }

func (t *timeoutClient) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.next.Chat(callCtx, messages, opts)
	var te *TransportError
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && !errors.As(err, &te) {
		// 逾時的是這次呼叫，不是呼叫端的 ctx
		return "", newTransportError(t.next.Name(), err)
	}
	return out, err
}
