// Package llm 文字生成服務的共用介面與各家供應商實作
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ========== 訊息格式 ==========

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 對話中的一則訊息
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options 單次呼叫的生成參數，零值代表使用供應商預設
type Options struct {
	Temperature     float32
	MaxOutputTokens int
	TopP            float32
}

// Client 把一串對話送出去，拿回一段文字。
// 實作必須可以被多個 goroutine 同時使用。
type Client interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
	Name() string
}

// ClientFunc 讓一般函式也能當 Client 使用 (測試常用)
type ClientFunc func(ctx context.Context, messages []Message, opts Options) (string, error)

func (f ClientFunc) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	return f(ctx, messages, opts)
}

func (f ClientFunc) Name() string { return "func" }

// ========== 錯誤 ==========

// ErrEmptyResponse 服務有回應但內容是空的
var ErrEmptyResponse = errors.New("llm: empty response")

// TransportError 連線、逾時或 HTTP 狀態碼錯誤
type TransportError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
	timeout    bool
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout 是否為逾時造成
func (e *TransportError) Timeout() bool {
	if e.timeout {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(e.Err, &t) && t.Timeout()
}

func newTransportError(provider string, err error) *TransportError {
	te := &TransportError{Provider: provider, Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		te.timeout = true
		te.Message = "request timed out, please try again later"
	}
	return te
}

// statusError 把常見狀態碼轉成使用者看得懂的訊息
func statusError(provider string, code int, body string) *TransportError {
	msg := body
	switch code {
	case http.StatusUnauthorized:
		msg = "invalid API key, check the llm.api_key setting"
	case http.StatusPaymentRequired:
		msg = "API quota exhausted, please top up the account"
	case http.StatusNotFound:
		msg = "model not found, check the llm.model setting"
	case http.StatusTooManyRequests:
		msg = "rate limited by provider, please retry later"
	}
	return &TransportError{Provider: provider, StatusCode: code, Message: msg}
}

// lastUserIndex 找最後一則 user 訊息
func lastUserIndex(messages []Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}
