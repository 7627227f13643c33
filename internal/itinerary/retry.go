package itinerary

import (
	"context"
	"log/slog"
	"time"

	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
)

// unit 一個需要重試保護的生成步驟
type unit struct {
	name   string // "day 3"
	kind   string // overview / day / summary
	prompt string
	opts   llm.Options
}

// acceptFunc 修復、解析、驗證一次回應
type acceptFunc[T any] func(raw string) (T, error)

// generateUnit 最多呼叫 MaxRetries+1 次。
// 第二次起會把上一次的回應與錯誤說明一起送回去。
// 對話紀錄只在呼叫端確認接受後才會增加，這裡的嘗試不會留下痕跡。
func generateUnit[T any](ctx context.Context, g *Generator, log ConversationLog, u unit, accept acceptFunc[T]) (T, error) {
	var (
		zero    T
		lastErr error
		lastRaw string
	)
	maxAttempts := g.settings.MaxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, g.settings.RetryDelay); err != nil {
				g.metrics.unitDone(u.kind, "canceled")
				return zero, err
			}
		}

		msgs := log.Append(userTurn(u.prompt))
		if lastErr != nil && lastRaw != "" {
			msgs = msgs.Append(
				assistantTurn(head(lastRaw, maxEchoRunes)),
				userTurn(feedbackPrompt(lastRaw, Classify(lastErr), lastErr)),
			)
		}

		raw, err := g.client.Chat(ctx, msgs.Messages(), u.opts)
		if err == nil {
			g.logger.Debug("raw response", "unit", u.name, "attempt", attempt, "head", head(raw, 200))
			var v T
			if v, err = accept(raw); err == nil {
				g.metrics.unitDone(u.kind, "accepted")
				return v, nil
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			g.metrics.unitDone(u.kind, "canceled")
			return zero, ctxErr
		}

		class := Classify(err)
		g.metrics.failedAttempt(u.kind, class)
		g.logger.Warn("generation attempt failed",
			slog.String("unit", u.name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.String("class", class.String()),
			slog.Any("error", err))
		lastErr, lastRaw = err, raw
	}

	g.metrics.unitDone(u.kind, "exhausted")
	return zero, &RetryBudgetExhaustedError{
		Unit:      u.name,
		Attempts:  maxAttempts,
		LastClass: Classify(lastErr),
		Excerpt:   head(lastRaw, excerptHead),
		Err:       lastErr,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
