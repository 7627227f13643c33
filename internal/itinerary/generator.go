package itinerary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
	"github.com/hsuanyo7160/go-travel-planner/internal/repair"
)

// Settings 重試與各步驟的生成參數
type Settings struct {
	MaxRetries int
	RetryDelay time.Duration
	Overview   llm.Options
	Day        llm.Options
	Summary    llm.Options
	Limits     Limits
}

func DefaultSettings() Settings {
	return Settings{
		MaxRetries: 10,
		RetryDelay: 500 * time.Millisecond,
		Overview:   llm.Options{Temperature: 0.5, MaxOutputTokens: 50},
		Day:        llm.Options{Temperature: 0.3, MaxOutputTokens: 1024},
		Summary:    llm.Options{Temperature: 0.3, MaxOutputTokens: 300},
		Limits:     DefaultLimits(),
	}
}

// Generator 本身不保存任何單次生成的狀態，可以同時處理多個請求
type Generator struct {
	client   llm.Client
	settings Settings
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Generator)

func WithSettings(s Settings) Option { return func(g *Generator) { g.settings = s } }

func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

func WithMetrics(m *Metrics) Option { return func(g *Generator) { g.metrics = m } }

func NewGenerator(client llm.Client, opts ...Option) *Generator {
	g := &Generator{client: client, settings: DefaultSettings(), logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	if g.settings.MaxRetries < 0 {
		g.settings.MaxRetries = 0
	}
	return g
}

func (g *Generator) Settings() Settings { return g.settings }

var (
	fallbackHighlights = []string{"精彩行程", "美好回憶", "難忘體驗"}
	fallbackTips       = []string{"注意安全", "合理安排時間", "保持愉快心情"}
)

// Generate 依序產生概要、每一天、總結，最後整體驗證。
// 任何一天用完重試次數就整個失敗；概要與總結失敗時改用預設內容。
func (g *Generator) Generate(ctx context.Context, req PlanRequest, progress ProgressFunc) (*Plan, error) {
	days, err := req.Validate(g.settings.Limits)
	if err != nil {
		return nil, err
	}
	req.Destination = strings.TrimSpace(req.Destination)
	total := days + 1
	started := time.Now()
	g.logger.Info("plan generation started", "destination", req.Destination, "days", days)

	log := NewConversationLog(systemTurn(systemPrompt()))
	var degraded []string

	// ========== 概要 ==========
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notify(progress, 0, total, "正在生成計畫概要...")
	oPrompt := overviewPrompt(req, days)
	title, err := generateUnit(ctx, g, log, unit{name: "overview", kind: "overview", prompt: oPrompt, opts: g.settings.Overview}, acceptOverview)
	if err != nil {
		if !isExhausted(err) {
			return nil, err
		}
		title = fmt.Sprintf("%s%d天遊", req.Destination, days)
		degraded = append(degraded, "overview")
		g.logger.Warn("overview failed, using default title", "title", title, "error", err)
	}
	log = log.Append(userTurn(oPrompt), assistantTurn(canonical(map[string]string{"title": title})))

	// ========== 逐天生成 ==========
	visited := NewVisitedSet()
	itinerary := make([]DayEntry, 0, days)
	for day := 1; day <= days; day++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		notify(progress, day, total, fmt.Sprintf("正在生成第 %d 天行程...", day))

		u := unit{
			name:   fmt.Sprintf("day %d", day),
			kind:   "day",
			prompt: dayPrompt(req, day, days, itinerary, visited),
			opts:   g.settings.Day,
		}
		entry, err := generateUnit(ctx, g, log, u, g.dayAcceptor(req, day))
		if err != nil {
			return nil, err
		}
		if repeats := visited.Add(entry); len(repeats) > 0 {
			g.logger.Warn("day repeats visited places", "day", day, "repeats", repeats)
		}
		itinerary = append(itinerary, entry)
		log = log.Append(userTurn(dayLogTurn(req, day)), assistantTurn(canonical(entry)))
		g.logger.Info("day accepted", "day", day, "days", days, "activities", len(entry.Activities))
	}

	// ========== 總結 ==========
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notify(progress, total, total, "正在生成行程總結...")
	sPrompt := summaryPrompt(req, itinerary)
	summary, err := generateUnit(ctx, g, log, unit{name: "summary", kind: "summary", prompt: sPrompt, opts: g.settings.Summary}, acceptSummary)
	if err != nil {
		if !isExhausted(err) {
			return nil, err
		}
		summary = Summary{Highlights: fallbackHighlights, Tips: fallbackTips}
		degraded = append(degraded, "summary")
		g.logger.Warn("summary failed, using generic summary", "error", err)
	}
	if summary.TotalCost == nil {
		summary.TotalCost = sumCosts(itinerary)
	}

	plan := &Plan{
		Title:       title,
		Destination: req.Destination,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Days:        days,
		Budget:      req.Budget,
		Travelers:   req.travelers(),
		Preferences: req.Preferences,
		Itinerary:   itinerary,
		Summary:     summary,
		Degraded:    degraded,
	}
	if problems := ValidatePlan(*plan); len(problems) > 0 {
		return nil, &FinalValidationError{Problems: problems}
	}
	g.logger.Info("plan generation finished", "destination", req.Destination, "days", days, "elapsed", time.Since(started).Round(time.Millisecond))
	return plan, nil
}

// ========== 各步驟的接受條件 ==========

func acceptOverview(raw string) (string, error) {
	m, err := repair.Object(raw)
	if err != nil {
		return "", err
	}
	title, _ := m["title"].(string)
	if title = strings.TrimSpace(title); title == "" {
		return "", &SchemaError{Unit: "overview", Problems: []string{"missing field: title"}}
	}
	return title, nil
}

func (g *Generator) dayAcceptor(req PlanRequest, day int) acceptFunc[DayEntry] {
	unitName := fmt.Sprintf("day %d", day)
	return func(raw string) (DayEntry, error) {
		m, err := repair.Object(raw)
		if err != nil {
			return DayEntry{}, err
		}
		if _, ok := m["day"]; !ok {
			return DayEntry{}, &SchemaError{Unit: unitName, Problems: []string{"missing field: day"}}
		}
		acts, ok := m["activities"].([]any)
		if !ok {
			return DayEntry{}, &SchemaError{Unit: unitName, Problems: []string{"missing field: activities"}}
		}
		if len(acts) == 0 {
			return DayEntry{}, &SchemaError{Unit: unitName, Problems: []string{"activities is empty"}, EmptyActivities: true}
		}

		var rec dayRecord
		if err := repair.DecodeValue(m, &rec); err != nil {
			return DayEntry{}, &SchemaError{Unit: unitName, Problems: []string{err.Error()}}
		}
		entry := rec.entry()
		if entry.Day != day {
			g.logger.Warn("correcting day index", "expected", day, "got", entry.Day)
			entry.Day = day
		}
		if entry.Date == "" || req.hasDates() {
			entry.Date = req.DateLabel(day)
		}
		if entry.Title == "" {
			entry.Title = fmt.Sprintf("第%d天", day)
		}
		if problems := ValidateDay(entry); len(problems) > 0 {
			return DayEntry{}, &SchemaError{Unit: unitName, Problems: problems, EmptyActivities: len(entry.Activities) == 0}
		}
		return entry, nil
	}
}

func acceptSummary(raw string) (Summary, error) {
	var rec summaryRecord
	m, err := repair.Object(raw)
	if err != nil {
		return Summary{}, err
	}
	if err := repair.DecodeValue(m, &rec); err != nil {
		return Summary{}, &SchemaError{Unit: "summary", Problems: []string{err.Error()}}
	}
	s := rec.summary()
	if problems := ValidateSummary(s); len(problems) > 0 {
		return Summary{}, &SchemaError{Unit: "summary", Problems: problems}
	}
	return s, nil
}

// ========== 輔助函數 ==========

func isExhausted(err error) bool {
	var rb *RetryBudgetExhaustedError
	return errors.As(err, &rb)
}

func notify(progress ProgressFunc, current, total int, message string) {
	if progress == nil {
		return
	}
	defer func() { _ = recover() }()
	progress(current, total, message)
}

func canonical(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func sumCosts(days []DayEntry) *float64 {
	var total float64
	found := false
	for _, d := range days {
		if d.EstimatedCost != nil {
			total += *d.EstimatedCost
			found = true
			continue
		}
		for _, a := range d.Activities {
			if a.Cost != nil {
				total += *a.Cost
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	return &total
}
