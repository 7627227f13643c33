package itinerary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
	"github.com/hsuanyo7160/go-travel-planner/internal/repair"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

const (
	missingDestination = "目的地"
	missingDays        = "天數"
)

// ParsedRequest 從自然語言解析出的需求草稿，使用者確認後才送去生成
type ParsedRequest struct {
	PlanRequest
	Confidence    Confidence `json:"confidence"`
	MissingFields []string   `json:"missingFields"`
}

type parsedRecord struct {
	Destination         string   `json:"destination"`
	StartDate           string   `json:"startDate"`
	EndDate             string   `json:"endDate"`
	Days                int      `json:"days"`
	Budget              *float64 `json:"budget"`
	Travelers           int      `json:"travelers"`
	Interests           []string `json:"interests"`
	Pace                string   `json:"pace"`
	SpecialRequirements string   `json:"specialRequirements"`
}

const parseSystemPrompt = `你是旅行需求解析器。從使用者的自然語言描述中提取旅行資訊。

嚴格規則：
1. 只返回純JSON，從{開始到}結束
2. 所有鍵和字串值必須雙引號
3. 數字不加引號
4. 不要任何其他文字或解釋

返回格式：
{"destination":"目的地","days":天數,"budget":預算(元),"travelers":人數,"interests":["興趣1","興趣2"],"pace":"relaxed/moderate/fast","specialRequirements":"其他特殊需求"}

沒有提到的欄位設為null。
⚠️ 只有使用者明確說了具體日期(如「11月1日」)時才提取 startDate/endDate (YYYY-MM-DD)，否則不要自行計算日期！`

func parseUserPrompt(text string) string {
	return fmt.Sprintf(`解析這段旅行需求：

"%s"

提示：
- 從描述中識別目的地、天數、預算、興趣等資訊
- interests 可能包含：history、nature、food、shopping、photography、adventure、relaxation、nightlife
- 只有使用者明確說了具體日期，才提取日期欄位

直接返回JSON：`, text)
}

// ParseRequest 單次低溫呼叫。模型輸出不對時不回傳錯誤，
// 改成低可信度的結果並把原文放進特殊需求；只有 ctx 取消才會回錯。
// logger 為 nil 時用 slog.Default()。
func ParseRequest(ctx context.Context, client llm.Client, text string, logger *slog.Logger) (ParsedRequest, error) {
	if logger == nil {
		logger = slog.Default()
	}
	text = strings.TrimSpace(text)
	fallback := ParsedRequest{
		PlanRequest:   PlanRequest{Travelers: 1, Pace: "moderate", SpecialRequirements: text},
		Confidence:    ConfidenceLow,
		MissingFields: []string{missingDestination, missingDays},
	}
	if text == "" {
		return fallback, nil
	}

	raw, err := client.Chat(ctx, []llm.Message{
		systemTurn(parseSystemPrompt),
		userTurn(parseUserPrompt(text)),
	}, llm.Options{Temperature: 0.1, MaxOutputTokens: 500})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ParsedRequest{}, ctxErr
		}
		logger.Warn("request parsing failed", "error", err)
		return fallback, nil
	}

	var rec parsedRecord
	if err := repair.Decode(raw, &rec); err != nil {
		logger.Warn("request parsing returned unusable output", "error", err, "head", head(raw, 200))
		return fallback, nil
	}

	out := ParsedRequest{PlanRequest: PlanRequest{
		Destination:         strings.TrimSpace(rec.Destination),
		StartDate:           strings.TrimSpace(rec.StartDate),
		EndDate:             strings.TrimSpace(rec.EndDate),
		Days:                rec.Days,
		Budget:              rec.Budget,
		Travelers:           rec.Travelers,
		Preferences:         nonEmpty(rec.Interests),
		Pace:                strings.ToLower(strings.TrimSpace(rec.Pace)),
		SpecialRequirements: strings.TrimSpace(rec.SpecialRequirements),
	}}
	if out.Budget != nil && *out.Budget <= 0 {
		out.Budget = nil
	}
	if out.Travelers <= 0 {
		out.Travelers = 1
	}
	switch out.Pace {
	case "relaxed", "moderate", "fast":
	default:
		out.Pace = "moderate"
	}
	if out.SpecialRequirements == "" {
		out.SpecialRequirements = text
	}
	// 只有開始日期或只有結束日期都不能用，改回相對日期
	if out.StartDate == "" || out.EndDate == "" {
		out.StartDate, out.EndDate = "", ""
	}

	if out.Destination == "" {
		out.MissingFields = append(out.MissingFields, missingDestination)
	}
	if out.Days <= 0 {
		out.Days = 0
		out.MissingFields = append(out.MissingFields, missingDays)
	}
	switch len(out.MissingFields) {
	case 0:
		out.Confidence = ConfidenceHigh
	case 1:
		out.Confidence = ConfidenceMedium
	default:
		out.Confidence = ConfidenceLow
	}
	if out.MissingFields == nil {
		out.MissingFields = []string{}
	}
	return out, nil
}
