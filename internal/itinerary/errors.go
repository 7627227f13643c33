package itinerary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
	"github.com/hsuanyo7160/go-travel-planner/internal/repair"
)

// ========== 錯誤類型 ==========

// SchemaError 解析成功但缺必要欄位或活動清單是空的
type SchemaError struct {
	Unit            string
	Problems        []string
	EmptyActivities bool
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: schema validation failed: %s", e.Unit, strings.Join(e.Problems, "; "))
}

// RetryBudgetExhaustedError 一個步驟所有嘗試都失敗
type RetryBudgetExhaustedError struct {
	Unit      string
	Attempts  int
	LastClass ErrorClass
	Excerpt   string
	Err       error
}

func (e *RetryBudgetExhaustedError) Error() string {
	msg := fmt.Sprintf("%s: giving up after %d attempts, last error (%s): %v", e.Unit, e.Attempts, e.LastClass, e.Err)
	if e.Excerpt != "" {
		msg += fmt.Sprintf("; last response began %q", e.Excerpt)
	}
	return msg
}

func (e *RetryBudgetExhaustedError) Unwrap() error { return e.Err }

// FinalValidationError 全部步驟都通過，但組起來的行程驗證失敗
type FinalValidationError struct {
	Problems []string
}

func (e *FinalValidationError) Error() string {
	return "assembled plan failed validation: " + strings.Join(e.Problems, "; ")
}

// ========== 錯誤分類 ==========

type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassTransport
	ClassEmptyResponse
	ClassMalformedOutput
	ClassSyntax
	ClassIncomplete
	ClassSchema
	ClassEmptyActivities
	ClassCanceled
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransport:
		return "transport"
	case ClassEmptyResponse:
		return "empty_response"
	case ClassMalformedOutput:
		return "malformed_output"
	case ClassSyntax:
		return "syntax"
	case ClassIncomplete:
		return "incomplete"
	case ClassSchema:
		return "schema"
	case ClassEmptyActivities:
		return "empty_activities"
	case ClassCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Hint 放進回饋 prompt 的一句話說明
func (c ErrorClass) Hint() string {
	switch c {
	case ClassTransport:
		return "上次請求沒有成功送達，請重新輸出完整的JSON。"
	case ClassEmptyResponse:
		return "你上次沒有輸出任何內容！請直接輸出完整的JSON。"
	case ClassMalformedOutput:
		return "你沒有返回JSON格式！必須從 { 開始，到 } 結束。"
	case ClassSyntax:
		return "你的JSON中有語法錯誤！檢查是否所有字串都加了雙引號，是否有多餘的逗號。"
	case ClassIncomplete:
		return "你的JSON不完整！確保大括號和方括號都正確閉合。"
	case ClassSchema:
		return "你的JSON缺少必要欄位！請對照格式補齊所有欄位。"
	case ClassEmptyActivities:
		return "你的activities陣列是空的！必須包含至少1個活動。"
	default:
		return "格式不符合要求，請嚴格按照範例格式生成。"
	}
}

// Classify 判斷錯誤屬於哪一類
func Classify(err error) ErrorClass {
	var (
		te *llm.TransportError
		se *repair.SyntaxError
		sc *SchemaError
	)
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded) && !errors.As(err, &te):
		return ClassCanceled
	case errors.As(err, &te):
		return ClassTransport
	case errors.Is(err, llm.ErrEmptyResponse):
		return ClassEmptyResponse
	case errors.Is(err, repair.ErrMalformedOutput):
		return ClassMalformedOutput
	case errors.As(err, &se):
		if strings.Contains(se.Msg, "unexpected end") {
			return ClassIncomplete
		}
		return ClassSyntax
	case errors.As(err, &sc):
		if sc.EmptyActivities {
			return ClassEmptyActivities
		}
		return ClassSchema
	default:
		return ClassUnknown
	}
}
