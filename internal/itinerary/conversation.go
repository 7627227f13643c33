package itinerary

import "github.com/hsuanyo7160/go-travel-planner/internal/llm"

// ConversationLog 只能往後加的對話紀錄。
// Append 回傳新的值，原本的紀錄不會被改動，也不會和新紀錄共用底層陣列。
type ConversationLog struct {
	msgs []llm.Message
}

func NewConversationLog(msgs ...llm.Message) ConversationLog {
	return ConversationLog{}.Append(msgs...)
}

func (l ConversationLog) Append(msgs ...llm.Message) ConversationLog {
	out := make([]llm.Message, 0, len(l.msgs)+len(msgs))
	out = append(out, l.msgs...)
	out = append(out, msgs...)
	return ConversationLog{msgs: out}
}

// Messages 回傳副本
func (l ConversationLog) Messages() []llm.Message {
	out := make([]llm.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func (l ConversationLog) Len() int { return len(l.msgs) }

func userTurn(s string) llm.Message      { return llm.Message{Role: llm.RoleUser, Content: s} }
func assistantTurn(s string) llm.Message { return llm.Message{Role: llm.RoleAssistant, Content: s} }
func systemTurn(s string) llm.Message    { return llm.Message{Role: llm.RoleSystem, Content: s} }
