package backend

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
)

const guideSystemPrompt = "你是一個專業導遊。"

// chat 帶上下文的導遊對話，直接轉給設定好的模型
func (s *Server) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON 格式錯誤: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	if limit := s.limits().MaxInputLength; limit > 0 && len([]rune(req.Message)) > limit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is too long"})
		return
	}

	messages := make([]llm.Message, 0, len(req.History)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: guideSystemPrompt})
	// 處理歷史紀錄
	for _, h := range req.History {
		if strings.TrimSpace(h.Text) == "" {
			continue
		}
		role := llm.RoleUser
		if h.Role == "model" || h.Role == "assistant" {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: h.Text})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})

	s.logger.Debug("chat request", "history", len(req.History))
	reply, err := s.llm.Chat(c.Request.Context(), messages, llm.Options{Temperature: 0.7, MaxOutputTokens: 8192})
	if err != nil {
		s.logger.Error("chat failed", "provider", s.llm.Name(), "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI 服務錯誤: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
