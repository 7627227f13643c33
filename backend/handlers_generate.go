package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hsuanyo7160/go-travel-planner/internal/itinerary"
	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
)

const saveFailedWarning = "計畫生成成功，但儲存到資料庫失敗"

func (s *Server) generatePlanInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "旅行計畫生成 API 運行正常",
		"version": Version,
	})
}

// generatePlan 產生完整行程。Accept: text/event-stream 時用 SSE 回報進度
func (s *Server) generatePlan(c *gin.Context) {
	var req GeneratePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GeneratePlanResponse{Error: "JSON 格式錯誤: " + err.Error()})
		return
	}
	// 先驗證，不合法的請求不必開 SSE
	if _, err := req.Input.Validate(s.limits()); err != nil {
		c.JSON(http.StatusBadRequest, GeneratePlanResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.GenerationTimeout)
	defer cancel()

	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		s.generatePlanStream(ctx, c, req)
		return
	}

	plan, err := s.gen.Generate(ctx, req.Input, func(current, total int, message string) {
		s.logger.Debug("generation progress", "current", current, "total", total, "message", message)
	})
	if err != nil {
		status, msg := s.generationError(err)
		c.JSON(status, GeneratePlanResponse{Error: msg})
		return
	}
	c.JSON(http.StatusOK, s.savePlan(c.Request.Context(), req, plan))
}

func (s *Server) generatePlanStream(ctx context.Context, c *gin.Context, req GeneratePlanRequest) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	send := func(event string, data any) {
		c.SSEvent(event, data)
		c.Writer.Flush()
	}

	plan, err := s.gen.Generate(ctx, req.Input, func(current, total int, message string) {
		send("progress", ProgressEvent{Current: current, Total: total, Message: message})
	})
	if err != nil {
		_, msg := s.generationError(err)
		send("error", GeneratePlanResponse{Error: msg})
		return
	}
	send("plan", s.savePlan(c.Request.Context(), req, plan))
}

// savePlan 儲存失敗時仍然回傳行程，附上警告
func (s *Server) savePlan(ctx context.Context, req GeneratePlanRequest, plan *itinerary.Plan) GeneratePlanResponse {
	stored := newStoredPlan(*plan)
	resp := GeneratePlanResponse{Success: true, Plan: stored}
	if s.store == nil || (req.Save != nil && !*req.Save) {
		return resp
	}
	if err := s.store.Create(ctx, stored); err != nil {
		s.logger.Error("save generated plan failed", "error", err)
		resp.Warning = saveFailedWarning
	}
	return resp
}

// generationError 轉成 HTTP 狀態碼與給使用者看的訊息
func (s *Server) generationError(err error) (int, string) {
	var (
		re *itinerary.RequestError
		rb *itinerary.RetryBudgetExhaustedError
		fv *itinerary.FinalValidationError
		te *llm.TransportError
	)
	switch {
	case errors.As(err, &re):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded) && !errors.As(err, &te):
		s.logger.Warn("plan generation timed out", "error", err)
		return http.StatusGatewayTimeout, "生成行程逾時，請減少天數或稍後再試"
	case errors.Is(err, context.Canceled):
		return 499, "請求已取消"
	case errors.As(err, &rb):
		s.logger.Error("plan generation failed", "unit", rb.Unit, "attempts", rb.Attempts, "class", rb.LastClass.String(), "error", err)
		if errors.As(err, &te) {
			return http.StatusBadGateway, "AI 服務暫時無法使用：" + te.Error()
		}
		return http.StatusBadGateway, "生成行程失敗，AI 多次回傳無效格式，請稍後重試"
	case errors.As(err, &fv):
		s.logger.Error("assembled plan invalid", "error", err)
		return http.StatusBadGateway, "生成的行程不完整，請稍後重試"
	default:
		s.logger.Error("plan generation failed", "error", err)
		return http.StatusInternalServerError, "生成計畫失敗，請稍後重試"
	}
}
