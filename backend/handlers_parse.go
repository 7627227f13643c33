package backend

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hsuanyo7160/go-travel-planner/internal/itinerary"
)

// parseRequest 把一段自然語言轉成行程需求草稿
func (s *Server) parseRequest(c *gin.Context) {
	var req ParseRequestBody
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing text"})
		return
	}
	if limit := s.limits().MaxInputLength; limit > 0 && len([]rune(req.Text)) > limit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is too long"})
		return
	}

	parsed, err := itinerary.ParseRequest(c.Request.Context(), s.llm, req.Text, s.logger)
	if err != nil {
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info("request parsed", "confidence", parsed.Confidence, "missing", parsed.MissingFields)
	c.JSON(http.StatusOK, parsed)
}
