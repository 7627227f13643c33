package backend

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hsuanyo7160/go-travel-planner/internal/itinerary"
)

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Plan storage is not configured"})
		return false
	}
	return true
}

func (s *Server) listPlans(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	plans, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.Error("list plans failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (s *Server) getPlan(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	plan, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrPlanNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) createPlan(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	var plan itinerary.Plan
	if err := c.ShouldBindJSON(&plan); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(plan.Destination) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "destination is required"})
		return
	}
	if plan.Days < 0 || plan.Days > s.limits().MaxDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days is out of range"})
		return
	}

	// 自動展開日期
	if len(plan.Itinerary) == 0 && plan.Days > 0 {
		plan.Itinerary = expandDays(plan.StartDate, plan.Days)
	}
	if plan.Days == 0 {
		plan.Days = len(plan.Itinerary)
	}

	stored := newStoredPlan(plan)
	if err := s.store.Create(c.Request.Context(), stored); err != nil {
		s.logger.Error("create plan failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (s *Server) updatePlan(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	var patch PlanPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if patch.empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	err := s.store.Update(c.Request.Context(), c.Param("id"), patch)
	if errors.Is(err, ErrPlanNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Plan updated"})
}

func (s *Server) deletePlan(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	err := s.store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrPlanNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Plan deleted"})
}

func (s *Server) limits() itinerary.Limits {
	if s.gen == nil {
		return itinerary.DefaultLimits()
	}
	return s.gen.Settings().Limits
}

func newStoredPlan(p itinerary.Plan) *StoredPlan {
	now := time.Now()
	return &StoredPlan{
		ID:        uuid.NewString(),
		Plan:      p,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
