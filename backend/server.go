// Package backend 行程規劃的 HTTP API
package backend

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hsuanyo7160/go-travel-planner/internal/itinerary"
	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
)

const Version = "1.0.0"

// Deps 伺服器用到的元件，Store、Limiter、Gatherer 可以是 nil
type Deps struct {
	Generator *itinerary.Generator
	LLM       llm.Client
	Store     PlanStore
	Limiter   Limiter
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

type Options struct {
	AllowOrigins      []string
	StaticDir         string
	GenerationTimeout time.Duration
	MetricsPath       string
}

type Server struct {
	gen     *itinerary.Generator
	llm     llm.Client
	store   PlanStore
	limiter Limiter
	gather  prometheus.Gatherer
	logger  *slog.Logger
	opts    Options
}

func NewServer(deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 3 * time.Minute
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	return &Server{
		gen:     deps.Generator,
		llm:     deps.LLM,
		store:   deps.Store,
		limiter: deps.Limiter,
		gather:  deps.Gatherer,
		logger:  logger,
		opts:    opts,
	}
}

// Router 設定 Gin 與所有路由
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	// CORS 設定 - 允許前端跨域請求
	origins := s.opts.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           12 * time.Hour,
	}))

	// 靜態檔案 (前端)
	if s.opts.StaticDir != "" {
		r.Static("/web", s.opts.StaticDir)
		r.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusFound, "/web/")
		})
	}

	if s.gather != nil {
		r.GET(s.opts.MetricsPath, gin.WrapH(promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{})))
	}

	// 需要呼叫模型的路由才限流
	limited := []gin.HandlerFunc{}
	if s.limiter != nil {
		limited = append(limited, rateLimit(s.limiter, s.logger))
	}

	// API 路由
	api := r.Group("/api")
	{
		// 行程生成
		api.GET("/generate-plan", s.generatePlanInfo)
		api.POST("/generate-plan", append(limited, s.generatePlan)...)
		api.POST("/parse-request", append(limited, s.parseRequest)...)
		api.POST("/chat", append(limited, s.chat)...)

		// 行程相關
		api.GET("/plans", s.listPlans)
		api.GET("/plans/:id", s.getPlan)
		api.POST("/plans", s.createPlan)
		api.PUT("/plans/:id", s.updatePlan)
		api.DELETE("/plans/:id", s.deletePlan)

		// 健康檢查
		api.GET("/health", s.health)
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"status":  "ok",
		"time":    time.Now(),
		"version": Version,
	}
	if s.llm != nil {
		resp["provider"] = s.llm.Name()
	}
	if s.store != nil {
		resp["store"] = s.store.Name()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"elapsed", time.Since(start).Round(time.Millisecond))
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
