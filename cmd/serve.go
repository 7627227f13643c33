package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hsuanyo7160/go-travel-planner/backend"
	"github.com/hsuanyo7160/go-travel-planner/internal/config"
	"github.com/hsuanyo7160/go-travel-planner/internal/itinerary"
	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			return runServer(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.address")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SlogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	// ========== AI 客戶端與指標 ==========
	client, err := llm.New(ctx, cfg.LLMClientConfig())
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	var (
		gatherer   prometheus.Gatherer
		genMetrics *itinerary.Metrics
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		client = llm.Instrument(client, llm.NewMetrics(reg))
		genMetrics = itinerary.NewMetrics(reg)
		gatherer = reg
	}

	generator := itinerary.NewGenerator(client,
		itinerary.WithSettings(cfg.GenerationSettings()),
		itinerary.WithLogger(logger),
		itinerary.WithMetrics(genMetrics),
	)

	// ========== 儲存 ==========
	var store backend.PlanStore
	if cfg.Mongo.URI != "" {
		mongoStore, err := backend.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoStore.Close(closeCtx); err != nil {
				logger.Warn("close mongo", "error", err)
			}
		}()
		store = mongoStore
		logger.Info("connected to MongoDB", "database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)
	} else {
		memStore, err := backend.NewMemoryStore(cfg.Server.DataFile, logger)
		if err != nil {
			return err
		}
		store = memStore
		logger.Warn("mongo.uri not set, plans are kept in memory", "data_file", cfg.Server.DataFile)
	}

	limiter, closeLimiter := newLimiter(ctx, cfg, logger)
	defer closeLimiter()

	srv := backend.NewServer(backend.Deps{
		Generator: generator,
		LLM:       client,
		Store:     store,
		Limiter:   limiter,
		Gatherer:  gatherer,
		Logger:    logger,
	}, backend.Options{
		AllowOrigins:      cfg.Server.AllowOrigins,
		StaticDir:         cfg.Server.StaticDir,
		GenerationTimeout: cfg.Generation.Timeout,
		MetricsPath:       cfg.Metrics.Path,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server running", "addr", cfg.Server.Address, "provider", client.Name(), "store", store.Name())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newLimiter 關閉限流時回傳 nil；Redis 連不上就退回單機限流
func newLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend.Limiter, func()) {
	noop := func() {}
	if !cfg.RateLimit.Enabled {
		return nil, noop
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Info("rate limiting with redis", "addr", cfg.Redis.Addr, "window", cfg.RateLimit.Window, "max_requests", cfg.RateLimit.MaxRequests)
			return backend.NewRedisLimiter(rdb, cfg.RateLimit.Window, cfg.RateLimit.MaxRequests), func() { _ = rdb.Close() }
		}
		logger.Warn("redis unavailable, falling back to local rate limiting", "addr", cfg.Redis.Addr, "error", err)
		_ = rdb.Close()
	}
	return backend.NewLocalLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst), noop
}
