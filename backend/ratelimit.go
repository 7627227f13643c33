package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter 判斷某個來源 (通常是 IP) 這次請求能不能通過
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// ========== Redis 滑動視窗 ==========

// RedisLimiter 多台伺服器共用計數，window 內最多 limit 次
type RedisLimiter struct {
	client *redis.Client
	prefix string
	window time.Duration
	limit  int
}

func NewRedisLimiter(client *redis.Client, window time.Duration, limit int) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "travelplanner:ratelimit:", window: window, limit: limit}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	k := l.prefix + key
	member := uuid.NewString()

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "0", strconv.FormatInt(now.Add(-l.window).UnixNano(), 10))
	count := pipe.ZCard(ctx, k)
	pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if count.Val() < int64(l.limit) {
		return true, nil
	}
	// 被拒絕的請求不佔名額
	if err := l.client.ZRem(ctx, k, member).Err(); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return false, nil
}

// ========== 單機 token bucket ==========

const maxLocalKeys = 10000

type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func NewLocalLimiter(rps float64, burst int) *LocalLimiter {
	return &LocalLimiter{limiters: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxLocalKeys {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow(), nil
}

// rateLimit Redis 出錯時放行，只記錄警告
func rateLimit(l Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable", "error", err)
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "請求太頻繁，請稍後再試"})
			return
		}
		c.Next()
	}
}
