package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/clock"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/response"
)

// AnswerRateLimiter is a per-user fixed-window limiter shared by every
// instance through Redis.
type AnswerRateLimiter struct {
	rdb    redis.UniversalClient
	clock  clock.Clock
	limit  int
	window time.Duration
	log    zerolog.Logger
}

// NewAnswerRateLimiter allows limit answer writes per user per window.
func NewAnswerRateLimiter(rdb redis.UniversalClient, clk clock.Clock, limit int, window time.Duration, log zerolog.Logger) *AnswerRateLimiter {
	return &AnswerRateLimiter{
		rdb:    rdb,
		clock:  clk,
		limit:  limit,
		window: window,
		log:    log.With().Str("component", "answer_rate_limiter").Logger(),
	}
}

// Allow counts one request for userID and reports whether it is within the limit.
func (rl *AnswerRateLimiter) Allow(ctx context.Context, userID int) (bool, error) {
	bucket := rl.clock.Now().UnixNano() / int64(rl.window)
	key := config.CacheKey.UserAnswerRateKey(userID, bucket)

	var incr *redis.IntCmd
	_, err := rl.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rl.window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(rl.limit), nil
}

// Middleware rate-limits the authenticated student. When Redis is down
// requests are let through; the session store reports its own outage.
func (rl *AnswerRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil || rl.limit <= 0 {
			c.Next()
			return
		}

		ok, err := rl.Allow(c.Request.Context(), claims.UserID)
		if err != nil {
			rl.log.Warn().Err(err).Int("user_id", claims.UserID).Msg("Rate limit check failed, allowing request")
			c.Next()
			return
		}
		if !ok {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
