package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-assistant/internal/config"
)

// gcra keeps one value per key, the theoretical arrival time (TAT) in ms. A
// request is let through unless it arrives earlier than burst emissions
// before the TAT. Returns {allowed, remaining, retry_after_ms}.
var gcra = redis.NewScript(`
local now = tonumber(ARGV[1])
local emission = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local tat = tonumber(redis.call('GET', KEYS[1]))
if tat == nil or tat < now then
	tat = now
end

local window = burst * emission
local allow_at = tat + emission - window
if now < allow_at then
	return { 0, 0, allow_at - now }
end

local next_tat = tat + emission
redis.call('SET', KEYS[1], next_tat, 'PX', ttl_ms)
return { 1, math.floor((now - (next_tat - window)) / emission), 0 }
`)

// NewTokenBucket limits turns per caller. Capacity requests may arrive at
// once; after that one is allowed per RefillInterval/RefillTokens. It lets
// everything through when disabled, without Redis, or when Redis fails.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	emission := cfg.RefillInterval.Milliseconds() / int64(max(cfg.RefillTokens, 1))
	if emission < 1 {
		emission = 1
	}
	burst := int64(max(cfg.Capacity, 1))
	ttl := max(cfg.TTL.Milliseconds(), burst*emission)
	limit := strconv.FormatInt(burst, 10)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			res, err := gcra.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), emission, burst, ttl).Int64Slice()
			if err != nil || len(res) != 3 {
				logger.Warn("ratelimit: script failed, letting request through", "key", key, "err", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if res[0] == 1 {
				return next(c)
			}

			wait := time.Duration(res[2]) * time.Millisecond
			secs := int((wait + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				logger.Info("ratelimit: blocked", "key", key, "retry_after", wait.String())
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "slow down a little, then try again",
				"retry_after": secs,
			})
		}
	}
}

// rateKey joins the prefix with one segment per dimension named in the key
// strategy ("ip_user" → ip and user). Unknown strategies use all three.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	dims := strings.Split(strings.ToLower(cfg.KeyStrategy), "_")
	known := 0
	for _, d := range dims {
		if d == "ip" || d == "user" || d == "route" {
			known++
		}
	}
	if known == 0 || known != len(dims) {
		dims = []string{"ip", "user", "route"}
	}

	parts := []string{cfg.Prefix}
	for _, d := range dims {
		switch d {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", subject(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	return strings.Join(parts, ":")
}
