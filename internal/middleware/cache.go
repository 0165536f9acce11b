package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-assistant/internal/config"
)

// cachedResponse is what a cache entry holds. Body is base64 in JSON.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// recorder tees the response body into buf until limit bytes, and notes
// whether anything was cut off.
type recorder struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	keep := b
	if r.limit > 0 {
		room := r.limit - r.buf.Len()
		if room < len(b) {
			keep = b[:max(room, 0)]
			r.truncated = true
		}
	}
	r.buf.Write(keep)
	return r.ResponseWriter.Write(b)
}

// NewRedisCache serves repeated anonymous reads of public endpoints from
// Redis. Only 200 responses that fit in MaxBodyBytes are stored. Requests
// with an Authorization header always reach the handler.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !cfg.Methods[req.Method] || req.Header.Get(echo.HeaderAuthorization) != "" {
				return next(c)
			}
			key := responseKey(cfg, c)

			if hit, ok := lookup(req.Context(), rdb, key); ok {
				h := c.Response().Header()
				for name, vals := range hit.Header {
					if name != echo.HeaderContentLength {
						h[name] = vals
					}
				}
				h.Set("X-Cache", "HIT")
				return c.Blob(hit.Status, h.Get(echo.HeaderContentType), hit.Body)
			}

			rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.truncated {
				return nil
			}
			entry := cachedResponse{Status: rec.status, Header: c.Response().Header().Clone(), Body: rec.buf.Bytes()}
			entry.Header.Del("X-Cache")
			if data, err := json.Marshal(entry); err == nil {
				_ = rdb.Set(context.WithoutCancel(req.Context()), key, data, ttl).Err()
			}
			return nil
		}
	}
}

func lookup(ctx context.Context, rdb *redis.Client, key string) (cachedResponse, bool) {
	data, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return cachedResponse{}, false
	}
	var hit cachedResponse
	if err := json.Unmarshal(data, &hit); err != nil || hit.Status == 0 {
		return cachedResponse{}, false
	}
	return hit, true
}

// responseKey hashes the parts selected by KeyStrategy: "route" uses the
// route pattern, "method_" adds the method and "_query" the raw query.
// Anything else means route plus query.
func responseKey(cfg config.CacheConfig, c echo.Context) string {
	strategy := strings.ToLower(cfg.KeyStrategy)
	if !strings.Contains(strategy, "route") {
		strategy = "route_query"
	}
	var b strings.Builder
	if strings.HasPrefix(strategy, "method_") {
		b.WriteString(c.Request().Method)
		b.WriteByte(' ')
	}
	b.WriteString(c.Path())
	if strings.HasSuffix(strategy, "_query") {
		b.WriteByte('?')
		b.WriteString(c.Request().URL.RawQuery)
	}
	sum := sha1.Sum([]byte(b.String()))
	return cfg.Prefix + ":" + hex.EncodeToString(sum[:])
}
