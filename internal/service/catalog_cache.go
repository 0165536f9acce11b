package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-assistant/internal/assistant"
)

// CatalogCache keeps the catalog snapshot in Redis so most turns skip the
// catalog queries. Show and occupancy lookups pass straight through. With a
// nil client it is a plain passthrough; a Redis error falls back to the
// wrapped collaborators.
type CatalogCache struct {
	next   assistant.Collaborators
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCatalogCache wraps next. The snapshot lives under key for ttl.
func NewCatalogCache(next assistant.Collaborators, rdb *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *CatalogCache {
	if key == "" {
		key = "assistant:catalog"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CatalogCache{next: next, rdb: rdb, key: key, ttl: ttl, logger: logger}
}

func (c *CatalogCache) FetchCatalog(ctx context.Context) ([]assistant.CatalogEntry, error) {
	if c.rdb == nil || c.ttl <= 0 {
		return c.next.FetchCatalog(ctx)
	}
	bs, err := c.rdb.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		var catalog []assistant.CatalogEntry
		if uerr := json.Unmarshal(bs, &catalog); uerr == nil {
			return catalog, nil
		}
		c.logger.Warn("catalog-cache: dropping undecodable snapshot")
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("catalog-cache: get failed", "err", err)
	}

	catalog, err := c.next.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if bs, err := json.Marshal(catalog); err == nil {
		if err := c.rdb.Set(ctx, c.key, bs, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog-cache: set failed", "err", err)
		}
	}
	return catalog, nil
}

// Invalidate drops the snapshot so the next turn reloads it.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, c.key).Err()
}

func (c *CatalogCache) FetchShowsForMovie(ctx context.Context, movieID uint64) (assistant.ShowsByDate, error) {
	return c.next.FetchShowsForMovie(ctx, movieID)
}

func (c *CatalogCache) FetchOccupiedSeats(ctx context.Context, showID uint64) (assistant.SeatSet, error) {
	return c.next.FetchOccupiedSeats(ctx, showID)
}
