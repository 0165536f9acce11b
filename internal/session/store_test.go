package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-assistant/internal/assistant"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "test:session", ttl), mr
}

func TestStores(t *testing.T) {
	redisStore, _ := newRedisStore(t, 0)
	stores := map[string]Store{
		"redis":  redisStore,
		"memory": NewMemoryStore(),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := s.Load(ctx, "unknown-session")
			if err != nil {
				t.Fatalf("Load unknown: %v", err)
			}
			if got.LastMovieID != 0 || got.GenreAffinity == nil {
				t.Fatalf("unknown session should load empty, got %+v", got)
			}

			sc := assistant.SessionContext{
				LastMovieID:       2,
				LastMovieTitle:    "Oppenheimer",
				LastShowID:        201,
				PendingCouponCode: "SAVE10",
				GenreAffinity:     map[string]int{"Drama": 2},
			}
			if err := s.Save(ctx, "abc12345", sc); err != nil {
				t.Fatalf("Save: %v", err)
			}
			sc.GenreAffinity["Drama"] = 99

			got, err = s.Load(ctx, "abc12345")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.LastShowID != 201 || got.PendingCouponCode != "SAVE10" || got.GenreAffinity["Drama"] != 2 {
				t.Fatalf("Load = %+v", got)
			}

			if err := s.Delete(ctx, "abc12345"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			got, _ = s.Load(ctx, "abc12345")
			if got.LastMovieID != 0 {
				t.Fatalf("context survived delete: %+v", got)
			}
		})
	}
}

func TestRedisStoreTTL(t *testing.T) {
	s, mr := newRedisStore(t, time.Hour)
	if err := s.Save(context.Background(), "abc12345", assistant.Empty()); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("test:session:abc12345"); ttl != time.Hour {
		t.Fatalf("ttl = %v, want 1h", ttl)
	}

	s, mr = newRedisStore(t, 0)
	if err := s.Save(context.Background(), "abc12345", assistant.Empty()); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("test:session:abc12345"); ttl != 0 {
		t.Fatalf("ttl = %v, want no expiry", ttl)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	s, mr := newRedisStore(t, 0)
	mr.Close()
	if _, err := s.Load(context.Background(), "abc12345"); err == nil {
		t.Fatal("expected an error once redis is gone")
	}
}

func TestIDs(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != 32 || !ValidID(id) {
		t.Fatalf("NewID() = %q", id)
	}
	for _, bad := range []string{"", "short", "has space in it", "semi;colon-123"} {
		if ValidID(bad) {
			t.Errorf("ValidID(%q) = true", bad)
		}
	}
}
