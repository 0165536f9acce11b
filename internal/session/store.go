// Package session keeps per-conversation context between assistant turns and
// serializes turns of the same conversation.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-assistant/internal/assistant"
)

// ErrInvalidID is returned for session IDs that are not 8-64 URL-safe characters.
var ErrInvalidID = errors.New("session: invalid id")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// ValidID reports whether id can be used as a session key.
func ValidID(id string) bool { return idPattern.MatchString(id) }

// NewID returns a random 32 character hex session ID.
func NewID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Store persists session contexts. Load of an unknown ID returns an empty
// context rather than an error.
type Store interface {
	Load(ctx context.Context, id string) (assistant.SessionContext, error)
	Save(ctx context.Context, id string, sc assistant.SessionContext) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps each context as a JSON string under prefix:id.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store on rdb. A ttl of zero keeps contexts until
// they are reset.
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "assistant:session"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string { return s.prefix + ":" + id }

func (s *RedisStore) Load(ctx context.Context, id string) (assistant.SessionContext, error) {
	bs, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return assistant.Empty(), nil
	}
	if err != nil {
		return assistant.SessionContext{}, fmt.Errorf("redis get %s: %w", id, err)
	}
	var sc assistant.SessionContext
	if err := json.Unmarshal(bs, &sc); err != nil {
		return assistant.SessionContext{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sc.GenreAffinity == nil {
		sc.GenreAffinity = map[string]int{}
	}
	return sc, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, sc assistant.SessionContext) error {
	bs, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	if err := s.rdb.Set(ctx, s.key(id), bs, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", id, err)
	}
	return nil
}

// MemoryStore is an in-process Store used when Redis is unavailable and in
// tests. Values are copied in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]assistant.SessionContext
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]assistant.SessionContext)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (assistant.SessionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.sessions[id]
	if !ok {
		return assistant.Empty(), nil
	}
	return assistant.Merge(sc, nil), nil
}

func (s *MemoryStore) Save(_ context.Context, id string, sc assistant.SessionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = assistant.Merge(sc, nil)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
