package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/iliyamo/cinema-assistant/internal/assistant"
)

// ErrStaleTurn is returned when a turn finished after its request was
// cancelled or after the session was reset. Its patch was not applied.
var ErrStaleTurn = errors.New("session: turn superseded")

// TurnHandler is the reasoning core as seen by the manager.
type TurnHandler interface {
	HandleTurn(ctx context.Context, utterance string, sc assistant.SessionContext) assistant.TurnResult
}

// Outcome is a completed turn together with the context after it.
type Outcome struct {
	Result  assistant.TurnResult
	Context assistant.SessionContext
}

// Manager runs turns against stored contexts. Turns of one session run one at
// a time; different sessions never wait on each other.
type Manager struct {
	store   Store
	handler TurnHandler
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	turn  chan struct{} // holds a token while a turn runs
	apply sync.Mutex    // guards gen and the store write that follows a check
	gen   uint64
	refs  int
}

func NewManager(store Store, handler TurnHandler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		store:   store,
		handler: handler,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// RunTurn answers utterance in session id and applies the resulting patch.
// A caller that gives up (ctx cancelled) while waiting for the session gets
// ctx.Err(); one that gives up while the turn runs gets the result back with
// ErrStaleTurn and the stored context untouched.
func (m *Manager) RunTurn(ctx context.Context, id, utterance string) (Outcome, error) {
	if !ValidID(id) {
		return Outcome{}, ErrInvalidID
	}
	e := m.acquire(id)
	defer m.release(id, e)

	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	defer func() { <-e.turn }()

	e.apply.Lock()
	gen := e.gen
	e.apply.Unlock()

	sc, err := m.store.Load(ctx, id)
	if err != nil {
		return Outcome{}, fmt.Errorf("load session: %w", err)
	}
	res := m.handler.HandleTurn(ctx, utterance, sc)

	e.apply.Lock()
	defer e.apply.Unlock()
	if ctx.Err() != nil || e.gen != gen {
		m.logger.Info("dropping stale turn", "session", id, "intent", res.Intent)
		return Outcome{Result: res, Context: sc}, ErrStaleTurn
	}

	writeCtx := context.WithoutCancel(ctx)
	switch {
	case res.Reset:
		e.gen++
		if err := m.store.Delete(writeCtx, id); err != nil {
			return Outcome{}, fmt.Errorf("reset session: %w", err)
		}
		return Outcome{Result: res, Context: assistant.Empty()}, nil
	case !res.Patch.IsEmpty():
		next := assistant.Merge(sc, res.Patch)
		if err := m.store.Save(writeCtx, id, next); err != nil {
			return Outcome{}, fmt.Errorf("save session: %w", err)
		}
		return Outcome{Result: res, Context: next}, nil
	}
	return Outcome{Result: res, Context: sc}, nil
}

// Context returns the stored context for id.
func (m *Manager) Context(ctx context.Context, id string) (assistant.SessionContext, error) {
	if !ValidID(id) {
		return assistant.SessionContext{}, ErrInvalidID
	}
	return m.store.Load(ctx, id)
}

// Reset deletes the stored context. A turn already in flight for the session
// finishes but its patch is discarded.
func (m *Manager) Reset(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	e := m.acquire(id)
	defer m.release(id, e)

	e.apply.Lock()
	defer e.apply.Unlock()
	e.gen++
	return m.store.Delete(ctx, id)
}

func (m *Manager) acquire(id string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		e = &entry{turn: make(chan struct{}, 1)}
		m.entries[id] = e
	}
	e.refs++
	return e
}

func (m *Manager) release(id string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, id)
	}
}
