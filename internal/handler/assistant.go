// Package handler exposes the HTTP endpoints of the assistant: chat turns,
// session inspection, the public catalog and seat suggestions.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-assistant/internal/assistant"
	"github.com/iliyamo/cinema-assistant/internal/middleware"
	"github.com/iliyamo/cinema-assistant/internal/service"
	"github.com/iliyamo/cinema-assistant/internal/session"
)

const maxMessageLen = 500

// Sessions runs turns against stored conversation contexts.
type Sessions interface {
	RunTurn(ctx context.Context, id, utterance string) (session.Outcome, error)
	Context(ctx context.Context, id string) (assistant.SessionContext, error)
	Reset(ctx context.Context, id string) error
}

// Actions performs the side effect a turn asked for.
type Actions interface {
	Execute(ctx context.Context, req service.ActionRequest) *service.ActionResult
}

// RuleLister exposes the ordered rule table.
type RuleLister interface {
	Rules() []assistant.RuleInfo
}

// AssistantHandler serves the chat endpoints.
type AssistantHandler struct {
	sessions Sessions
	actions  Actions
	rules    RuleLister
	logger   *slog.Logger
}

func NewAssistantHandler(sessions Sessions, actions Actions, rules RuleLister, logger *slog.Logger) *AssistantHandler {
	if sessions == nil || actions == nil || rules == nil {
		panic("nil dependency passed to NewAssistantHandler")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AssistantHandler{sessions: sessions, actions: actions, rules: rules, logger: logger}
}

type turnRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type turnResponse struct {
	SessionID    string                   `json:"session_id"`
	Reply        string                   `json:"reply"`
	Intent       string                   `json:"intent"`
	Action       *assistant.Action        `json:"action,omitempty"`
	ActionResult *service.ActionResult    `json:"action_result,omitempty"`
	Context      assistant.SessionContext `json:"context"`
}

// Turn answers one chat message. A missing session_id starts a new session.
func (h *AssistantHandler) Turn(c echo.Context) error {
	var req turnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid json"})
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message is required"})
	}
	if len(req.Message) > maxMessageLen {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "message is too long"})
	}
	if req.SessionID == "" {
		id, err := session.NewID()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not start session"})
		}
		req.SessionID = id
	} else if !session.ValidID(req.SessionID) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session_id"})
	}

	ctx := c.Request().Context()
	out, err := h.sessions.RunTurn(ctx, req.SessionID, req.Message)
	switch {
	case errors.Is(err, session.ErrInvalidID):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session_id"})
	case errors.Is(err, session.ErrStaleTurn):
		return c.JSON(http.StatusConflict, echo.Map{"error": "session was reset or the request was cancelled"})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "session is busy"})
	case err != nil:
		h.logger.Error("assistant: turn failed", "session", req.SessionID, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session store error"})
	}

	userID, _ := middleware.UserID(c)
	res := turnResponse{
		SessionID: req.SessionID,
		Reply:     out.Result.Reply,
		Intent:    out.Result.Intent,
		Action:    out.Result.Action,
		Context:   out.Context,
	}
	res.ActionResult = h.actions.Execute(ctx, service.ActionRequest{
		SessionID: req.SessionID,
		UserID:    userID,
		Action:    out.Result.Action,
	})
	return c.JSON(http.StatusOK, res)
}

// GetSession returns the stored context of a session.
func (h *AssistantHandler) GetSession(c echo.Context) error {
	id := c.Param("id")
	if !session.ValidID(id) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	sc, err := h.sessions.Context(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("assistant: load session", "session", id, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session store error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"session_id": id, "context": sc})
}

// ResetSession forgets everything the session remembered.
func (h *AssistantHandler) ResetSession(c echo.Context) error {
	id := c.Param("id")
	if !session.ValidID(id) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	if err := h.sessions.Reset(c.Request().Context(), id); err != nil {
		h.logger.Error("assistant: reset session", "session", id, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session store error"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListRules returns the rule table in evaluation order.
func (h *AssistantHandler) ListRules(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"items": h.rules.Rules()})
}
