package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-assistant/internal/assistant"
	"github.com/iliyamo/cinema-assistant/internal/service"
	"github.com/iliyamo/cinema-assistant/internal/session"
)

type turnFunc func(ctx context.Context, utterance string, sc assistant.SessionContext) assistant.TurnResult

func (f turnFunc) HandleTurn(ctx context.Context, utterance string, sc assistant.SessionContext) assistant.TurnResult {
	return f(ctx, utterance, sc)
}

type fakeActions struct {
	got []service.ActionRequest
}

func (f *fakeActions) Execute(_ context.Context, req service.ActionRequest) *service.ActionResult {
	f.got = append(f.got, req)
	if req.Action == nil {
		return nil
	}
	if req.UserID == 0 {
		return &service.ActionResult{Status: service.StatusUnauthorized}
	}
	return &service.ActionResult{Status: service.StatusCompleted, PaymentURL: "/checkout?hold=abc"}
}

type fakeRules []assistant.RuleInfo

func (f fakeRules) Rules() []assistant.RuleInfo { return f }

type fakeCatalog struct {
	catalog  []assistant.CatalogEntry
	occupied assistant.SeatSet
	err      error
}

func (f *fakeCatalog) FetchCatalog(context.Context) ([]assistant.CatalogEntry, error) {
	return f.catalog, f.err
}

func (f *fakeCatalog) FetchShowsForMovie(context.Context, uint64) (assistant.ShowsByDate, error) {
	return assistant.ShowsByDate{}, f.err
}

func (f *fakeCatalog) FetchOccupiedSeats(context.Context, uint64) (assistant.SeatSet, error) {
	return f.occupied, f.err
}

// bookingCore answers "book" with a booking action and a movie patch, and
// anything else with small talk.
func bookingCore() turnFunc {
	return func(_ context.Context, utterance string, _ assistant.SessionContext) assistant.TurnResult {
		if !strings.HasPrefix(utterance, "book") {
			return assistant.TurnResult{Reply: "Hello!", Intent: "small_talk"}
		}
		movieID := uint64(3)
		return assistant.TurnResult{
			Reply:  "Booking E1, E2.",
			Intent: "book_tickets",
			Action: &assistant.Action{Kind: assistant.ActionCreateBooking, Payload: map[string]any{"showId": uint64(30)}},
			Patch:  &assistant.ContextPatch{LastMovieID: &movieID},
		}
	}
}

func newAssistantServer(t *testing.T, core turnFunc, userID float64) (*echo.Echo, *fakeActions, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	actions := &fakeActions{}
	h := NewAssistantHandler(session.NewManager(store, core, nil), actions,
		fakeRules{{Order: 1, Name: "navigate", Category: "navigation"}, {Order: 2, Name: "book_seats", Category: "booking"}}, nil)

	e := echo.New()
	withUser := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if userID > 0 {
				c.Set("user_id", userID)
			}
			return next(c)
		}
	}
	e.POST("/v1/assistant/turns", h.Turn, withUser)
	e.GET("/v1/assistant/sessions/:id", h.GetSession)
	e.DELETE("/v1/assistant/sessions/:id", h.ResetSession)
	e.GET("/v1/admin/assistant/rules", h.ListRules)
	return e, actions, store
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body, err)
	}
}

func TestTurnValidation(t *testing.T) {
	e, actions, _ := newAssistantServer(t, bookingCore(), 0)
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"message":`},
		{"empty message", `{"message":"   "}`},
		{"long message", `{"message":"` + strings.Repeat("a", maxMessageLen+1) + `"}`},
		{"bad session id", `{"session_id":"no spaces allowed","message":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/v1/assistant/turns", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body)
			}
		})
	}
	if len(actions.got) != 0 {
		t.Fatalf("actions executed for rejected requests: %+v", actions.got)
	}
}

func TestTurnStartsSessionAndPersists(t *testing.T) {
	e, _, store := newAssistantServer(t, bookingCore(), 9)

	rec := do(e, http.MethodPost, "/v1/assistant/turns", `{"message":"book 2 tickets for Dune"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	var res struct {
		SessionID    string                   `json:"session_id"`
		Reply        string                   `json:"reply"`
		Intent       string                   `json:"intent"`
		Action       *assistant.Action        `json:"action"`
		ActionResult *service.ActionResult    `json:"action_result"`
		Context      assistant.SessionContext `json:"context"`
	}
	decode(t, rec, &res)
	if !session.ValidID(res.SessionID) {
		t.Fatalf("session_id = %q", res.SessionID)
	}
	if res.Intent != "book_tickets" || res.Action == nil || res.Action.Kind != assistant.ActionCreateBooking {
		t.Fatalf("response = %+v", res)
	}
	if res.ActionResult == nil || res.ActionResult.Status != service.StatusCompleted {
		t.Fatalf("action_result = %+v", res.ActionResult)
	}
	if res.Context.LastMovieID != 3 {
		t.Fatalf("context = %+v", res.Context)
	}
	stored, _ := store.Load(context.Background(), res.SessionID)
	if stored.LastMovieID != 3 {
		t.Fatalf("stored = %+v", stored)
	}

	rec = do(e, http.MethodGet, "/v1/assistant/sessions/"+res.SessionID, "")
	var got struct {
		Context assistant.SessionContext `json:"context"`
	}
	decode(t, rec, &got)
	if rec.Code != http.StatusOK || got.Context.LastMovieID != 3 {
		t.Fatalf("GET session = %d %s", rec.Code, rec.Body)
	}

	if rec := do(e, http.MethodDelete, "/v1/assistant/sessions/"+res.SessionID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE session = %d", rec.Code)
	}
	stored, _ = store.Load(context.Background(), res.SessionID)
	if stored.LastMovieID != 0 {
		t.Fatalf("stored after reset = %+v", stored)
	}
}

func TestTurnPassesUser(t *testing.T) {
	tests := []struct {
		name   string
		userID float64
		want   service.ActionStatus
	}{
		{"guest", 0, service.StatusUnauthorized},
		{"signed in", 9, service.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, actions, _ := newAssistantServer(t, bookingCore(), tt.userID)
			rec := do(e, http.MethodPost, "/v1/assistant/turns", `{"session_id":"abcdefgh12","message":"book E1"}`)
			var res struct {
				SessionID    string                `json:"session_id"`
				ActionResult *service.ActionResult `json:"action_result"`
			}
			decode(t, rec, &res)
			if res.SessionID != "abcdefgh12" {
				t.Fatalf("session_id = %q", res.SessionID)
			}
			if res.ActionResult == nil || res.ActionResult.Status != tt.want {
				t.Fatalf("action_result = %+v", res.ActionResult)
			}
			if len(actions.got) != 1 || actions.got[0].UserID != uint64(tt.userID) || actions.got[0].SessionID != "abcdefgh12" {
				t.Fatalf("requests = %+v", actions.got)
			}
		})
	}
}

func TestTurnWithoutActionOmitsResult(t *testing.T) {
	e, _, _ := newAssistantServer(t, bookingCore(), 0)
	rec := do(e, http.MethodPost, "/v1/assistant/turns", `{"message":"hi"}`)
	var res map[string]any
	decode(t, rec, &res)
	if res["reply"] != "Hello!" {
		t.Fatalf("reply = %v", res["reply"])
	}
	if _, ok := res["action_result"]; ok {
		t.Fatalf("unexpected action_result in %s", rec.Body)
	}
	if _, ok := res["action"]; ok {
		t.Fatalf("unexpected action in %s", rec.Body)
	}
}

func TestSessionEndpointsRejectBadID(t *testing.T) {
	e, _, _ := newAssistantServer(t, bookingCore(), 0)
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		if rec := do(e, method, "/v1/assistant/sessions/short", ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d", method, rec.Code)
		}
	}
}

func TestListRules(t *testing.T) {
	e, _, _ := newAssistantServer(t, bookingCore(), 0)
	rec := do(e, http.MethodGet, "/v1/admin/assistant/rules", "")
	var res struct {
		Items []assistant.RuleInfo `json:"items"`
	}
	decode(t, rec, &res)
	if len(res.Items) != 2 || res.Items[0].Name != "navigate" || res.Items[1].Order != 2 {
		t.Fatalf("items = %+v", res.Items)
	}
}

func newCatalogServer(f *fakeCatalog) *echo.Echo {
	h := NewCatalogHandler(f)
	e := echo.New()
	e.GET("/v1/movies", h.ListMovies)
	e.GET("/v1/shows/:id/seats/suggest", h.SuggestSeats)
	return e
}

func TestListMovies(t *testing.T) {
	f := &fakeCatalog{catalog: []assistant.CatalogEntry{
		{ID: 1, Title: "Dune", Genres: []assistant.Genre{{Name: "Sci-Fi"}}},
		{ID: 2, Title: "Oppenheimer", Genres: []assistant.Genre{{Name: "Drama"}}},
	}}
	e := newCatalogServer(f)

	tests := []struct {
		path string
		want []string
	}{
		{"/v1/movies", []string{"Dune", "Oppenheimer"}},
		{"/v1/movies?genre=drama", []string{"Oppenheimer"}},
		{"/v1/movies?genre=Horror", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.path, "")
			var res struct {
				Items []assistant.CatalogEntry `json:"items"`
			}
			decode(t, rec, &res)
			if len(res.Items) != len(tt.want) {
				t.Fatalf("items = %+v, want %v", res.Items, tt.want)
			}
			for i, title := range tt.want {
				if res.Items[i].Title != title {
					t.Fatalf("items[%d] = %q, want %q", i, res.Items[i].Title, title)
				}
			}
		})
	}

	f.err = errors.New("db down")
	if rec := do(e, http.MethodGet, "/v1/movies", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status on error = %d", rec.Code)
	}
}

func TestSuggestSeats(t *testing.T) {
	f := &fakeCatalog{occupied: assistant.NewSeatSet()}
	e := newCatalogServer(f)

	tests := []struct {
		name      string
		path      string
		status    int
		seats     []string
		requested int
	}{
		{"default pair", "/v1/shows/7/seats/suggest", http.StatusOK, []string{"E1", "E2"}, 2},
		{"three", "/v1/shows/7/seats/suggest?count=3", http.StatusOK, []string{"E1", "E2", "E3"}, 3},
		{"clamped", "/v1/shows/7/seats/suggest?count=0", http.StatusOK, []string{"E1"}, 1},
		{"bad count", "/v1/shows/7/seats/suggest?count=two", http.StatusBadRequest, nil, 0},
		{"bad show", "/v1/shows/x/seats/suggest", http.StatusBadRequest, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.path, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			if tt.status != http.StatusOK {
				return
			}
			var res seatSuggestion
			decode(t, rec, &res)
			if strings.Join(res.Seats, ",") != strings.Join(tt.seats, ",") || res.Requested != tt.requested {
				t.Fatalf("suggestion = %+v", res)
			}
			if !res.Together || res.Free != assistant.TotalSeats || res.Status != "available" {
				t.Fatalf("suggestion = %+v", res)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	e := echo.New()
	e.GET("/up", Health(map[string]Pinger{"mysql": ok, "redis": ok}))
	e.GET("/down", Health(map[string]Pinger{"mysql": ok, "redis": down}))

	if rec := do(e, http.MethodGet, "/up", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("up = %d %q", rec.Code, rec.Body)
	}
	rec := do(e, http.MethodGet, "/down", "")
	var res struct {
		Down map[string]string `json:"down"`
	}
	decode(t, rec, &res)
	if rec.Code != http.StatusServiceUnavailable || res.Down["redis"] == "" || res.Down["mysql"] != "" {
		t.Fatalf("down = %d %s", rec.Code, rec.Body)
	}
}

func TestRefreshCatalog(t *testing.T) {
	calls := 0
	e := echo.New()
	e.DELETE("/ok", RefreshCatalog(func(context.Context) error {
		calls++
		return nil
	}))
	e.DELETE("/fail", RefreshCatalog(func(context.Context) error { return errors.New("redis down") }))

	if rec := do(e, http.MethodDelete, "/ok", ""); rec.Code != http.StatusNoContent || calls != 1 {
		t.Fatalf("ok = %d, calls = %d", rec.Code, calls)
	}
	if rec := do(e, http.MethodDelete, "/fail", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("fail = %d", rec.Code)
	}
}
