package assistant

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

type fakeDeps struct {
	catalog  []CatalogEntry
	shows    map[uint64]ShowsByDate
	occupied map[uint64]SeatSet
	err      error
	block    bool
	panics   bool
}

func (f *fakeDeps) FetchCatalog(ctx context.Context) ([]CatalogEntry, error) {
	switch {
	case f.panics:
		panic("catalog exploded")
	case f.block:
		<-ctx.Done()
		return nil, ctx.Err()
	case f.err != nil:
		return nil, f.err
	}
	return f.catalog, nil
}

func (f *fakeDeps) FetchShowsForMovie(_ context.Context, movieID uint64) (ShowsByDate, error) {
	return f.shows[movieID], nil
}

func (f *fakeDeps) FetchOccupiedSeats(_ context.Context, showID uint64) (SeatSet, error) {
	return f.occupied[showID], nil
}

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newFakeDeps() *fakeDeps {
	oppenheimerOccupied := occupyRows("ABC")
	for col := 1; col <= 4; col++ {
		oppenheimerOccupied[SeatLabel('D', col)] = struct{}{}
	}
	return &fakeDeps{
		catalog: []CatalogEntry{
			{ID: 1, Title: "Dune", Genres: []Genre{{Name: "Sci-Fi"}, {Name: "Adventure"}}},
			{ID: 2, Title: "Oppenheimer", Genres: []Genre{{Name: "Drama"}, {Name: "History"}}},
			{ID: 3, Title: "Inception", Genres: []Genre{{Name: "Sci-Fi"}, {Name: "Thriller"}}},
			{ID: 4, Title: "Barbie", Genres: []Genre{{Name: "Comedy"}}},
		},
		shows: map[uint64]ShowsByDate{
			1: {
				"2024-05-01": {
					{ShowID: 101, StartTimeISO: "2024-05-01T14:00:00Z"},
					{ShowID: 102, StartTimeISO: "2024-05-01T18:30:00Z"},
					{ShowID: 103, StartTimeISO: "2024-05-01T21:00:00Z"},
				},
				"2024-05-02": {{ShowID: 104, StartTimeISO: "2024-05-02T19:00:00Z"}},
			},
			2: {"2024-05-01": {{ShowID: 201, StartTimeISO: "2024-05-01T19:00:00Z"}}},
			3: {"2024-05-02": {{ShowID: 301, StartTimeISO: "2024-05-02T20:00:00Z"}}},
		},
		occupied: map[uint64]SeatSet{
			103: NewSeatSet("E6"),
			201: oppenheimerOccupied,
		},
	}
}

func newTestRouter(deps Collaborators) *Router {
	return NewRouter(deps, Options{
		Now:                 func() time.Time { return testNow },
		CollaboratorTimeout: 50 * time.Millisecond,
	})
}

func TestHandleTurnAvailability(t *testing.T) {
	r := newTestRouter(newFakeDeps())
	res := r.HandleTurn(context.Background(), "Are seats available for Oppenheimer today?", Empty())

	if res.Intent != "availability" {
		t.Fatalf("intent = %q", res.Intent)
	}
	if !strings.Contains(res.Reply, "available") || !strings.Contains(res.Reply, "80 of 120") || !strings.Contains(res.Reply, "19:00") {
		t.Fatalf("reply = %q", res.Reply)
	}
	if res.Action != nil {
		t.Fatalf("unexpected action %+v", res.Action)
	}
	if res.Patch == nil || *res.Patch.LastMovieID != 2 || *res.Patch.LastShowID != 201 {
		t.Fatalf("patch = %+v", res.Patch)
	}
}

func TestHandleTurnBookTickets(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		sc        SessionContext
		wantShow  uint64
		wantSeats []string
		wantDate  string
	}{
		{"tonight picks the evening show", "book 2 tickets for Dune tonight", Empty(), 102, []string{"E1", "E2"}, "2024-05-01"},
		{"relative date", "book 2 tickets for Inception tomorrow", Empty(), 301, []string{"E1", "E2"}, "2024-05-02"},
		{"count is clamped", "book 9 tickets for dune", Empty(), 101, []string{"E1", "E2", "E3", "E4", "E5", "E6"}, "2024-05-01"},
		{
			"follow-up keeps the show in context", "book three tickets",
			SessionContext{LastMovieID: 1, LastShowID: 104, LastDate: "2024-05-02"},
			104, []string{"E1", "E2", "E3"}, "2024-05-02",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(newFakeDeps())
			res := r.HandleTurn(context.Background(), tc.text, tc.sc)
			if res.Intent != "book_tickets" {
				t.Fatalf("intent = %q (%s)", res.Intent, res.Reply)
			}
			if res.Action == nil || res.Action.Kind != ActionCreateBooking {
				t.Fatalf("action = %+v (%s)", res.Action, res.Reply)
			}
			if id, _ := res.Action.Uint("showId"); id != tc.wantShow {
				t.Fatalf("showId = %d, want %d", id, tc.wantShow)
			}
			if seats, _ := res.Action.Strings("seats"); !reflect.DeepEqual(seats, tc.wantSeats) {
				t.Fatalf("seats = %v, want %v", seats, tc.wantSeats)
			}
			if res.Patch == nil || *res.Patch.LastShowID != tc.wantShow || *res.Patch.LastDate != tc.wantDate {
				t.Fatalf("patch = %+v", res.Patch)
			}
		})
	}
}

func TestHandleTurnClampIsMentioned(t *testing.T) {
	for _, text := range []string{
		"book 9 tickets for dune",
		"book 99999999999999999999 tickets for dune",
	} {
		t.Run(text, func(t *testing.T) {
			r := newTestRouter(newFakeDeps())
			res := r.HandleTurn(context.Background(), text, Empty())
			if !strings.Contains(res.Reply, "between 1 and 6") {
				t.Fatalf("reply = %q", res.Reply)
			}
			if seats, _ := res.Action.Strings("seats"); len(seats) != MaxSeatsPerBooking {
				t.Fatalf("seats = %v", seats)
			}
		})
	}
}

func TestHandleTurnBookSeats(t *testing.T) {
	r := newTestRouter(newFakeDeps())

	res := r.HandleTurn(context.Background(), "book E5 and E6 for Dune at 9 pm", Empty())
	if res.Intent != "book_seats" || res.Action != nil {
		t.Fatalf("taken seat should not book: %+v", res)
	}
	if !strings.Contains(res.Reply, "E6 is already taken") || !strings.Contains(res.Reply, "E1, E2") {
		t.Fatalf("reply = %q", res.Reply)
	}

	res = r.HandleTurn(context.Background(), "reserve a1, a2 and a1 for dune at 9 pm", Empty())
	if res.Action == nil || res.Action.Kind != ActionCreateBooking {
		t.Fatalf("action = %+v (%s)", res.Action, res.Reply)
	}
	if seats, _ := res.Action.Strings("seats"); !reflect.DeepEqual(seats, []string{"A1", "A2"}) {
		t.Fatalf("seats = %v", seats)
	}
	if id, _ := res.Action.Uint("showId"); id != 103 {
		t.Fatalf("showId = %d", id)
	}
}

func TestHandleTurnPendingCouponIsUsedAndCleared(t *testing.T) {
	r := newTestRouter(newFakeDeps())
	sc := Empty()

	res := r.HandleTurn(context.Background(), "apply coupon save10", sc)
	if res.Intent != "coupon" || res.Patch == nil || *res.Patch.PendingCouponCode != "SAVE10" {
		t.Fatalf("coupon turn = %+v", res)
	}
	sc = Merge(sc, res.Patch)

	res = r.HandleTurn(context.Background(), "book 2 tickets for dune tonight", sc)
	if code, _ := res.Action.String("couponCode"); code != "SAVE10" {
		t.Fatalf("couponCode = %q", code)
	}
	if res.Patch.PendingCouponCode == nil || *res.Patch.PendingCouponCode != "" {
		t.Fatalf("pending coupon should be cleared, patch = %+v", res.Patch)
	}

	res = r.HandleTurn(context.Background(), "remove coupon", SessionContext{PendingCouponCode: "SAVE10"})
	if res.Patch == nil || *res.Patch.PendingCouponCode != "" {
		t.Fatalf("remove coupon patch = %+v", res.Patch)
	}
}

func TestHandleTurnRouting(t *testing.T) {
	tests := []struct {
		text       string
		wantIntent string
		wantKind   ActionKind
		lastMovie  uint64
	}{
		{"go to my bookings", "navigate", ActionNavigate, 0},
		{"Favourites", "navigate", ActionNavigate, 0},
		{"tell me about inception", "deep_link", ActionDeepLink, 0},
		{"open it", "deep_link", ActionDeepLink, 2},
		{"show me", "small_talk", "", 2},
		{"show me comedy movies", "genre_browse", ActionNavigate, 0},
		{"sci-fi films", "genre_browse", ActionNavigate, 0},
		{"join the waitlist for oppenheimer", "waitlist", ActionCreateTicket, 0},
		{"notify me when dune has seats", "waitlist", ActionCreateTicket, 0},
		{"remind me 30 minutes before dune", "reminder", ActionCreateReminder, 0},
		{"rate inception 7 stars", "rating", ActionCastVote, 0},
		{"vote for barbie", "poll", ActionCastVote, 0},
		{"I want a refund", "support", ActionCreateTicket, 0},
		{"what should i watch", "recommend", "", 0},
		{"start over", "reset", "", 0},
		{"hello", "small_talk", "", 0},
		{"asdfgh", "small_talk", "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			r := newTestRouter(newFakeDeps())
			sc := Empty()
			sc.LastMovieID = tc.lastMovie
			res := r.HandleTurn(context.Background(), tc.text, sc)
			if res.Intent != tc.wantIntent {
				t.Fatalf("intent = %q, want %q (%s)", res.Intent, tc.wantIntent, res.Reply)
			}
			var kind ActionKind
			if res.Action != nil {
				kind = res.Action.Kind
			}
			if kind != tc.wantKind {
				t.Fatalf("action kind = %q, want %q (%s)", kind, tc.wantKind, res.Reply)
			}
		})
	}
}

func TestHandleTurnPayloads(t *testing.T) {
	r := newTestRouter(newFakeDeps())
	ctx := context.Background()

	res := r.HandleTurn(ctx, "go to my bookings", Empty())
	if path, _ := res.Action.String("path"); path != "/bookings" {
		t.Errorf("navigate path = %q", path)
	}

	res = r.HandleTurn(ctx, "show me comedy movies", Empty())
	if path, _ := res.Action.String("path"); path != "/movies?genre=Comedy" {
		t.Errorf("genre path = %q", path)
	}
	if !strings.Contains(res.Reply, "Barbie") || res.Patch.GenreAffinity["Comedy"] != 1 {
		t.Errorf("genre turn = %+v", res)
	}

	res = r.HandleTurn(ctx, "tell me about inception tomorrow", Empty())
	if id, _ := res.Action.Uint("movieId"); id != 3 {
		t.Errorf("deep link movieId = %d", id)
	}
	if date, _ := res.Action.String("date"); date != "2024-05-02" {
		t.Errorf("deep link date = %q", date)
	}
	if !reflect.DeepEqual(res.Patch.GenreAffinity, map[string]int{"Sci-Fi": 1, "Thriller": 1}) {
		t.Errorf("deep link affinity = %v", res.Patch.GenreAffinity)
	}

	res = r.HandleTurn(ctx, "open it", SessionContext{LastMovieID: 2, GenreAffinity: map[string]int{}})
	if id, _ := res.Action.Uint("movieId"); id != 2 {
		t.Errorf("deep link to the movie in context: movieId = %d", id)
	}

	res = r.HandleTurn(ctx, "notify me when dune has seats", Empty())
	if id, _ := res.Action.Uint("movieId"); id != 1 {
		t.Errorf("waitlist movieId = %d", id)
	}

	res = r.HandleTurn(ctx, "rate dune 0", Empty())
	if stars, _ := res.Action.Int("stars"); stars != 1 {
		t.Errorf("stars = %d, want clamped to 1", stars)
	}

	long := "refund " + strings.Repeat("é", 300)
	res = r.HandleTurn(ctx, long, Empty())
	if subject, _ := res.Action.String("subject"); len([]rune(subject)) != 200 {
		t.Errorf("support subject has %d runes", len([]rune(subject)))
	}
}

func TestHandleTurnReminder(t *testing.T) {
	r := newTestRouter(newFakeDeps())
	ctx := context.Background()

	res := r.HandleTurn(ctx, "remind me about dune at 9 pm 15 minutes before by email", Empty())
	if res.Intent != "reminder" || res.Action == nil {
		t.Fatalf("reminder turn = %+v", res)
	}
	if id, _ := res.Action.Uint("showId"); id != 103 {
		t.Errorf("showId = %d", id)
	}
	if ch, _ := res.Action.String("channel"); ch != "email" {
		t.Errorf("channel = %q", ch)
	}
	if m, _ := res.Action.Int("minutesBefore"); m != 15 {
		t.Errorf("minutesBefore = %d", m)
	}

	res = r.HandleTurn(ctx, "remind me 2 minutes before", SessionContext{LastMovieID: 2, LastShowID: 201})
	if m, _ := res.Action.Int("minutesBefore"); m != 5 {
		t.Errorf("minutesBefore = %d, want clamped to 5", m)
	}
	if ch, _ := res.Action.String("channel"); ch != "push" {
		t.Errorf("default channel = %q", ch)
	}

	res = r.HandleTurn(ctx, "remind me 30 minutes before dune", Empty())
	if res.Action == nil {
		t.Fatalf("reminder naming the movie last = %+v", res)
	}
	if id, _ := res.Action.Uint("showId"); id != 101 {
		t.Errorf("showId = %d", id)
	}
	if m, _ := res.Action.Int("minutesBefore"); m != 30 {
		t.Errorf("minutesBefore = %d", m)
	}

	res = r.HandleTurn(ctx, "remind me", Empty())
	if res.Action != nil || res.Patch != nil {
		t.Errorf("reminder without a show should only ask: %+v", res)
	}
}

func TestHandleTurnRecommend(t *testing.T) {
	r := newTestRouter(newFakeDeps())
	sc := SessionContext{GenreAffinity: map[string]int{"Sci-Fi": 2, "Comedy": 2}}
	res := r.HandleTurn(context.Background(), "what should i watch", sc)
	if !strings.Contains(res.Reply, "Comedy") || !strings.Contains(res.Reply, "Barbie") {
		t.Fatalf("reply = %q", res.Reply)
	}

	res = r.HandleTurn(context.Background(), "recommend something", Empty())
	if !strings.Contains(res.Reply, "Dune, Oppenheimer, Inception") {
		t.Fatalf("reply = %q", res.Reply)
	}
}

func TestHandleTurnReset(t *testing.T) {
	r := newTestRouter(newFakeDeps())
	res := r.HandleTurn(context.Background(), "start over", SessionContext{LastMovieID: 1})
	if !res.Reset || res.Patch != nil {
		t.Fatalf("reset turn = %+v", res)
	}
}

func TestHandleTurnResolutionMiss(t *testing.T) {
	r := newTestRouter(newFakeDeps())
	tests := []struct {
		text       string
		wantIntent string
		wantReply  string
	}{
		{"tell me about zzzz", "deep_link", "couldn't find"},
		{"show me western movies", "genre_browse", "Try one of"},
		{"book 2 tickets", "book_tickets", "Which movie"},
		{"book 2 tickets for F9", "book_seats", "Which movie"},
		{"open it", "deep_link", "Which movie"},
		{"book 2 tickets for oppenheimer tomorrow", "book_tickets", "no shows on 2024-05-02"},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			res := r.HandleTurn(context.Background(), tc.text, Empty())
			if res.Intent != tc.wantIntent || !strings.Contains(res.Reply, tc.wantReply) {
				t.Fatalf("got %+v", res)
			}
			if res.Action != nil || res.Patch != nil {
				t.Fatalf("a miss must not act or patch: %+v", res)
			}
		})
	}
}

func TestHandleTurnCollaboratorFailures(t *testing.T) {
	tests := []struct {
		name string
		deps *fakeDeps
	}{
		{"error", &fakeDeps{err: errors.New("db down")}},
		{"timeout", &fakeDeps{block: true}},
		{"panic", &fakeDeps{panics: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(tc.deps)
			res := r.HandleTurn(context.Background(), "book 2 tickets for dune tonight", SessionContext{LastMovieID: 1})
			if res.Reply != unavailableReply {
				t.Fatalf("reply = %q", res.Reply)
			}
			if res.Action != nil || res.Patch != nil || res.Reset {
				t.Fatalf("failure must not act or patch: %+v", res)
			}
			if res.Intent != "book_tickets" {
				t.Fatalf("intent = %q", res.Intent)
			}
		})
	}
}

func TestHandleTurnIsDeterministic(t *testing.T) {
	r := newTestRouter(newFakeDeps())
	sc := SessionContext{GenreAffinity: map[string]int{"Drama": 1}}
	for _, text := range []string{"book 2 tickets for dune tonight", "is oppenheimer sold out", "show me sci-fi movies"} {
		first := r.HandleTurn(context.Background(), text, sc)
		for i := 0; i < 5; i++ {
			if got := r.HandleTurn(context.Background(), text, sc); !reflect.DeepEqual(got, first) {
				t.Fatalf("%q: run %d differs: %+v vs %+v", text, i, got, first)
			}
		}
	}
}

func TestRulesOrder(t *testing.T) {
	r := newTestRouter(newFakeDeps())
	var names []string
	for _, info := range r.Rules() {
		names = append(names, info.Name)
	}
	want := []string{
		"navigate", "book_seats", "book_tickets", "availability", "deep_link", "genre_browse",
		"reminder", "waitlist", "coupon", "rating", "poll", "support", "recommend", "reset", "small_talk",
	}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("rules = %v", names)
	}
}

func TestProfileOverrides(t *testing.T) {
	r := NewRouter(newFakeDeps(), Options{
		Now:     func() time.Time { return testNow },
		Profile: Profile{Navigation: map[string]string{"Offers": "/deals"}, GenreAliases: map[string]string{"laughs": "Comedy"}},
	})
	res := r.HandleTurn(context.Background(), "open offers", Empty())
	if path, _ := res.Action.String("path"); res.Intent != "navigate" || path != "/deals" {
		t.Fatalf("navigate override = %+v", res)
	}
	res = r.HandleTurn(context.Background(), "laughs movies", Empty())
	if path, _ := res.Action.String("path"); path != "/movies?genre=Comedy" {
		t.Fatalf("alias override = %+v", res)
	}
	res = r.HandleTurn(context.Background(), "go to movies", Empty())
	if path, _ := res.Action.String("path"); path != "/movies" {
		t.Fatalf("defaults lost: %+v", res)
	}
}
