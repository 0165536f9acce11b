package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// DefaultCollaboratorTimeout bounds each collaborator call made during a turn.
const DefaultCollaboratorTimeout = 3 * time.Second

const unavailableReply = "Sorry, I can't reach the cinema system right now. Please try again in a moment."

// Turn is the input handed to a rule handler.
type Turn struct {
	Raw     string
	Text    string
	Context SessionContext
	Now     time.Time
}

// Rule pairs a cheap text predicate with the handler that runs when it is the
// first rule to match.
type Rule struct {
	Name     string
	Category string
	Match    func(text string, sc SessionContext) bool
	Handle   func(ctx context.Context, t Turn) (TurnResult, error)
}

// RuleInfo describes a rule for diagnostics.
type RuleInfo struct {
	Order    int    `json:"order"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Options configure a Router. Zero values select defaults.
type Options struct {
	Location            *time.Location
	Now                 func() time.Time
	CollaboratorTimeout time.Duration
	Profile             Profile
	Logger              *slog.Logger
}

// Router classifies utterances with an ordered rule table and runs the first
// rule that matches. It holds no per-session state and is safe for concurrent
// use.
type Router struct {
	deps    Collaborators
	rules   []Rule
	loc     *time.Location
	now     func() time.Time
	timeout time.Duration
	profile Profile
	logger  *slog.Logger
}

// NewRouter builds the rule table once; it never changes afterwards.
func NewRouter(deps Collaborators, opts Options) *Router {
	r := &Router{
		deps:    deps,
		loc:     opts.Location,
		now:     opts.Now,
		timeout: opts.CollaboratorTimeout,
		profile: DefaultProfile().With(opts.Profile),
		logger:  opts.Logger,
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.timeout <= 0 {
		r.timeout = DefaultCollaboratorTimeout
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r.rules = r.ruleTable()
	return r
}

// Rules lists the rule table in evaluation order.
func (r *Router) Rules() []RuleInfo {
	out := make([]RuleInfo, 0, len(r.rules))
	for i, rule := range r.rules {
		out = append(out, RuleInfo{Order: i + 1, Name: rule.Name, Category: rule.Category})
	}
	return out
}

// HandleTurn answers one utterance. It always returns a usable result: rule
// failures and panics become an apology with no action and no patch.
func (r *Router) HandleTurn(ctx context.Context, utterance string, sc SessionContext) TurnResult {
	t := Turn{
		Raw:     utterance,
		Text:    normalizeUtterance(utterance),
		Context: sc,
		Now:     r.now().In(r.loc),
	}
	for _, rule := range r.rules {
		if rule.Match(t.Text, sc) {
			return r.run(ctx, rule, t)
		}
	}
	return TurnResult{Reply: didNotCatchReply, Intent: "small_talk"}
}

func (r *Router) run(ctx context.Context, rule Rule, t Turn) (res TurnResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("rule handler panicked", "rule", rule.Name, "panic", fmt.Sprint(p))
			res = TurnResult{Reply: unavailableReply, Intent: rule.Name}
		}
	}()

	out, err := rule.Handle(ctx, t)
	var miss *resolutionMiss
	switch {
	case err == nil:
		out.Intent = rule.Name
		return out
	case errors.As(err, &miss):
		return TurnResult{Reply: miss.reply, Intent: rule.Name}
	default:
		r.logger.Warn("rule handler failed", "rule", rule.Name, "error", err)
		return TurnResult{Reply: unavailableReply, Intent: rule.Name}
	}
}

// resolutionMiss carries the clarifying question asked when an entity could
// not be resolved. It never mutates the session.
type resolutionMiss struct {
	reply string
}

func (m *resolutionMiss) Error() string { return "unresolved: " + m.reply }

func missf(format string, args ...any) error {
	return &resolutionMiss{reply: fmt.Sprintf(format, args...)}
}

func (r *Router) fetchCatalog(ctx context.Context) ([]CatalogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	catalog, err := r.deps.FetchCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch catalog: %w", ErrCollaborator, err)
	}
	return catalog, nil
}

func (r *Router) fetchShows(ctx context.Context, movieID uint64) (ShowsByDate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	shows, err := r.deps.FetchShowsForMovie(ctx, movieID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch shows for movie %d: %w", ErrCollaborator, movieID, err)
	}
	return shows, nil
}

func (r *Router) fetchOccupied(ctx context.Context, showID uint64) (SeatSet, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	occupied, err := r.deps.FetchOccupiedSeats(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch occupied seats for show %d: %w", ErrCollaborator, showID, err)
	}
	return occupied, nil
}

var (
	utteranceSpaces   = regexp.MustCompile(`\s+`)
	utteranceTrailing = regexp.MustCompile(`[\s?!.,;:]+$`)
)

func normalizeUtterance(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	s = utteranceSpaces.ReplaceAllString(s, " ")
	s = utteranceTrailing.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
