// Package assistant is the rule-based reasoning core of the storefront chat
// assistant. A turn takes free text plus the session's context and returns a
// reply, an optional client action and an optional context patch. Nothing in
// this package writes shared state; the caller applies patches.
package assistant

import "sort"

// SessionContext is the short-term memory carried between turns of one
// conversation. Zero values mean "unset".
type SessionContext struct {
	LastMovieID       uint64         `json:"lastMovieId,omitempty"`
	LastMovieTitle    string         `json:"lastMovieTitle,omitempty"`
	LastDate          string         `json:"lastDate,omitempty"`
	LastShowID        uint64         `json:"lastShowId,omitempty"`
	LastShowStartISO  string         `json:"lastShowStartISO,omitempty"`
	PendingCouponCode string         `json:"pendingCouponCode,omitempty"`
	GenreAffinity     map[string]int `json:"genreAffinity"`
}

// ContextPatch is a partial update produced by a rule handler. A non-nil
// field overwrites the stored value (a pointer to the zero value clears it).
// GenreAffinity holds deltas that are added per key.
type ContextPatch struct {
	LastMovieID       *uint64        `json:"lastMovieId,omitempty"`
	LastMovieTitle    *string        `json:"lastMovieTitle,omitempty"`
	LastDate          *string        `json:"lastDate,omitempty"`
	LastShowID        *uint64        `json:"lastShowId,omitempty"`
	LastShowStartISO  *string        `json:"lastShowStartISO,omitempty"`
	PendingCouponCode *string        `json:"pendingCouponCode,omitempty"`
	GenreAffinity     map[string]int `json:"genreAffinity,omitempty"`
}

// Empty returns the context of a conversation that has not started yet.
func Empty() SessionContext {
	return SessionContext{GenreAffinity: map[string]int{}}
}

// Merge returns sc with p applied. sc is never modified; the returned value
// owns a fresh GenreAffinity map. Non-positive affinity deltas are ignored so
// counts only grow.
func Merge(sc SessionContext, p *ContextPatch) SessionContext {
	out := sc
	out.GenreAffinity = make(map[string]int, len(sc.GenreAffinity))
	for g, n := range sc.GenreAffinity {
		out.GenreAffinity[g] = n
	}
	if p == nil {
		return out
	}
	if p.LastMovieID != nil {
		out.LastMovieID = *p.LastMovieID
	}
	if p.LastMovieTitle != nil {
		out.LastMovieTitle = *p.LastMovieTitle
	}
	if p.LastDate != nil {
		out.LastDate = *p.LastDate
	}
	if p.LastShowID != nil {
		out.LastShowID = *p.LastShowID
	}
	if p.LastShowStartISO != nil {
		out.LastShowStartISO = *p.LastShowStartISO
	}
	if p.PendingCouponCode != nil {
		out.PendingCouponCode = *p.PendingCouponCode
	}
	for g, d := range p.GenreAffinity {
		if d > 0 && g != "" {
			out.GenreAffinity[g] += d
		}
	}
	return out
}

// IsEmpty reports whether applying p would change nothing.
func (p *ContextPatch) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.LastMovieID == nil && p.LastMovieTitle == nil && p.LastDate == nil &&
		p.LastShowID == nil && p.LastShowStartISO == nil && p.PendingCouponCode == nil &&
		len(p.GenreAffinity) == 0
}

// TopGenre returns the genre with the highest affinity. Ties go to the
// alphabetically first name.
func TopGenre(sc SessionContext) (string, bool) {
	names := make([]string, 0, len(sc.GenreAffinity))
	for g, n := range sc.GenreAffinity {
		if n > 0 {
			names = append(names, g)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	best := names[0]
	for _, g := range names[1:] {
		if sc.GenreAffinity[g] > sc.GenreAffinity[best] {
			best = g
		}
	}
	return best, true
}

func ptr[T any](v T) *T { return &v }
