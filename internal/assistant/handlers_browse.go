package assistant

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	maxBrowseTitles    = 5
	maxRecommendTitles = 3
)

func (r *Router) navigate(_ context.Context, t Turn) (TurnResult, error) {
	path, _ := r.navigationTarget(t.Text)
	return TurnResult{
		Reply:  "Sure, taking you there.",
		Action: &Action{Kind: ActionNavigate, Payload: map[string]any{"path": path}},
	}, nil
}

func (r *Router) deepLink(ctx context.Context, t Turn) (TurnResult, error) {
	subject, _ := deepLinkSubject(t.Text)
	fragment := cleanTitle(subject)
	if fragment == "" {
		return TurnResult{}, missf("Which movie should I open?")
	}
	catalog, err := r.fetchCatalog(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	movie, _, err := resolveMovie(catalog, t.Context, fragment)
	if err != nil {
		return TurnResult{}, err
	}

	payload := map[string]any{"movieId": movie.ID}
	patch := &ContextPatch{
		LastMovieID:    ptr(movie.ID),
		LastMovieTitle: ptr(movie.Title),
		GenreAffinity:  genreDelta(movie),
	}
	reply := fmt.Sprintf("Here's %s.", movie.Title)
	if date, ok := ResolveDate(t.Text, t.Now); ok {
		payload["date"] = date
		patch.LastDate = ptr(date)
		reply = fmt.Sprintf("Here's %s, showing times for %s.", movie.Title, date)
	}
	return TurnResult{
		Reply:  reply,
		Action: &Action{Kind: ActionDeepLink, Payload: payload},
		Patch:  patch,
	}, nil
}

func (r *Router) genreBrowse(ctx context.Context, t Turn) (TurnResult, error) {
	m := genreBrowsePattern.FindStringSubmatch(t.Text)
	catalog, err := r.fetchCatalog(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	genre, ok := r.matchGenre(m[1], catalog)
	if !ok {
		known := catalogGenres(catalog)
		if len(known) == 0 {
			return TurnResult{}, missf("I don't have any genres to browse right now.")
		}
		return TurnResult{}, missf("I don't know that genre. Try one of: %s.", strings.Join(known, ", "))
	}

	titles := titlesInGenre(catalog, genre, maxBrowseTitles)
	reply := fmt.Sprintf("No %s movies are showing right now.", genre)
	if len(titles) > 0 {
		reply = fmt.Sprintf("%s movies: %s.", genre, strings.Join(titles, ", "))
	}
	return TurnResult{
		Reply:  reply,
		Action: &Action{Kind: ActionNavigate, Payload: map[string]any{"path": "/movies?genre=" + url.QueryEscape(genre)}},
		Patch:  &ContextPatch{GenreAffinity: map[string]int{genre: 1}},
	}, nil
}

func (r *Router) recommend(ctx context.Context, t Turn) (TurnResult, error) {
	catalog, err := r.fetchCatalog(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	if len(catalog) == 0 {
		return TurnResult{}, missf("There's nothing showing right now, sorry.")
	}

	genre, ok := r.genreInText(t.Text, catalog)
	if !ok {
		genre, ok = TopGenre(t.Context)
	}
	if ok {
		if titles := titlesInGenre(catalog, genre, maxRecommendTitles); len(titles) > 0 {
			return TurnResult{Reply: fmt.Sprintf("Since you like %s, try %s.", genre, strings.Join(titles, ", "))}, nil
		}
	}

	n := min(maxRecommendTitles, len(catalog))
	titles := make([]string, 0, n)
	for _, e := range catalog[:n] {
		titles = append(titles, e.Title)
	}
	return TurnResult{Reply: fmt.Sprintf("Popular right now: %s.", strings.Join(titles, ", "))}, nil
}

// matchGenre resolves a browse phrase to a catalog genre name. The whole
// phrase is tried first, then each word from the last one backwards.
func (r *Router) matchGenre(phrase string, catalog []CatalogEntry) (string, bool) {
	p := Normalize(phrase)
	candidates := []string{p}
	words := strings.Fields(p)
	for i := len(words) - 1; i >= 0; i-- {
		candidates = append(candidates, words[i])
	}
	known := catalogGenres(catalog)
	for _, c := range candidates {
		if alias, ok := r.profile.GenreAliases[c]; ok {
			c = Normalize(alias)
		}
		for _, g := range known {
			if Normalize(g) == c || strings.ReplaceAll(Normalize(g), " ", "") == c {
				return g, true
			}
		}
	}
	return "", false
}

// genreInText finds a known genre mentioned anywhere in text.
func (r *Router) genreInText(text string, catalog []CatalogEntry) (string, bool) {
	hay := " " + Normalize(text) + " "
	aliases := make([]string, 0, len(r.profile.GenreAliases))
	for a := range r.profile.GenreAliases {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, g := range catalogGenres(catalog) {
		if strings.Contains(hay, " "+Normalize(g)+" ") {
			return g, true
		}
	}
	for _, a := range aliases {
		if strings.Contains(hay, " "+a+" ") {
			return r.matchGenre(a, catalog)
		}
	}
	return "", false
}

// catalogGenres lists distinct genre names in first-seen catalog order.
func catalogGenres(catalog []CatalogEntry) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range catalog {
		for _, g := range e.Genres {
			key := Normalize(g.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, g.Name)
		}
	}
	return out
}

func titlesInGenre(catalog []CatalogEntry, genre string, limit int) []string {
	var out []string
	for _, e := range catalog {
		if len(out) == limit {
			break
		}
		if e.HasGenre(genre) {
			out = append(out, e.Title)
		}
	}
	return out
}

func genreDelta(e CatalogEntry) map[string]int {
	if len(e.Genres) == 0 {
		return nil
	}
	d := make(map[string]int, len(e.Genres))
	for _, g := range e.Genres {
		if g.Name != "" {
			d[g.Name] = 1
		}
	}
	return d
}
