package assistant

// Profile holds the storefront-specific vocabulary: which words navigate where
// and which colloquial names map to catalog genres. Keys are normalized.
type Profile struct {
	Navigation   map[string]string
	GenreAliases map[string]string
}

// DefaultProfile is the vocabulary used when no overrides are configured.
func DefaultProfile() Profile {
	return Profile{
		Navigation: map[string]string{
			"home":       "/",
			"movies":     "/movies",
			"bookings":   "/bookings",
			"favorites":  "/favorites",
			"favourites": "/favorites",
			"theatres":   "/theatres",
			"theaters":   "/theatres",
			"theatre":    "/theatres",
			"theater":    "/theatres",
			"admin":      "/admin",
		},
		GenreAliases: map[string]string{
			"scifi":           "Sci-Fi",
			"sci fi":          "Sci-Fi",
			"science fiction": "Sci-Fi",
			"romcom":          "Romance",
			"rom com":         "Romance",
			"animated":        "Animation",
			"cartoon":         "Animation",
			"scary":           "Horror",
			"funny":           "Comedy",
		},
	}
}

// With returns p extended by o; entries in o win.
func (p Profile) With(o Profile) Profile {
	out := Profile{
		Navigation:   make(map[string]string, len(p.Navigation)+len(o.Navigation)),
		GenreAliases: make(map[string]string, len(p.GenreAliases)+len(o.GenreAliases)),
	}
	for k, v := range p.Navigation {
		out.Navigation[Normalize(k)] = v
	}
	for k, v := range o.Navigation {
		out.Navigation[Normalize(k)] = v
	}
	for k, v := range p.GenreAliases {
		out.GenreAliases[Normalize(k)] = v
	}
	for k, v := range o.GenreAliases {
		out.GenreAliases[Normalize(k)] = v
	}
	return out
}
