package assistant

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Rule categories, in the order their rules are evaluated.
const (
	CategoryNavigation   = "navigation"
	CategoryBookingSeats = "booking_seats"
	CategoryBookTickets  = "book_tickets"
	CategoryAvailability = "availability"
	CategoryDeepLink     = "deep_link"
	CategoryGenreBrowse  = "genre_browse"
	CategoryUtility      = "utility"
	CategoryFallback     = "fallback"
)

var (
	navigatePattern    = regexp.MustCompile(`^(?:please\s+)?(?:(?:go\s+to|open|take\s+me\s+to|show(?:\s+me)?|navigate\s+to)\s+)?(?:my\s+|the\s+)?([a-z ]+?)(?:\s+page)?$`)
	seatLabelPattern   = regexp.MustCompile(`\b([a-j])(1[0-2]|[1-9])\b`)
	bookVerbPattern    = regexp.MustCompile(`\b(?:book|reserve)\b`)
	bookTicketsPattern = regexp.MustCompile(`\b(?:book|reserve|get|buy)\s+(?:me\s+|us\s+)?(\d+|an?|one|two|three|four|five|six|seven|eight|nine|ten)\s+(?:tickets?|seats?)\b`)

	availabilityPattern = regexp.MustCompile(`\b(?:seats?\s+(?:still\s+)?(?:available|free|left|open)|availability|any\s+seats|free\s+seats|sold\s+out|how\s+full)\b`)
	availabilityNoise   = regexp.MustCompile(`\b(?:are|is|there|any|seats?|still|available|availability|free|left|open|sold\s+out|how\s+full|check|what's|what\s+is|the)\b`)

	deepLinkLeadPattern    = regexp.MustCompile(`^(?:please\s+)?(?:open|show(?:\s+me)?|movie|film|details\s+(?:for|of|about)|tell\s+me\s+about)\s+(.+)$`)
	deepLinkTicketsPattern = regexp.MustCompile(`\btickets?\s+for\s+(.+)$`)
	browsePhrasePattern    = regexp.MustCompile(`^(?:(?:some|all|the|any)\s+)?[a-z][a-z' -]*\s+(?:movies|films)$`)
	genreBrowsePattern     = regexp.MustCompile(`^(?:please\s+)?(?:(?:show(?:\s+me)?|browse|list|find|i\s+want|i'd\s+like|i\s+like|looking\s+for)\s+)?(?:(?:some|all|the|any)\s+)?([a-z][a-z' -]*?)\s+(?:movies|films)$`)

	reminderPattern     = regexp.MustCompile(`\b(?:remind\s+me|set\s+(?:a\s+|up\s+a\s+)?reminder)\b`)
	waitlistPattern     = regexp.MustCompile(`\b(?:wait\s*-?\s*list|notify\s+me\s+when)\b`)
	couponPattern       = regexp.MustCompile(`\b(?:promo\s+code|coupon\s+code|discount\s+code|coupon|promo|voucher|code)\s+([a-z0-9]{3,20})\b`)
	removeCouponPattern = regexp.MustCompile(`\b(?:remove|clear|drop|cancel|delete)\s+(?:the\s+|my\s+)?(?:coupon|promo|voucher|code)\b`)
	ratingPattern       = regexp.MustCompile(`^(?:please\s+)?(?:i\s+)?rate\s+(.+?)\s+(-?\d+)(?:\s*(?:/\s*5|out\s+of\s+5|stars?))?$`)
	pollPattern         = regexp.MustCompile(`^(?:i\s+)?(?:want\s+to\s+)?vote\s+(?:for\s+)?(.+)$`)
	supportPattern      = regexp.MustCompile(`\b(?:refund|complaint|complain|support|problem\s+with|issue\s+with|talk\s+to\s+(?:a\s+)?human)\b`)
	recommendPattern    = regexp.MustCompile(`\b(?:recommend|suggest\s+(?:a\s+|some\s+)?(?:movie|film)s?|what\s+should\s+i\s+watch)\b`)
	resetPattern        = regexp.MustCompile(`^(?:please\s+)?(?:start\s+over|reset|forget\s+everything|clear\s+(?:the\s+)?(?:chat|conversation))$`)

	greetingPattern = regexp.MustCompile(`^(?:hi|hello|hey|hiya|good\s+(?:morning|afternoon|evening))\b`)
	thanksPattern   = regexp.MustCompile(`\b(?:thanks|thank\s+you|thx|cheers)\b`)
	helpPattern     = regexp.MustCompile(`\b(?:help|what\s+can\s+you\s+do)\b`)
)

var (
	titleAfterPattern = regexp.MustCompile(`\b(?:for|about|of)\s+(.+)$`)
	temporalNoise     = regexp.MustCompile(`\b(?:(?:in\s+the|on|at|this|for|around)\s+)?(?:\d{4}-\d{2}-\d{2}|day\s+after\s+tomorrow|tomorrow|today|tonight|sunday|monday|tuesday|wednesday|thursday|friday|saturday|morning|afternoon|evening|night|matinee|(?:1[0-2]|0?[1-9])(?::[0-5]\d)?\s*[ap]\.?m|(?:[01]?\d|2[0-3]):[0-5]\d)\b`)
	couponNoise       = regexp.MustCompile(`\b(?:(?:with|using|and|apply)\s+)?(?:(?:the|my)\s+)?(?:promo\s+code|coupon\s+code|discount\s+code|coupon|promo|voucher)\s+[a-z0-9]{3,20}\b`)
)

var (
	leadingFiller = map[string]bool{
		"for": true, "about": true, "of": true, "movie": true, "film": true,
		"please": true, "watch": true, "see": true, "to": true,
	}
	trailingFiller = map[string]bool{
		"please": true, "show": true, "shows": true, "showing": true, "screening": true,
		"session": true, "movie": true, "film": true, "at": true, "on": true, "in": true,
		"for": true, "the": true, "tickets": true, "ticket": true, "seats": true,
		"seat": true, "and": true, "with": true,
	}
	countWords = map[string]int{
		"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	}
)

func (r *Router) ruleTable() []Rule {
	return []Rule{
		{Name: "navigate", Category: CategoryNavigation, Match: r.matchNavigate, Handle: r.navigate},
		{Name: "book_seats", Category: CategoryBookingSeats, Match: matchBookSeats, Handle: r.bookSeats},
		{Name: "book_tickets", Category: CategoryBookTickets, Match: matchPattern(bookTicketsPattern), Handle: r.bookTickets},
		{Name: "availability", Category: CategoryAvailability, Match: matchPattern(availabilityPattern), Handle: r.availability},
		{Name: "deep_link", Category: CategoryDeepLink, Match: matchDeepLink, Handle: r.deepLink},
		{Name: "genre_browse", Category: CategoryGenreBrowse, Match: matchPattern(genreBrowsePattern), Handle: r.genreBrowse},
		{Name: "reminder", Category: CategoryUtility, Match: matchPattern(reminderPattern), Handle: r.reminder},
		{Name: "waitlist", Category: CategoryUtility, Match: matchPattern(waitlistPattern), Handle: r.waitlist},
		{Name: "coupon", Category: CategoryUtility, Match: matchPattern(couponPattern, removeCouponPattern), Handle: r.coupon},
		{Name: "rating", Category: CategoryUtility, Match: matchPattern(ratingPattern), Handle: r.rating},
		{Name: "poll", Category: CategoryUtility, Match: matchPattern(pollPattern), Handle: r.poll},
		{Name: "support", Category: CategoryUtility, Match: matchPattern(supportPattern), Handle: r.support},
		{Name: "recommend", Category: CategoryUtility, Match: matchPattern(recommendPattern), Handle: r.recommend},
		{Name: "reset", Category: CategoryUtility, Match: matchPattern(resetPattern), Handle: r.reset},
		{Name: "small_talk", Category: CategoryFallback, Match: func(string, SessionContext) bool { return true }, Handle: r.smallTalk},
	}
}

func matchPattern(patterns ...*regexp.Regexp) func(string, SessionContext) bool {
	return func(text string, _ SessionContext) bool {
		for _, p := range patterns {
			if p.MatchString(text) {
				return true
			}
		}
		return false
	}
}

func (r *Router) matchNavigate(text string, _ SessionContext) bool {
	_, ok := r.navigationTarget(text)
	return ok
}

func (r *Router) navigationTarget(text string) (string, bool) {
	m := navigatePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	path, ok := r.profile.Navigation[strings.TrimSpace(m[1])]
	return path, ok
}

func matchBookSeats(text string, _ SessionContext) bool {
	return bookVerbPattern.MatchString(text) && seatLabelPattern.MatchString(text)
}

func matchDeepLink(text string, _ SessionContext) bool {
	_, ok := deepLinkSubject(text)
	return ok
}

// deepLinkSubject returns the part of text naming the movie to open. Plural
// browse phrases such as "show me comedy movies" are left to genre browsing,
// and a bare "show me" names nothing.
func deepLinkSubject(text string) (string, bool) {
	if m := deepLinkLeadPattern.FindStringSubmatch(text); m != nil {
		if m[1] == "me" || browsePhrasePattern.MatchString(m[1]) {
			return "", false
		}
		return m[1], true
	}
	if m := deepLinkTicketsPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// cleanTitle strips coupon and date/time phrases plus connective words from a
// fragment so only the movie name remains.
func cleanTitle(fragment string) string {
	s := couponNoise.ReplaceAllString(fragment, " ")
	s = temporalNoise.ReplaceAllString(s, " ")
	toks := strings.Fields(Normalize(s))
	for len(toks) > 0 && leadingFiller[toks[0]] {
		toks = toks[1:]
	}
	for len(toks) > 0 && trailingFiller[toks[len(toks)-1]] {
		toks = toks[:len(toks)-1]
	}
	return strings.Join(toks, " ")
}

// titleFragment returns the cleaned text after the first "for", "about" or
// "of", or "" when there is none.
func titleFragment(text string) string {
	m := titleAfterPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return cleanTitle(m[1])
}

func parseCount(s string) int {
	if n, ok := countWords[s]; ok {
		return n
	}
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt
	}
	if err != nil {
		return 1
	}
	return n
}

// requestedSeats extracts valid seat labels in the order given, without
// duplicates, keeping at most MaxSeatsPerBooking.
func requestedSeats(text string) (seats []string, capped bool) {
	seen := map[string]bool{}
	for _, m := range seatLabelPattern.FindAllStringSubmatch(text, -1) {
		label := strings.ToUpper(m[1]) + m[2]
		if _, _, ok := ParseSeatLabel(label); !ok || seen[label] {
			continue
		}
		seen[label] = true
		if len(seats) == MaxSeatsPerBooking {
			capped = true
			continue
		}
		seats = append(seats, label)
	}
	return seats, capped
}

// couponFor returns a coupon typed in this turn, else the pending one.
func couponFor(t Turn) string {
	if m := couponPattern.FindStringSubmatch(t.Text); m != nil {
		return strings.ToUpper(m[1])
	}
	return t.Context.PendingCouponCode
}
