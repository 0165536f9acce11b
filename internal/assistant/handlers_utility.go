package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultReminderMinutes = 30
	minReminderMinutes     = 5
	maxReminderMinutes     = 1440
	maxSupportSubjectRunes = 200

	didNotCatchReply = `Sorry, I didn't catch that. You can ask things like "book 2 tickets for Dune tonight" or "is Oppenheimer sold out tomorrow".`
)

var (
	reminderLeadPattern = regexp.MustCompile(`\b(\d{1,4})\s*(minutes?|mins?|m|hours?|hrs?|h)\b(?:\s+(?:before|early|ahead|prior))?`)
	anHourPattern       = regexp.MustCompile(`\b(?:an|one)\s+hour\b(?:\s+(?:before|early|ahead|prior))?`)
	channelPattern      = regexp.MustCompile(`\b(?:(?:by|via|through|over|with\s+an?|as\s+an?)\s+)?(email|e-mail|sms|text|push|notification)s?\b`)
	reminderNoise       = regexp.MustCompile(`\b(?:remind\s+me|set\s+(?:a\s+|up\s+a\s+)?reminder)\b`)
	waitlistNoise       = regexp.MustCompile(`\b(?:(?:add\s+me\s+to|join|put\s+me\s+on)\s+)?(?:the\s+)?(?:wait\s*-?\s*list|notify\s+me\s+when)\b`)
	reminderTail        = regexp.MustCompile(`\b(?:starts?|begins?|showtime)\b`)
	waitlistTail        = regexp.MustCompile(`\b(?:has|have|gets?|opens?|frees?|are|any|free|available|open|up|spots?|seats?|tickets?|again)\b`)
)

var channels = map[string]string{
	"email": "email", "e-mail": "email",
	"sms": "sms", "text": "sms",
	"push": "push", "notification": "push",
}

func (r *Router) reminder(ctx context.Context, t Turn) (TurnResult, error) {
	minutes := defaultReminderMinutes
	rest := t.Text
	if m := reminderLeadPattern.FindStringSubmatch(rest); m != nil {
		n, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(m[2], "h") {
			n *= 60
		}
		minutes = n
		rest = reminderLeadPattern.ReplaceAllString(rest, " ")
	} else if anHourPattern.MatchString(rest) {
		minutes = 60
		rest = anHourPattern.ReplaceAllString(rest, " ")
	}
	minutes = min(max(minutes, minReminderMinutes), maxReminderMinutes)

	channel := "push"
	if m := channelPattern.FindStringSubmatch(rest); m != nil {
		channel = channels[m[1]]
		rest = channelPattern.ReplaceAllString(rest, " ")
	}
	rest = reminderNoise.ReplaceAllString(rest, " ")

	movie, date, slot, err := r.showFromTextOrContext(ctx, t, leftoverTitle(rest, reminderTail))
	if err != nil {
		return TurnResult{}, err
	}
	return TurnResult{
		Reply: fmt.Sprintf("I'll remind you by %s %d minutes before %s on %s at %s.",
			channel, minutes, movie.Title, date, r.showTime(slot)),
		Action: &Action{Kind: ActionCreateReminder, Payload: map[string]any{
			"showId":        slot.ShowID,
			"channel":       channel,
			"minutesBefore": minutes,
		}},
		Patch: focusPatch(movie, date, slot),
	}, nil
}

func (r *Router) waitlist(ctx context.Context, t Turn) (TurnResult, error) {
	rest := waitlistNoise.ReplaceAllString(t.Text, " ")
	movie, date, slot, err := r.showFromTextOrContext(ctx, t, leftoverTitle(rest, waitlistTail))
	if err != nil {
		return TurnResult{}, err
	}
	return TurnResult{
		Reply: fmt.Sprintf("You're on the waitlist for %s on %s at %s. I'll let you know if seats open up.",
			movie.Title, date, r.showTime(slot)),
		Action: &Action{Kind: ActionCreateTicket, Payload: map[string]any{
			"kind":    "waitlist",
			"showId":  slot.ShowID,
			"movieId": movie.ID,
		}},
		Patch: focusPatch(movie, date, slot),
	}, nil
}

// leftoverTitle finds the movie name in what is left of a request once its
// trigger words are gone: after "for", "about" or "of" when present, else
// whatever remains without the tail words.
func leftoverTitle(rest string, tail *regexp.Regexp) string {
	if fragment := titleFragment(rest); fragment != "" {
		return fragment
	}
	return cleanTitle(tail.ReplaceAllString(rest, " "))
}

// showFromTextOrContext resolves the screening for reminders and waitlists:
// a movie named in the text, else the show the conversation is on.
func (r *Router) showFromTextOrContext(ctx context.Context, t Turn, fragment string) (CatalogEntry, string, ShowSlot, error) {
	if fragment == "" && t.Context.LastShowID == 0 {
		return CatalogEntry{}, "", ShowSlot{}, missf("Which movie and showtime is this for?")
	}
	catalog, err := r.fetchCatalog(ctx)
	if err != nil {
		return CatalogEntry{}, "", ShowSlot{}, err
	}
	movie, fromContext, err := resolveMovie(catalog, t.Context, fragment)
	if err != nil {
		return CatalogEntry{}, "", ShowSlot{}, err
	}
	date, slot, err := r.pickShow(ctx, t, movie, fromContext)
	if err != nil {
		return CatalogEntry{}, "", ShowSlot{}, err
	}
	return movie, date, slot, nil
}

func (r *Router) coupon(_ context.Context, t Turn) (TurnResult, error) {
	if removeCouponPattern.MatchString(t.Text) {
		if t.Context.PendingCouponCode == "" {
			return TurnResult{Reply: "There's no coupon to remove."}, nil
		}
		return TurnResult{
			Reply: fmt.Sprintf("Removed coupon %s.", t.Context.PendingCouponCode),
			Patch: &ContextPatch{PendingCouponCode: ptr("")},
		}, nil
	}
	code := strings.ToUpper(couponPattern.FindStringSubmatch(t.Text)[1])
	return TurnResult{
		Reply: fmt.Sprintf("Coupon %s saved. I'll apply it to your next booking.", code),
		Patch: &ContextPatch{PendingCouponCode: ptr(code)},
	}, nil
}

func (r *Router) rating(ctx context.Context, t Turn) (TurnResult, error) {
	m := ratingPattern.FindStringSubmatch(t.Text)
	stars, _ := strconv.Atoi(m[2])
	stars = min(max(stars, 1), 5)

	catalog, err := r.fetchCatalog(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	movie, _, err := resolveMovie(catalog, t.Context, cleanTitle(m[1]))
	if err != nil {
		return TurnResult{}, err
	}
	return TurnResult{
		Reply: fmt.Sprintf("Thanks! You rated %s %d %s.", movie.Title, stars, plural(stars, "star", "stars")),
		Action: &Action{Kind: ActionCastVote, Payload: map[string]any{
			"kind":    "rating",
			"movieId": movie.ID,
			"stars":   stars,
		}},
	}, nil
}

func (r *Router) poll(ctx context.Context, t Turn) (TurnResult, error) {
	m := pollPattern.FindStringSubmatch(t.Text)
	catalog, err := r.fetchCatalog(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	movie, _, err := resolveMovie(catalog, t.Context, cleanTitle(m[1]))
	if err != nil {
		return TurnResult{}, err
	}
	return TurnResult{
		Reply: fmt.Sprintf("Your vote for %s is in.", movie.Title),
		Action: &Action{Kind: ActionCastVote, Payload: map[string]any{
			"kind":    "poll",
			"movieId": movie.ID,
		}},
	}, nil
}

func (r *Router) support(_ context.Context, t Turn) (TurnResult, error) {
	subject := strings.TrimSpace(t.Raw)
	if rs := []rune(subject); len(rs) > maxSupportSubjectRunes {
		subject = string(rs[:maxSupportSubjectRunes])
	}
	return TurnResult{
		Reply:  "I've opened a support ticket. Our team will get back to you by email.",
		Action: &Action{Kind: ActionCreateTicket, Payload: map[string]any{"kind": "support", "subject": subject}},
	}, nil
}

func (r *Router) reset(_ context.Context, _ Turn) (TurnResult, error) {
	return TurnResult{Reply: "Okay, let's start over. What would you like to watch?", Reset: true}, nil
}

func (r *Router) smallTalk(_ context.Context, t Turn) (TurnResult, error) {
	switch {
	case greetingPattern.MatchString(t.Text):
		return TurnResult{Reply: "Hi! Ask me about showtimes, seats or bookings."}, nil
	case thanksPattern.MatchString(t.Text):
		return TurnResult{Reply: "You're welcome. Enjoy the movie!"}, nil
	case helpPattern.MatchString(t.Text):
		return TurnResult{Reply: `I can check seat availability, book tickets ("book 2 tickets for Dune tonight"), pick exact seats ("book E5 and E6"), set reminders and apply coupons.`}, nil
	}
	return TurnResult{Reply: didNotCatchReply}, nil
}
