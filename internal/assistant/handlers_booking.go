package assistant

import (
	"context"
	"fmt"
	"strings"
)

func (r *Router) bookSeats(ctx context.Context, t Turn) (TurnResult, error) {
	requested, capped := requestedSeats(t.Text)
	if len(requested) == 0 {
		return TurnResult{}, missf("Which seats would you like? Rows run A to J and seats 1 to %d.", GridColumns)
	}
	catalog, err := r.fetchCatalog(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	movie, fromContext, err := resolveMovie(catalog, t.Context, titleFragment(seatLabelPattern.ReplaceAllString(t.Text, " ")))
	if err != nil {
		return TurnResult{}, err
	}
	date, slot, err := r.pickShow(ctx, t, movie, fromContext)
	if err != nil {
		return TurnResult{}, err
	}
	occupied, err := r.fetchOccupied(ctx, slot.ShowID)
	if err != nil {
		return TurnResult{}, err
	}

	var taken []string
	for _, s := range requested {
		if occupied.Has(s) {
			taken = append(taken, s)
		}
	}
	if len(taken) > 0 {
		reply := fmt.Sprintf("Sorry, %s %s already taken for %s at %s.",
			strings.Join(taken, ", "), pluralVerb(len(taken)), movie.Title, r.showTime(slot))
		if alt := SuggestSeats(occupied, len(requested)); len(alt) > 0 {
			reply += fmt.Sprintf(" How about %s instead?", strings.Join(alt, ", "))
		}
		return TurnResult{Reply: reply, Patch: focusPatch(movie, date, slot)}, nil
	}

	reply := fmt.Sprintf("Booking %s for %s on %s at %s.", strings.Join(requested, ", "), movie.Title, date, r.showTime(slot))
	if capped {
		reply += fmt.Sprintf(" I can hold at most %d seats at once, so I kept the first %d.", MaxSeatsPerBooking, MaxSeatsPerBooking)
	}
	return r.bookingResult(t, movie, date, slot, requested, reply), nil
}

func (r *Router) bookTickets(ctx context.Context, t Turn) (TurnResult, error) {
	loc := bookTicketsPattern.FindStringSubmatchIndex(t.Text)
	asked := parseCount(t.Text[loc[2]:loc[3]])
	count := ClampSeatCount(asked)

	catalog, err := r.fetchCatalog(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	movie, fromContext, err := resolveMovie(catalog, t.Context, cleanTitle(t.Text[loc[1]:]))
	if err != nil {
		return TurnResult{}, err
	}
	date, slot, err := r.pickShow(ctx, t, movie, fromContext)
	if err != nil {
		return TurnResult{}, err
	}
	occupied, err := r.fetchOccupied(ctx, slot.ShowID)
	if err != nil {
		return TurnResult{}, err
	}

	seats := SuggestSeats(occupied, count)
	if len(seats) == 0 {
		return TurnResult{
			Reply: fmt.Sprintf("%s on %s at %s is sold out. Want me to add you to the waitlist?", movie.Title, date, r.showTime(slot)),
			Patch: focusPatch(movie, date, slot),
		}, nil
	}

	var notes []string
	if asked != count {
		notes = append(notes, fmt.Sprintf("I can book between 1 and %d tickets at a time, so I went with %d.", MaxSeatsPerBooking, count))
	}
	if len(seats) < count {
		notes = append(notes, fmt.Sprintf("Only %d %s left.", len(seats), plural(len(seats), "seat", "seats")))
	}
	if len(seats) > 1 && !IsContiguous(seats) {
		notes = append(notes, "There's no block of seats together, so your party will be split.")
	}

	reply := fmt.Sprintf("Booking %d %s for %s on %s at %s: %s.",
		len(seats), plural(len(seats), "ticket", "tickets"), movie.Title, date, r.showTime(slot), strings.Join(seats, ", "))
	if len(notes) > 0 {
		reply += " " + strings.Join(notes, " ")
	}
	return r.bookingResult(t, movie, date, slot, seats, reply), nil
}

func (r *Router) bookingResult(t Turn, movie CatalogEntry, date string, slot ShowSlot, seats []string, reply string) TurnResult {
	payload := map[string]any{
		"showId":  slot.ShowID,
		"movieId": movie.ID,
		"seats":   seats,
	}
	patch := focusPatch(movie, date, slot)
	if coupon := couponFor(t); coupon != "" {
		payload["couponCode"] = coupon
		reply += fmt.Sprintf(" Coupon %s applied.", coupon)
		if t.Context.PendingCouponCode != "" {
			patch.PendingCouponCode = ptr("")
		}
	}
	return TurnResult{
		Reply:  reply + " Complete the payment to confirm.",
		Action: &Action{Kind: ActionCreateBooking, Payload: payload},
		Patch:  patch,
	}
}

func (r *Router) availability(ctx context.Context, t Turn) (TurnResult, error) {
	fragment := titleFragment(t.Text)
	if fragment == "" {
		fragment = cleanTitle(availabilityNoise.ReplaceAllString(t.Text, " "))
	}
	catalog, err := r.fetchCatalog(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	movie, fromContext, err := resolveMovie(catalog, t.Context, fragment)
	if err != nil {
		return TurnResult{}, err
	}
	date, slot, err := r.pickShow(ctx, t, movie, fromContext)
	if err != nil {
		return TurnResult{}, err
	}
	occupied, err := r.fetchOccupied(ctx, slot.ShowID)
	if err != nil {
		return TurnResult{}, err
	}

	free := FreeCount(occupied)
	return TurnResult{
		Reply: fmt.Sprintf("%s on %s at %s: %s, %d of %d seats free.",
			movie.Title, date, r.showTime(slot), OccupancyStatus(TotalSeats-free), free, TotalSeats),
		Patch: focusPatch(movie, date, slot),
	}, nil
}

// OccupancyStatus words how full a show is given its occupied seat count.
func OccupancyStatus(occupied int) string {
	switch {
	case occupied <= 70:
		return "available"
	case occupied <= 100:
		return "filling fast"
	case occupied < TotalSeats:
		return "almost full"
	}
	return "sold out"
}

// resolveMovie finds the movie named by fragment, falling back to the one the
// conversation is already about.
func resolveMovie(catalog []CatalogEntry, sc SessionContext, fragment string) (movie CatalogEntry, fromContext bool, err error) {
	if contextReferences[fragment] {
		fragment = ""
	}
	if fragment != "" {
		m, ok := ResolveTitle(fragment, catalog)
		if !ok {
			return CatalogEntry{}, false, missf("I couldn't find a movie matching %q. Could you check the title?", fragment)
		}
		return m.Entry, false, nil
	}
	if sc.LastMovieID != 0 {
		for _, e := range catalog {
			if e.ID == sc.LastMovieID {
				return e, true, nil
			}
		}
	}
	return CatalogEntry{}, false, missf("Which movie did you have in mind?")
}

// pickShow selects the screening a turn refers to. A follow-up about the same
// movie with no new date or time keeps the show already in context.
func (r *Router) pickShow(ctx context.Context, t Turn, movie CatalogEntry, fromContext bool) (string, ShowSlot, error) {
	date, hasDate := ResolveDate(t.Text, t.Now)
	bucket, hasBucket := ResolveBucket(t.Text)
	shows, err := r.fetchShows(ctx, movie.ID)
	if err != nil {
		return "", ShowSlot{}, err
	}
	if fromContext && !hasDate && !hasBucket && t.Context.LastShowID != 0 {
		if d, s, ok := findShow(shows, t.Context.LastShowID); ok {
			return d, s, nil
		}
	}
	if !hasDate {
		date = t.Now.Format(DateLayout)
		if fromContext && t.Context.LastDate > date {
			date = t.Context.LastDate
		}
	}
	slot, ok := SelectShow(shows, date, bucket, r.loc)
	if !ok {
		return "", ShowSlot{}, missf("%s has no shows on %s. Try another day?", movie.Title, date)
	}
	return date, slot, nil
}

var contextReferences = map[string]bool{
	"it": true, "this": true, "that": true, "this one": true, "that one": true,
	"same": true, "the same": true, "same movie": true, "same one": true,
}

func (r *Router) showTime(slot ShowSlot) string {
	if t, ok := ParseStart(slot.StartTimeISO, r.loc); ok {
		return t.In(r.loc).Format("15:04")
	}
	return slot.StartTimeISO
}

func focusPatch(movie CatalogEntry, date string, slot ShowSlot) *ContextPatch {
	return &ContextPatch{
		LastMovieID:      ptr(movie.ID),
		LastMovieTitle:   ptr(movie.Title),
		LastDate:         ptr(date),
		LastShowID:       ptr(slot.ShowID),
		LastShowStartISO: ptr(slot.StartTimeISO),
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func pluralVerb(n int) string { return plural(n, "is", "are") }
