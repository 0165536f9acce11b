package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/iliyamo/cinema-assistant/internal/assistant"
	"github.com/iliyamo/cinema-assistant/internal/queue"
	"github.com/iliyamo/cinema-assistant/internal/repository"
)

// ActionStatus tells the client what happened to a turn's action.
type ActionStatus string

const (
	// StatusClient actions (navigate, deepLink) are for the client to perform.
	StatusClient       ActionStatus = "client"
	StatusQueued       ActionStatus = "queued"
	StatusCompleted    ActionStatus = "completed"
	StatusFailed       ActionStatus = "failed"
	StatusUnauthorized ActionStatus = "unauthorized"
)

// ActionRequest is an action produced by a turn plus who asked for it.
type ActionRequest struct {
	SessionID string
	UserID    uint64
	Action    *assistant.Action
}

// ActionResult is returned to the client next to the turn's reply.
type ActionResult struct {
	Status     ActionStatus `json:"status"`
	PaymentURL string       `json:"payment_url,omitempty"`
	ExpiresAt  string       `json:"expires_at,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// SeatHolder places seat holds for a booking.
type SeatHolder interface {
	Hold(ctx context.Context, userID, showID uint64, labels []string) (Hold, error)
}

// EventPublisher sends an event to a named queue.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, event any) error
}

// ActionExecutor performs the side effects of assistant actions. The core
// only describes them; bookings become seat holds plus a payment link and
// everything else becomes a queued event.
type ActionExecutor struct {
	holds       SeatHolder
	pub         EventPublisher
	paymentBase string
	logger      *slog.Logger
	now         func() time.Time
}

func NewActionExecutor(holds SeatHolder, pub EventPublisher, paymentBaseURL string, logger *slog.Logger) *ActionExecutor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ActionExecutor{holds: holds, pub: pub, paymentBase: paymentBaseURL, logger: logger, now: time.Now}
}

// Execute runs req.Action. It returns nil when there is no action.
func (x *ActionExecutor) Execute(ctx context.Context, req ActionRequest) *ActionResult {
	a := req.Action
	if a == nil {
		return nil
	}
	switch a.Kind {
	case assistant.ActionNavigate, assistant.ActionDeepLink:
		return &ActionResult{Status: StatusClient}
	case assistant.ActionCreateBooking:
		return x.createBooking(ctx, req)
	case assistant.ActionCreateReminder:
		showID, _ := a.Uint("showId")
		channel, _ := a.String("channel")
		minutes, _ := a.Int("minutesBefore")
		return x.publish(ctx, queue.QueueReminders, queue.ReminderEvent{
			SessionID:     req.SessionID,
			UserID:        req.UserID,
			ShowID:        showID,
			Channel:       channel,
			MinutesBefore: minutes,
			RequestedAt:   x.stamp(),
		})
	case assistant.ActionCreateTicket:
		kind, _ := a.String("kind")
		showID, _ := a.Uint("showId")
		movieID, _ := a.Uint("movieId")
		subject, _ := a.String("subject")
		return x.publish(ctx, queue.QueueTickets, queue.TicketEvent{
			SessionID:   req.SessionID,
			UserID:      req.UserID,
			Kind:        kind,
			ShowID:      showID,
			MovieID:     movieID,
			Subject:     subject,
			RequestedAt: x.stamp(),
		})
	case assistant.ActionCastVote:
		kind, _ := a.String("kind")
		movieID, _ := a.Uint("movieId")
		stars, _ := a.Int("stars")
		return x.publish(ctx, queue.QueueVotes, queue.VoteEvent{
			SessionID:   req.SessionID,
			UserID:      req.UserID,
			Kind:        kind,
			MovieID:     movieID,
			Stars:       stars,
			RequestedAt: x.stamp(),
		})
	}
	x.logger.Warn("unknown action kind", "kind", string(a.Kind))
	return &ActionResult{Status: StatusFailed, Error: "unsupported action"}
}

func (x *ActionExecutor) createBooking(ctx context.Context, req ActionRequest) *ActionResult {
	if req.UserID == 0 {
		return &ActionResult{Status: StatusUnauthorized, Error: "sign in to book seats"}
	}
	a := req.Action
	showID, ok := a.Uint("showId")
	seats, _ := a.Strings("seats")
	if !ok || len(seats) == 0 {
		return &ActionResult{Status: StatusFailed, Error: "booking is missing a show or seats"}
	}
	movieID, _ := a.Uint("movieId")
	coupon, _ := a.String("couponCode")

	hold, err := x.holds.Hold(ctx, req.UserID, showID, seats)
	if err != nil {
		return &ActionResult{Status: StatusFailed, Error: holdError(err)}
	}
	x.logger.Info("seats held", "session", req.SessionID, "show_id", showID, "seats", seats)

	ev := queue.BookingRequestedEvent{
		SessionID:   req.SessionID,
		UserID:      req.UserID,
		ShowID:      showID,
		MovieID:     movieID,
		SeatLabels:  seats,
		CouponCode:  coupon,
		HoldToken:   hold.Token,
		ExpiresAt:   hold.ExpiresAt.UTC().Format(time.RFC3339),
		RequestedAt: x.stamp(),
	}
	if err := x.pub.Publish(ctx, queue.QueueBookingRequested, ev); err != nil {
		x.logger.Warn("booking event not published", "show_id", showID, "err", err)
	}
	return &ActionResult{
		Status:     StatusCompleted,
		PaymentURL: x.paymentURL(showID, hold.Token, coupon),
		ExpiresAt:  ev.ExpiresAt,
	}
}

func (x *ActionExecutor) publish(ctx context.Context, q string, event any) *ActionResult {
	if err := x.pub.Publish(ctx, q, event); err != nil {
		return &ActionResult{Status: StatusFailed, Error: "could not queue the request, please try again"}
	}
	return &ActionResult{Status: StatusQueued}
}

// paymentURL appends show, hold and optional coupon as query parameters,
// keeping any query the base URL already has.
func (x *ActionExecutor) paymentURL(showID uint64, token, coupon string) string {
	u, err := url.Parse(x.paymentBase)
	if err != nil {
		u = &url.URL{Path: "/checkout"}
	}
	q := u.Query()
	q.Set("show", strconv.FormatUint(showID, 10))
	q.Set("hold", token)
	if coupon != "" {
		q.Set("coupon", coupon)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (x *ActionExecutor) stamp() string { return x.now().UTC().Format(time.RFC3339) }

func holdError(err error) string {
	switch {
	case errors.Is(err, repository.ErrSeatsUnavailable):
		return "those seats were just taken, please pick others"
	case errors.Is(err, repository.ErrShowNotFound):
		return "show not found"
	case errors.Is(err, repository.ErrConflict):
		return "this show is no longer on sale"
	}
	return "could not hold the seats"
}
