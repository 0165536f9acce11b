// Package queue defines message payloads exchanged over the message broker,
// the publisher the action executor uses and the consumer that records every
// assistant side effect in an append-only log.
package queue

// Durable queues, one per kind of side effect an assistant turn can request.
const (
	QueueBookingRequested = "assistant.booking.requested"
	QueueReminders        = "assistant.reminders"
	QueueTickets          = "assistant.tickets"
	QueueVotes            = "assistant.votes"
)

// ActionQueues lists every queue the action-log consumer drains.
var ActionQueues = []string{QueueBookingRequested, QueueReminders, QueueTickets, QueueVotes}

// BookingRequestedEvent is published after seats were held for a booking the
// assistant started. Payment completes it; an expired hold abandons it.
type BookingRequestedEvent struct {
	SessionID   string   `json:"session_id"`
	UserID      uint64   `json:"user_id"`
	ShowID      uint64   `json:"show_id"`
	MovieID     uint64   `json:"movie_id"`
	SeatLabels  []string `json:"seats"`
	CouponCode  string   `json:"coupon_code,omitempty"`
	HoldToken   string   `json:"hold_token"`
	ExpiresAt   string   `json:"expires_at"`
	RequestedAt string   `json:"requested_at"`
}

// ReminderEvent asks the notification side to remind the user before a show.
type ReminderEvent struct {
	SessionID     string `json:"session_id"`
	UserID        uint64 `json:"user_id,omitempty"`
	ShowID        uint64 `json:"show_id"`
	Channel       string `json:"channel"`
	MinutesBefore int    `json:"minutes_before"`
	RequestedAt   string `json:"requested_at"`
}

// TicketEvent is a waitlist entry or a support ticket.
type TicketEvent struct {
	SessionID   string `json:"session_id"`
	UserID      uint64 `json:"user_id,omitempty"`
	Kind        string `json:"kind"`
	ShowID      uint64 `json:"show_id,omitempty"`
	MovieID     uint64 `json:"movie_id,omitempty"`
	Subject     string `json:"subject,omitempty"`
	RequestedAt string `json:"requested_at"`
}

// VoteEvent is a star rating or a poll vote for a movie.
type VoteEvent struct {
	SessionID   string `json:"session_id"`
	UserID      uint64 `json:"user_id,omitempty"`
	Kind        string `json:"kind"`
	MovieID     uint64 `json:"movie_id"`
	Stars       int    `json:"stars,omitempty"`
	RequestedAt string `json:"requested_at"`
}
