package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ActionLog appends one human readable line per assistant side effect to a
// file. It is safe for concurrent use.
type ActionLog struct {
	mu   sync.Mutex
	path string
}

// NewActionLog writes to dir/assistant_actions.log, creating dir on first use.
func NewActionLog(dir string) *ActionLog {
	return &ActionLog{path: filepath.Join(dir, "assistant_actions.log")}
}

// Path is the file lines are appended to.
func (l *ActionLog) Path() string { return l.path }

// Append formats the message received on queue and writes it as one line.
func (l *ActionLog) Append(queue string, body []byte) error {
	line, err := formatLine(queue, body)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(queue string, body []byte) (string, error) {
	switch queue {
	case QueueBookingRequested:
		var ev BookingRequestedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		coupon := ev.CouponCode
		if coupon == "" {
			coupon = "-"
		}
		return fmt.Sprintf("[%s] Booking requested | session=%s | user_id=%d | show_id=%d | movie_id=%d | seats=[%s] | coupon=%s | expires_at=%s\n",
			ev.RequestedAt, ev.SessionID, ev.UserID, ev.ShowID, ev.MovieID, strings.Join(ev.SeatLabels, ","), coupon, ev.ExpiresAt), nil
	case QueueReminders:
		var ev ReminderEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Reminder | session=%s | user_id=%d | show_id=%d | channel=%s | minutes_before=%d\n",
			ev.RequestedAt, ev.SessionID, ev.UserID, ev.ShowID, ev.Channel, ev.MinutesBefore), nil
	case QueueTickets:
		var ev TicketEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Ticket %s | session=%s | user_id=%d | show_id=%d | movie_id=%d | subject=%q\n",
			ev.RequestedAt, ev.Kind, ev.SessionID, ev.UserID, ev.ShowID, ev.MovieID, ev.Subject), nil
	case QueueVotes:
		var ev VoteEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Vote %s | session=%s | user_id=%d | movie_id=%d | stars=%d\n",
			ev.RequestedAt, ev.Kind, ev.SessionID, ev.UserID, ev.MovieID, ev.Stars), nil
	}
	return "", fmt.Errorf("unknown queue %q", queue)
}

// StartActionLogConsumer connects to RabbitMQ, declares every action queue
// (durable) and appends each message to the action log. It reconnects with
// backoff until ctx is cancelled, then returns ctx.Err(). Messages that
// cannot be handled are rejected without requeue so the loop keeps going.
func StartActionLogConsumer(ctx context.Context, url string, actions *ActionLog, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("action-consumer: failed to dial broker", "err", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, actions, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("action-consumer: consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, actions *ActionLog, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("action-consumer: set QoS failed", "err", err)
	}

	done := make(chan error, len(ActionQueues))
	for _, name := range ActionQueues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		go func(name string, msgs <-chan amqp.Delivery) {
			for d := range msgs {
				if err := actions.Append(name, d.Body); err != nil {
					logger.Error("action-consumer: handle message failed", "queue", name, "err", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
			done <- errors.New(name + ": deliveries channel closed")
		}(name, msgs)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
