package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cinema-assistant/internal/repository"
)

// DefaultHoldTTL is how long held seats wait for payment.
const DefaultHoldTTL = 5 * time.Minute

// Hold is a successful seat hold.
type Hold struct {
	Token     string
	ShowID    uint64
	Seats     []string
	ExpiresAt time.Time
}

// SeatHolds places seat holds by label inside one transaction: expired holds
// are released first, the user's previous holds on the show are replaced, and
// either every requested seat is held or none is.
type SeatHolds struct {
	shows     *repository.ShowRepo
	showSeats *repository.ShowSeatRepo
	holds     *repository.SeatHoldRepo
	ttl       time.Duration
	now       func() time.Time
}

func NewSeatHolds(shows *repository.ShowRepo, showSeats *repository.ShowSeatRepo, holds *repository.SeatHoldRepo, ttl time.Duration) *SeatHolds {
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	return &SeatHolds{shows: shows, showSeats: showSeats, holds: holds, ttl: ttl, now: time.Now}
}

// Hold reserves labels for userID on showID until the hold TTL elapses. It
// returns repository.ErrShowNotFound, repository.ErrConflict for a show that is
// not scheduled, or an error wrapping repository.ErrSeatsUnavailable that
// names the seats that could not be held.
func (s *SeatHolds) Hold(ctx context.Context, userID, showID uint64, labels []string) (Hold, error) {
	if userID == 0 || len(labels) == 0 {
		return Hold{}, errors.New("hold: user and seats are required")
	}
	show, err := s.shows.GetByID(ctx, showID)
	if err != nil {
		return Hold{}, err
	}
	if show.Status != repository.ShowScheduled {
		return Hold{}, repository.ErrConflict
	}

	tx, err := s.shows.DB().BeginTx(ctx, nil)
	if err != nil {
		return Hold{}, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	expired, err := s.holds.ExpireHoldsTx(ctx, tx, showID)
	if err != nil {
		return Hold{}, fmt.Errorf("expire holds: %w", err)
	}
	if err := s.showSeats.BulkUpdateStatusTx(ctx, tx, showID, expired, repository.SeatFree); err != nil {
		return Hold{}, fmt.Errorf("release expired seats: %w", err)
	}
	previous, err := s.holds.DeleteByUserAndShowTx(ctx, tx, userID, showID)
	if err != nil {
		return Hold{}, fmt.Errorf("replace holds: %w", err)
	}
	if err := s.showSeats.BulkUpdateStatusTx(ctx, tx, showID, previous, repository.SeatFree); err != nil {
		return Hold{}, fmt.Errorf("release previous seats: %w", err)
	}

	ids, err := s.showSeats.SeatIDsByLabelsTx(ctx, tx, showID, labels)
	if err != nil {
		return Hold{}, fmt.Errorf("resolve seats: %w", err)
	}
	seatIDs := make([]uint64, 0, len(labels))
	var unavailable []string
	for _, l := range labels {
		id, ok := ids[strings.ToUpper(l)]
		if !ok {
			unavailable = append(unavailable, l)
			continue
		}
		seatIDs = append(seatIDs, id)
	}
	if len(unavailable) == 0 {
		holdable, err := s.showSeats.FilterHoldableSeatsTx(ctx, tx, showID, seatIDs)
		if err != nil {
			return Hold{}, fmt.Errorf("check seats: %w", err)
		}
		if len(holdable) != len(seatIDs) {
			free := make(map[uint64]bool, len(holdable))
			for _, id := range holdable {
				free[id] = true
			}
			for i, id := range seatIDs {
				if !free[id] {
					unavailable = append(unavailable, labels[i])
				}
			}
		}
	}
	if len(unavailable) > 0 {
		return Hold{}, fmt.Errorf("%w: %s", repository.ErrSeatsUnavailable, strings.Join(unavailable, ","))
	}

	expiresAt := s.now().UTC().Add(s.ttl)
	records, token, err := repository.GenerateHoldRecords(userID, showID, seatIDs, expiresAt)
	if err != nil {
		return Hold{}, fmt.Errorf("hold token: %w", err)
	}
	if err := s.holds.CreateMultipleTx(ctx, tx, records); err != nil {
		return Hold{}, fmt.Errorf("create holds: %w", err)
	}
	if err := s.showSeats.BulkUpdateStatusTx(ctx, tx, showID, seatIDs, repository.SeatHeld); err != nil {
		return Hold{}, fmt.Errorf("mark seats held: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Hold{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return Hold{Token: token, ShowID: showID, Seats: labels, ExpiresAt: expiresAt}, nil
}
