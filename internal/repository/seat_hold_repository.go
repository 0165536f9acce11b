package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// SeatHoldRecord is one row of seat_holds. All seats held by one booking
// share a HoldToken, which is what the payment page receives.
type SeatHoldRecord struct {
	ID        uint64
	UserID    uint64
	ShowID    uint64
	SeatID    uint64
	HoldToken string
	ExpiresAt time.Time
}

// SeatHoldRepo provides data access to the seat_holds table. Timestamps are
// UTC; expiry is compared against UTC_TIMESTAMP() in SQL.
type SeatHoldRepo struct {
	db *sql.DB
}

// NewSeatHoldRepo returns a new SeatHoldRepo bound to the provided database.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

const (
	expiredHolds = "show_id = ? AND expires_at <= UTC_TIMESTAMP()"
	userHolds    = "user_id = ? AND show_id = ?"
)

// ExpireHoldsTx drops the lapsed holds of a show and returns the seats they
// covered so the caller can free them in the same transaction.
func (r *SeatHoldRepo) ExpireHoldsTx(ctx context.Context, tx *sql.Tx, showID uint64) ([]uint64, error) {
	return r.releaseTx(ctx, tx, expiredHolds, showID)
}

// DeleteByUserAndShowTx drops whatever a user already holds on a show, so a
// new booking replaces rather than stacks on the previous one.
func (r *SeatHoldRepo) DeleteByUserAndShowTx(ctx context.Context, tx *sql.Tx, userID, showID uint64) ([]uint64, error) {
	return r.releaseTx(ctx, tx, userHolds, userID, showID)
}

// releaseTx locks the hold rows matching where, deletes them and reports the
// seat IDs. Nothing matching means no DELETE is sent.
func (r *SeatHoldRepo) releaseTx(ctx context.Context, tx *sql.Tx, where string, args ...any) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT seat_id FROM seat_holds WHERE "+where+" FOR UPDATE", args...)
	if err != nil {
		return nil, fmt.Errorf("select holds: %w", err)
	}
	seatIDs, err := scanIDs(rows)
	if err != nil || len(seatIDs) == 0 {
		return seatIDs, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM seat_holds WHERE "+where, args...); err != nil {
		return nil, fmt.Errorf("delete holds: %w", err)
	}
	return seatIDs, nil
}

// CreateMultipleTx writes all holds with a single INSERT.
func (r *SeatHoldRepo) CreateMultipleTx(ctx context.Context, tx *sql.Tx, holds []SeatHoldRecord) error {
	if len(holds) == 0 {
		return nil
	}
	var q strings.Builder
	q.WriteString("INSERT INTO seat_holds (user_id, show_id, seat_id, hold_token, expires_at) VALUES ")
	args := make([]any, 0, len(holds)*5)
	for i, h := range holds {
		if i > 0 {
			q.WriteString(", ")
		}
		q.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, h.UserID, h.ShowID, h.SeatID, h.HoldToken, h.ExpiresAt.UTC().Format(time.DateTime))
	}
	if _, err := tx.ExecContext(ctx, q.String(), args...); err != nil {
		return fmt.Errorf("insert holds: %w", err)
	}
	return nil
}

// GenerateHoldRecords prepares one record per seat under a single fresh
// token (32 random bytes, hex) and returns that token.
func GenerateHoldRecords(userID, showID uint64, seatIDs []uint64, expiresAt time.Time) ([]SeatHoldRecord, string, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, "", fmt.Errorf("hold token: %w", err)
	}
	token := hex.EncodeToString(raw[:])
	out := make([]SeatHoldRecord, len(seatIDs))
	for i, seatID := range seatIDs {
		out[i] = SeatHoldRecord{UserID: userID, ShowID: showID, SeatID: seatID, HoldToken: token, ExpiresAt: expiresAt}
	}
	return out, token, nil
}

// scanIDs drains a single uint64 column and closes rows.
func scanIDs(rows *sql.Rows) (ids []uint64, err error) {
	defer rows.Close()
	ids = make([]uint64, 0, 8)
	for rows.Next() {
		var id uint64
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
