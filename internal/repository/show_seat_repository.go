package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Seat states in show_seats.status.
const (
	SeatFree     = "FREE"
	SeatHeld     = "HELD"
	SeatReserved = "RESERVED"
)

// ShowSeatRepo encapsulates database operations for show_seats, joined with
// seats when seats are addressed by label (row letter + number, e.g. "E6").
type ShowSeatRepo struct {
	db *sql.DB
}

// NewShowSeatRepo constructs a ShowSeatRepo given a DB handle.
func NewShowSeatRepo(db *sql.DB) *ShowSeatRepo {
	return &ShowSeatRepo{db: db}
}

// OccupiedLabels returns the labels of seats that cannot be sold for a show:
// reserved seats, and held seats whose hold has not expired yet.
func (r *ShowSeatRepo) OccupiedLabels(ctx context.Context, showID uint64) ([]string, error) {
	const q = `SELECT s.row_label, s.seat_number FROM show_seats ss JOIN seats s ON s.id = ss.seat_id
               WHERE ss.show_id = ?
                 AND (ss.status = 'RESERVED'
                  OR (ss.status = 'HELD' AND EXISTS (
                      SELECT 1 FROM seat_holds h
                      WHERE h.show_id = ss.show_id AND h.seat_id = ss.seat_id AND h.expires_at > UTC_TIMESTAMP())))
               ORDER BY s.row_label, s.seat_number`
	rows, err := r.db.QueryContext(ctx, q, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	labels := []string{}
	for rows.Next() {
		var row string
		var num uint32
		if err := rows.Scan(&row, &num); err != nil {
			return nil, err
		}
		labels = append(labels, row+strconv.FormatUint(uint64(num), 10))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

// SeatIDsByLabelsTx maps seat labels to seat IDs for a show. Labels that do
// not exist for the show, or are malformed, are absent from the result.
func (r *ShowSeatRepo) SeatIDsByLabelsTx(ctx context.Context, tx *sql.Tx, showID uint64, labels []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(labels))
	args := []interface{}{showID}
	var tuples []string
	for _, l := range labels {
		row, num, ok := splitLabel(l)
		if !ok {
			continue
		}
		tuples = append(tuples, "(?, ?)")
		args = append(args, row, num)
	}
	if len(tuples) == 0 {
		return out, nil
	}
	q := `SELECT ss.seat_id, s.row_label, s.seat_number FROM show_seats ss JOIN seats s ON s.id = ss.seat_id ` +
		`WHERE ss.show_id = ? AND (s.row_label, s.seat_number) IN (` + strings.Join(tuples, ", ") + `)`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var row string
		var num uint32
		if err := rows.Scan(&id, &row, &num); err != nil {
			return nil, err
		}
		out[row+strconv.FormatUint(uint64(num), 10)] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FilterHoldableSeatsTx returns the subset of seatIDs that are FREE for the
// show, in the order given, locking those rows until the transaction ends.
func (r *ShowSeatRepo) FilterHoldableSeatsTx(ctx context.Context, tx *sql.Tx, showID uint64, seatIDs []uint64) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return []uint64{}, nil
	}
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, showID, SeatFree)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	q := `SELECT seat_id FROM show_seats WHERE show_id = ? AND status = ? AND seat_id IN (` +
		placeholders(len(seatIDs)) + `) FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	free := make(map[uint64]struct{}, len(seatIDs))
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		free[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	holdable := make([]uint64, 0, len(free))
	for _, id := range seatIDs {
		if _, ok := free[id]; ok {
			holdable = append(holdable, id)
		}
	}
	return holdable, nil
}

// BulkUpdateStatusTx sets the status of the given seats of a show. An empty
// seatIDs slice is a no-op.
func (r *ShowSeatRepo) BulkUpdateStatusTx(ctx context.Context, tx *sql.Tx, showID uint64, seatIDs []uint64, status string) error {
	if len(seatIDs) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, status, showID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	q := `UPDATE show_seats SET status = ?, version = version + 1 WHERE show_id = ? AND seat_id IN (` +
		placeholders(len(seatIDs)) + `)`
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// splitLabel splits "E12" into ("E", 12). Row labels are one or more
// uppercase letters; numbers start at 1.
func splitLabel(label string) (string, uint32, bool) {
	label = strings.ToUpper(strings.TrimSpace(label))
	i := 0
	for i < len(label) && label[i] >= 'A' && label[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(label) || label[i] == '0' {
		return "", 0, false
	}
	n, err := strconv.ParseUint(label[i:], 10, 32)
	if err != nil {
		return "", 0, false
	}
	return label[:i], uint32(n), true
}
