// Package repository contains data access logic for the assistant's storefront
// data: movies, their scheduled shows, per-show seat state and seat holds.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Show statuses as stored in shows.status.
const (
	ShowScheduled = "SCHEDULED"
	ShowCancelled = "CANCELLED"
	ShowFinished  = "FINISHED"
)

// Show represents a scheduled screening of a movie in a hall. StartsAt is
// stored in UTC; the DSN sets parseTime so it scans straight into time.Time.
type Show struct {
	ID       uint64
	MovieID  uint64
	HallID   uint64
	Title    string
	StartsAt time.Time
	Status   string
}

// ErrShowNotFound indicates that a show was not located in the DB.
var ErrShowNotFound = errors.New("show not found")

// ShowRepo manages persistence for shows.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning multiple repositories.
func (r *ShowRepo) DB() *sql.DB {
	return r.db
}

// GetByID retrieves a show by its ID. It returns ErrShowNotFound if there is
// no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (*Show, error) {
	const q = `SELECT id, movie_id, hall_id, title, starts_at, status FROM shows WHERE id = ?`
	var s Show
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.MovieID, &s.HallID, &s.Title, &s.StartsAt, &s.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListUpcomingByMovie returns the scheduled shows of a movie starting at or
// after from, ordered by start time then ID. An empty slice means the movie
// has no upcoming screenings.
func (r *ShowRepo) ListUpcomingByMovie(ctx context.Context, movieID uint64, from time.Time) ([]Show, error) {
	const q = `SELECT id, movie_id, hall_id, title, starts_at, status
               FROM shows
               WHERE movie_id = ? AND status = ? AND starts_at >= ?
               ORDER BY starts_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, movieID, ShowScheduled, from.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Show{}
	for rows.Next() {
		var s Show
		if err := rows.Scan(&s.ID, &s.MovieID, &s.HallID, &s.Title, &s.StartsAt, &s.Status); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
