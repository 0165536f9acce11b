package assistant

import (
	"strconv"
	"strings"
)

// Every auditorium uses the same 10x12 grid.
const (
	GridRows           = "ABCDEFGHIJ"
	GridColumns        = 12
	TotalSeats         = len(GridRows) * GridColumns
	MaxSeatsPerBooking = 6
)

// rows closest to the middle of the room come first
const rowPreference = "EFDGCHBIAJ"

// SeatSet is a set of seat labels such as "E7".
type SeatSet map[string]struct{}

// NewSeatSet builds a set from labels. Labels are trimmed and uppercased;
// anything that is not a grid seat is dropped.
func NewSeatSet(labels ...string) SeatSet {
	s := make(SeatSet, len(labels))
	for _, l := range labels {
		row, col, ok := ParseSeatLabel(l)
		if !ok {
			continue
		}
		s[SeatLabel(row, col)] = struct{}{}
	}
	return s
}

// Has reports whether label is in the set. A nil set is empty.
func (s SeatSet) Has(label string) bool {
	_, ok := s[label]
	return ok
}

// SeatLabel formats a seat, e.g. SeatLabel('E', 7) == "E7".
func SeatLabel(row byte, col int) string {
	return string(row) + strconv.Itoa(col)
}

// ParseSeatLabel validates a label against the grid.
func ParseSeatLabel(label string) (row byte, col int, ok bool) {
	l := strings.ToUpper(strings.TrimSpace(label))
	if len(l) < 2 || strings.IndexByte(GridRows, l[0]) < 0 {
		return 0, 0, false
	}
	if l[1] == '0' {
		return 0, 0, false
	}
	col, err := strconv.Atoi(l[1:])
	if err != nil || col < 1 || col > GridColumns {
		return 0, 0, false
	}
	return l[0], col, true
}

// ClampSeatCount bounds a requested party size to [1, MaxSeatsPerBooking].
func ClampSeatCount(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxSeatsPerBooking:
		return MaxSeatsPerBooking
	}
	return n
}

// SuggestSeats picks count free seats, preferring a contiguous block in the
// most central row that has one. Without any contiguous block it returns the
// first free seats in row-major order, and fewer than count when the room has
// fewer free seats.
func SuggestSeats(occupied SeatSet, count int) []string {
	count = ClampSeatCount(count)

	for i := 0; i < len(rowPreference); i++ {
		row := rowPreference[i]
		free := freeColumns(occupied, row)
		for start := 0; start+count <= len(free); start++ {
			window := free[start : start+count]
			if window[count-1]-window[0] != count-1 {
				continue
			}
			seats := make([]string, 0, count)
			for _, col := range window {
				seats = append(seats, SeatLabel(row, col))
			}
			return seats
		}
	}

	seats := make([]string, 0, count)
	for i := 0; i < len(GridRows) && len(seats) < count; i++ {
		for _, col := range freeColumns(occupied, GridRows[i]) {
			seats = append(seats, SeatLabel(GridRows[i], col))
			if len(seats) == count {
				break
			}
		}
	}
	return seats
}

// IsContiguous reports whether seats share a row and run without gaps in the
// order given.
func IsContiguous(seats []string) bool {
	if len(seats) == 0 {
		return false
	}
	row, prev, ok := ParseSeatLabel(seats[0])
	if !ok {
		return false
	}
	for _, s := range seats[1:] {
		r, c, ok := ParseSeatLabel(s)
		if !ok || r != row || c != prev+1 {
			return false
		}
		prev = c
	}
	return true
}

// FreeCount is the number of grid seats not in occupied.
func FreeCount(occupied SeatSet) int {
	return TotalSeats - occupiedCount(occupied)
}

func occupiedCount(occupied SeatSet) int {
	n := 0
	for label := range occupied {
		if _, _, ok := ParseSeatLabel(label); ok {
			n++
		}
	}
	return n
}

func freeColumns(occupied SeatSet, row byte) []int {
	cols := make([]int, 0, GridColumns)
	for col := 1; col <= GridColumns; col++ {
		if !occupied.Has(SeatLabel(row, col)) {
			cols = append(cols, col)
		}
	}
	return cols
}
