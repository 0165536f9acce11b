// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// action executor and HTTP handlers to distinguish between different
// failure scenarios.
package repository

import "errors"

// ErrConflict is returned when an operation cannot proceed because of the
// target's state, such as holding seats for a show that is no longer
// scheduled. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrSeatsUnavailable is returned when at least one requested seat is
// already held or reserved, or does not exist for the show.
var ErrSeatsUnavailable = errors.New("seats unavailable")
