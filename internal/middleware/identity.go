package middleware

import (
	"encoding/json"
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's numeric ID. The "sub" claim decodes
// as float64 from JSON, but string and json.Number subjects are accepted too.
func UserID(c echo.Context) (uint64, bool) {
	switch v := c.Get("user_id").(type) {
	case float64:
		if v > 0 && v == float64(uint64(v)) {
			return uint64(v), true
		}
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil && n > 0 {
			return n, true
		}
	case json.Number:
		if n, err := strconv.ParseUint(v.String(), 10, 64); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// subject identifies the caller in rate limit keys; guests share "anon" and
// are told apart by IP.
func subject(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
