package logging

import (
	"net/http"
	"strconv"
	"strings"
)

// IsRateLimit reports whether err looks like remote throttling.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, strconv.Itoa(http.StatusTooManyRequests))
}

// IsTransientStatus reports whether an HTTP status is worth another attempt.
func IsTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
