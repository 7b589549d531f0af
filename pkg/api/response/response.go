// Package response writes the JSON envelopes and rate limit headers shared by
// every handler.
package response

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

type ErrorResponse struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorResponse{Status: "error", Error: msg})
}

// NoContent acknowledges a mutation that has nothing to return.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// TooManyRequests rejects a limited call. Retry-After is in whole seconds,
// rounded up; the body carries the exact wait.
func TooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	if secs := RetryAfterSeconds(retryAfter); secs > 0 {
		w.Header().Set(HeaderRetryAfter, strconv.Itoa(secs))
	}
	JSON(w, http.StatusTooManyRequests, ErrorResponse{
		Status:       "error",
		Error:        "too many requests",
		RetryAfterMS: max(retryAfter.Milliseconds(), 0),
	})
}

// RateLimitHeaders publishes the caller's budget. reset is sent as unix seconds.
func RateLimitHeaders(w http.ResponseWriter, limit, remaining int, reset time.Time) {
	h := w.Header()
	h.Set(HeaderLimit, strconv.Itoa(limit))
	h.Set(HeaderRemaining, strconv.Itoa(max(remaining, 0)))
	h.Set(HeaderReset, strconv.FormatInt(reset.Unix(), 10))
}

// RetryAfterSeconds returns 0 for d <= 0, otherwise at least 1.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return max(int(math.Ceil(d.Seconds())), 1)
}
