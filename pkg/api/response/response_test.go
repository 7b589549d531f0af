package response

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, "invalid request")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type=%q", ct)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"status":"error","error":"invalid request"}` {
		t.Fatalf("body=%s", body)
	}
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NoContent(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequests(w, 1500*time.Millisecond)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
	if got := w.Header().Get(HeaderRetryAfter); got != "2" {
		t.Fatalf("Retry-After=%q want=2", got)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"status":"error","error":"too many requests","retry_after_ms":1500}` {
		t.Fatalf("body=%s", body)
	}

	w = httptest.NewRecorder()
	TooManyRequests(w, 0)
	if got := w.Header().Get(HeaderRetryAfter); got != "" {
		t.Fatalf("Retry-After=%q want empty", got)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{in: -time.Second, want: 0},
		{in: 0, want: 0},
		{in: time.Millisecond, want: 1},
		{in: time.Second, want: 1},
		{in: 5*time.Minute + time.Millisecond, want: 301},
	}
	for _, tt := range tests {
		if got := RetryAfterSeconds(tt.in); got != tt.want {
			t.Fatalf("RetryAfterSeconds(%v)=%d want=%d", tt.in, got, tt.want)
		}
	}
}

func TestRateLimitHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	reset := time.Date(2026, 5, 1, 9, 1, 0, 0, time.UTC)
	RateLimitHeaders(w, 100, -3, reset)

	h := w.Header()
	if h.Get(HeaderLimit) != "100" || h.Get(HeaderRemaining) != "0" {
		t.Fatalf("headers=%v", h)
	}
	if h.Get(HeaderReset) != "1777626060" {
		t.Fatalf("reset=%q", h.Get(HeaderReset))
	}
}
