package middleware

import (
	"log/slog"
	"net"
	"net/http"

	"trailgate/internal/service"
	"trailgate/pkg/api/response"
)

const guardKeyPrefix = "ip:"

// RateLimit limits every request by client IP against target and publishes
// the X-RateLimit-* headers.
func RateLimit(limits *service.LimitService, target service.Target, logger *slog.Logger) func(http.Handler) http.Handler {
	if limits == nil || !target.Rule.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			res := limits.Check(r.Context(), guardKeyPrefix+ip, target)

			response.RateLimitHeaders(w, res.Limit, res.Remaining, res.ResetAt)

			if !res.Allowed {
				if logger != nil {
					logger.Debug("request rate limited", "ip", ip, "outcome", res.Outcome)
				}
				response.TooManyRequests(w, res.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of RemoteAddr. Forwarded headers are only
// honoured when the router runs chi's RealIP, which rewrites RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
