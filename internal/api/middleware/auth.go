package middleware

import (
	"context"
	"net/http"
	"strings"

	"trailgate/pkg/api/response"
)

type ctxKey string

const ctxAdminSubject ctxKey = "admin_subject"

type adminTokenParser interface {
	ParseAdmin(token string) (string, error)
}

func AdminFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(ctxAdminSubject).(string)
	return sub, ok && sub != ""
}

// AdminAuth accepts only bearer tokens carrying the admin role.
func AdminAuth(tokens adminTokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			scheme, raw, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				response.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			subject, err := tokens.ParseAdmin(strings.TrimSpace(raw))
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), ctxAdminSubject, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
