package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"trailgate/internal/domain/ratelimit"
	"trailgate/internal/service"
	"trailgate/pkg/api/response"
)

func mapServiceError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	if retry, ok := ratelimit.RetryAfter(err); ok {
		response.TooManyRequests(w, retry)
		return true
	}
	switch {
	case errors.Is(err, service.ErrBadRequest):
		response.Error(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, service.ErrUnavailable):
		response.Error(w, http.StatusServiceUnavailable, "unavailable")
	default:
		response.Error(w, http.StatusInternalServerError, "internal error")
	}
	return true
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, service.ErrBadRequest
	}
	return n, nil
}
