package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	middlewarex "trailgate/internal/api/middleware"
	"trailgate/internal/domain/ratelimit"
	"trailgate/internal/repository"
	"trailgate/internal/service"
	"trailgate/pkg/api/response"
)

const adminKeyPrefix = "admin:"

type AdminHandler struct {
	limits *service.LimitService
	budget service.Target
}

type violationResponse struct {
	ID           int64     `json:"id"`
	EventID      string    `json:"event_id"`
	Key          string    `json:"key"`
	Preset       string    `json:"preset"`
	MaxRequests  int       `json:"max_requests"`
	WindowMS     int64     `json:"window_ms"`
	BlockedUntil time.Time `json:"blocked_until"`
	CreatedAt    time.Time `json:"created_at"`
}

type violationsResponse struct {
	Items []violationResponse `json:"items"`
}

// NewAdminHandler budgets admin mutations per moderator with the submit preset.
func NewAdminHandler(limits *service.LimitService) *AdminHandler {
	return &AdminHandler{limits: limits, budget: limits.PresetTarget(ratelimit.PresetSubmit)}
}

// ResetKey godoc
// @Summary Reset one key
// @Description Forgets all counters and blocks for a stored key: app:<key> for public checks, ip:<addr> for the request guard.
// @Tags admin
// @Security BearerAuth
// @Param key path string true "Limit key"
// @Success 204
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /api/v1/admin/limits/{key} [delete]
func (h *AdminHandler) ResetKey(w http.ResponseWriter, r *http.Request) {
	key, err := service.NormalizeKey(chi.URLParam(r, "key"))
	if mapServiceError(w, err) {
		return
	}
	reset := h.guarded(r, func(ctx context.Context) (struct{}, error) {
		h.limits.Reset(ctx, key)
		return struct{}{}, nil
	})
	if _, err := reset(r.Context()); mapServiceError(w, err) {
		return
	}
	response.NoContent(w)
}

// ClearAll godoc
// @Summary Clear every key
// @Description Forgets all counters and blocks.
// @Tags admin
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /api/v1/admin/limits [delete]
func (h *AdminHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	clearAll := h.guarded(r, func(ctx context.Context) (struct{}, error) {
		h.limits.Clear(ctx)
		return struct{}{}, nil
	})
	if _, err := clearAll(r.Context()); mapServiceError(w, err) {
		return
	}
	response.NoContent(w)
}

// Violations godoc
// @Summary Recorded blocks
// @Description Lists keys that entered a block cooldown, newest first.
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param key query string false "Filter by stored key"
// @Param limit query int false "Max items (default 50, max 500)"
// @Success 200 {object} violationsResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /api/v1/admin/violations [get]
func (h *AdminHandler) Violations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if mapServiceError(w, err) {
		return
	}

	var items []repository.Violation
	if raw := q.Get("key"); raw != "" {
		var key string
		if key, err = service.NormalizeKey(raw); mapServiceError(w, err) {
			return
		}
		items, err = h.limits.KeyViolations(r.Context(), key, limit)
	} else {
		items, err = h.limits.RecentViolations(r.Context(), limit)
	}
	if mapServiceError(w, err) {
		return
	}
	out := violationsResponse{Items: make([]violationResponse, 0, len(items))}
	for _, v := range items {
		out.Items = append(out.Items, toViolationResponse(v))
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *AdminHandler) guarded(r *http.Request, fn func(context.Context) (struct{}, error)) func(context.Context) (struct{}, error) {
	subject, _ := middlewarex.AdminFromContext(r.Context())
	return ratelimit.WithRateLimit(h.limits.Limiter(), fn, adminKeyPrefix+subject, h.budget.Rule)
}

func toViolationResponse(v repository.Violation) violationResponse {
	return violationResponse{
		ID:           v.ID,
		EventID:      v.EventID,
		Key:          v.Key,
		Preset:       v.Preset,
		MaxRequests:  v.MaxRequests,
		WindowMS:     v.WindowMS,
		BlockedUntil: v.BlockedUntil.UTC(),
		CreatedAt:    v.CreatedAt.UTC(),
	}
}
