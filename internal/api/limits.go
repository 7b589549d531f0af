package api

import (
	"net/http"
	"strings"
	"time"

	"trailgate/internal/domain/ratelimit"
	"trailgate/internal/service"
	"trailgate/pkg/api/response"
)

type LimitsHandler struct {
	limits *service.LimitService
}

type ruleRequest struct {
	MaxRequests     int   `json:"max_requests"`
	WindowMS        int64 `json:"window_ms"`
	BlockDurationMS int64 `json:"block_duration_ms"`
}

type checkRequest struct {
	Key    string       `json:"key"`
	Preset string       `json:"preset,omitempty"`
	Rule   *ruleRequest `json:"rule,omitempty"`
}

type checkResponse struct {
	Allowed      bool      `json:"allowed"`
	Remaining    int       `json:"remaining"`
	Limit        int       `json:"limit"`
	RetryAfterMS int64     `json:"retry_after_ms"`
	ResetAt      time.Time `json:"reset_at"`
	Outcome      string    `json:"outcome"`
}

type remainingResponse struct {
	Key       string `json:"key"`
	Preset    string `json:"preset"`
	Remaining int    `json:"remaining"`
}

func NewLimitsHandler(limits *service.LimitService) *LimitsHandler {
	return &LimitsHandler{limits: limits}
}

// Check godoc
// @Summary Consume one call
// @Description Records a call for key against a preset or a custom rule. A rejected call is still 200; inspect allowed.
// @Description Keys are stored as app:<key>. Custom windows and blocks are capped by rate_limit.max_custom_window.
// @Tags limits
// @Accept json
// @Produce json
// @Param request body checkRequest true "Check request"
// @Success 200 {object} checkResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /api/v1/limits/check [post]
func (h *LimitsHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request")
		return
	}
	key, err := service.PublicKey(req.Key)
	if mapServiceError(w, err) {
		return
	}
	var custom *ratelimit.Rule
	if req.Rule != nil {
		custom = &ratelimit.Rule{
			MaxRequests:   req.Rule.MaxRequests,
			Window:        time.Duration(req.Rule.WindowMS) * time.Millisecond,
			BlockDuration: time.Duration(req.Rule.BlockDurationMS) * time.Millisecond,
		}
	}
	target, err := h.limits.ResolveTarget(req.Preset, custom)
	if mapServiceError(w, err) {
		return
	}

	res := h.limits.Check(r.Context(), key, target)
	response.JSON(w, http.StatusOK, checkResponse{
		Allowed:      res.Allowed,
		Remaining:    res.Remaining,
		Limit:        res.Limit,
		RetryAfterMS: res.RetryAfter.Milliseconds(),
		ResetAt:      res.ResetAt.UTC(),
		Outcome:      string(res.Outcome),
	})
}

// Remaining godoc
// @Summary Remaining calls
// @Description Reports how many calls key may still make under preset without consuming one.
// @Tags limits
// @Produce json
// @Param key query string true "Limit key"
// @Param preset query string true "Preset name (api, auth, search, submit, upload)"
// @Success 200 {object} remainingResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 429 {object} response.ErrorResponse
// @Router /api/v1/limits/remaining [get]
func (h *LimitsHandler) Remaining(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, err := service.PublicKey(q.Get("key"))
	if mapServiceError(w, err) {
		return
	}
	target, err := h.limits.ResolveTarget(q.Get("preset"), nil)
	if mapServiceError(w, err) {
		return
	}

	response.JSON(w, http.StatusOK, remainingResponse{
		Key:       strings.TrimPrefix(key, service.PublicKeyPrefix),
		Preset:    target.Name(),
		Remaining: h.limits.Remaining(r.Context(), key, target),
	})
}
