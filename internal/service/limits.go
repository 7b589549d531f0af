package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"trailgate/internal/domain/ratelimit"
	metricsinfra "trailgate/internal/infra/metrics"
	"trailgate/internal/repository"
)

const (
	maxKeyLen            = 255
	customTargetName     = "custom"
	defaultListLimit     = 50
	maxListLimit         = 500
	defaultAuditWindow   = 2 * time.Second
	DefaultCustomCeiling = time.Hour
)

// PublicKeyPrefix namespaces caller supplied keys so they never collide with
// the per-IP guard or the moderator budget.
const PublicKeyPrefix = "app:"

type ViolationStore interface {
	Create(ctx context.Context, v repository.Violation) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]repository.Violation, error)
	ListByKey(ctx context.Context, key string, limit int) ([]repository.Violation, error)
}

// Target is the rule a check is evaluated against, either a named preset or
// a caller supplied rule.
type Target struct {
	Preset ratelimit.Preset
	Rule   ratelimit.Rule
}

func (t Target) Name() string {
	if t.Preset == 0 {
		return customTargetName
	}
	return t.Preset.String()
}

type LimitService struct {
	limiter      ratelimit.Limiter
	presets      ratelimit.Table
	violations   ViolationStore
	auditTimeout time.Duration
	logger       *slog.Logger
	metrics      *metricsinfra.Metrics
	ceiling      time.Duration
	now          func() time.Time
}

// NewLimitService wires the limiter with preset resolution and auditing.
// violations may be nil, in which case blocks are only logged.
func NewLimitService(limiter ratelimit.Limiter, presets ratelimit.Table, violations ViolationStore, auditTimeout time.Duration, logger *slog.Logger, metrics *metricsinfra.Metrics) *LimitService {
	if presets == nil {
		presets = ratelimit.DefaultTable()
	}
	if auditTimeout <= 0 {
		auditTimeout = defaultAuditWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LimitService{
		limiter:      limiter,
		presets:      presets,
		violations:   violations,
		auditTimeout: auditTimeout,
		logger:       logger,
		metrics:      metrics,
		ceiling:      DefaultCustomCeiling,
		now:          time.Now,
	}
}

// SetCustomCeiling bounds the window and block duration of caller supplied
// rules. Memory state for a custom rule lives at most this long past its
// last check, so the sweep horizon must be at least d.
func (s *LimitService) SetCustomCeiling(d time.Duration) {
	if d > 0 {
		s.ceiling = d
	}
}

func (s *LimitService) CustomCeiling() time.Duration {
	return s.ceiling
}

func (s *LimitService) Limiter() ratelimit.Limiter {
	return s.limiter
}

func (s *LimitService) PresetTarget(p ratelimit.Preset) Target {
	return Target{Preset: p, Rule: s.presets.Rule(p)}
}

// ResolveTarget accepts either a preset name or a custom rule, not both.
func (s *LimitService) ResolveTarget(preset string, custom *ratelimit.Rule) (Target, error) {
	preset = strings.TrimSpace(preset)
	switch {
	case preset != "" && custom != nil:
		return Target{}, fmt.Errorf("%w: preset and rule are mutually exclusive", ErrBadRequest)
	case preset != "":
		p, err := ratelimit.ParsePreset(preset)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return s.PresetTarget(p), nil
	case custom != nil:
		if !custom.Enabled() || custom.BlockDuration < 0 {
			return Target{}, fmt.Errorf("%w: rule needs positive max_requests and window", ErrBadRequest)
		}
		if custom.Window > s.ceiling || custom.BlockDuration > s.ceiling {
			return Target{}, fmt.Errorf("%w: window and block_duration must not exceed %s", ErrBadRequest, s.ceiling)
		}
		return Target{Rule: *custom}, nil
	default:
		return Target{}, fmt.Errorf("%w: preset or rule required", ErrBadRequest)
	}
}

func (s *LimitService) Check(ctx context.Context, key string, target Target) ratelimit.Result {
	res := s.limiter.Check(ctx, key, target.Rule)
	s.metrics.IncDecision(target.Name(), string(res.Outcome))

	if res.Outcome == ratelimit.OutcomeBlockStarted {
		s.logger.Warn("rate limit block started",
			"key", key,
			"preset", target.Name(),
			"blocked_until", res.ResetAt,
		)
		s.recordViolation(ctx, key, target, res)
	}
	return res
}

func (s *LimitService) Remaining(ctx context.Context, key string, target Target) int {
	return s.limiter.Remaining(ctx, key, target.Rule)
}

func (s *LimitService) Reset(ctx context.Context, key string) {
	s.limiter.Reset(ctx, key)
	s.logger.Info("rate limit reset", "key", key)
}

func (s *LimitService) Clear(ctx context.Context) {
	s.limiter.Clear(ctx)
	s.logger.Info("rate limits cleared")
}

// RecentViolations lists recorded blocks across all keys, newest first.
func (s *LimitService) RecentViolations(ctx context.Context, limit int) ([]repository.Violation, error) {
	if s.violations == nil {
		return nil, ErrUnavailable
	}
	return s.violations.ListRecent(ctx, clampListLimit(limit))
}

func (s *LimitService) KeyViolations(ctx context.Context, key string, limit int) ([]repository.Violation, error) {
	if s.violations == nil {
		return nil, ErrUnavailable
	}
	return s.violations.ListByKey(ctx, key, clampListLimit(limit))
}

func clampListLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func (s *LimitService) recordViolation(ctx context.Context, key string, target Target, res ratelimit.Result) {
	if s.violations == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
	defer cancel()

	v := repository.Violation{
		EventID:      uuid.NewString(),
		Key:          key,
		Preset:       target.Name(),
		MaxRequests:  target.Rule.MaxRequests,
		WindowMS:     target.Rule.Window.Milliseconds(),
		BlockedUntil: res.ResetAt.UTC(),
		CreatedAt:    s.now().UTC(),
	}
	if _, err := s.violations.Create(wctx, v); err != nil {
		s.logger.Error("rate limit violation write failed", "key", key, "err", err)
		if s.metrics != nil {
			s.metrics.ViolationWriteErrors.Inc()
		}
	}
}

// NormalizeKey trims the key and enforces the storage length limit.
func NormalizeKey(raw string) (string, error) {
	k := strings.TrimSpace(raw)
	if k == "" {
		return "", fmt.Errorf("%w: empty key", ErrBadRequest)
	}
	if len(k) > maxKeyLen {
		return "", fmt.Errorf("%w: key too long", ErrBadRequest)
	}
	return k, nil
}

// PublicKey normalizes a caller supplied key into the public namespace.
func PublicKey(raw string) (string, error) {
	k, err := NormalizeKey(raw)
	if err != nil {
		return "", err
	}
	if len(k) > maxKeyLen-len(PublicKeyPrefix) {
		return "", fmt.Errorf("%w: key too long", ErrBadRequest)
	}
	return PublicKeyPrefix + k, nil
}
