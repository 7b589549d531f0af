package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Violation records a key entering a block cooldown.
type Violation struct {
	ID           int64     `db:"id"`
	EventID      string    `db:"event_id"`
	Key          string    `db:"limit_key"`
	Preset       string    `db:"preset"`
	MaxRequests  int       `db:"max_requests"`
	WindowMS     int64     `db:"window_ms"`
	BlockedUntil time.Time `db:"blocked_until"`
	CreatedAt    time.Time `db:"created_at"`
}

const violationColumns = `id, event_id, limit_key, preset, max_requests, window_ms, blocked_until, created_at`

type ViolationRepository struct {
	db *sqlx.DB
}

func NewViolationRepository(db *sqlx.DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

func (r *ViolationRepository) Create(ctx context.Context, v Violation) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rate_limit_violations (event_id, limit_key, preset, max_requests, window_ms, blocked_until, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.EventID, v.Key, v.Preset, v.MaxRequests, v.WindowMS, v.BlockedUntil, v.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *ViolationRepository) ListRecent(ctx context.Context, limit int) ([]Violation, error) {
	items := []Violation{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT `+violationColumns+` FROM rate_limit_violations ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ViolationRepository) ListByKey(ctx context.Context, key string, limit int) ([]Violation, error) {
	items := []Violation{}
	err := r.db.SelectContext(ctx, &items,
		`SELECT `+violationColumns+` FROM rate_limit_violations WHERE limit_key = ? ORDER BY created_at DESC, id DESC LIMIT ?`, key, limit,
	)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteBefore prunes audit rows older than cutoff.
func (r *ViolationRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rate_limit_violations WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
