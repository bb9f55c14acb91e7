package repository

import (
	"context"
	"time"

	"github.com/trackforge/postback-engine/internal/domain"
)

// PostbackRepository persists postback state. The store is the single source
// of truth; workers hold transient working copies reconciled back via Save.
// All operations are safe for concurrent callers against the same backing
// store. Reads return empty results rather than erroring when nothing matches.
type PostbackRepository interface {
	// Save inserts or replaces the record by id (upsert, not patch). The claim
	// lease is the one exception: only Claim and ReleaseClaim write it, so a
	// Save never disturbs a lease another worker holds.
	Save(ctx context.Context, postback *domain.Postback) error
	GetByID(ctx context.Context, id string) (*domain.Postback, error)
	// GetByConversionID returns postbacks newest-created-first.
	GetByConversionID(ctx context.Context, conversionID string) ([]domain.Postback, error)
	// GetPending returns PENDING postbacks oldest-created-first.
	GetPending(ctx context.Context, limit int) ([]domain.Postback, error)
	// GetByStatus returns postbacks newest-created-first.
	GetByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Postback, error)
	// GetRetryCandidates returns RETRYING postbacks whose next attempt is due,
	// ordered by next_attempt_at ascending.
	GetRetryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Postback, error)
	// UpdateStatus is the narrow administrative override; the normal
	// attempt-recording path goes through Save.
	UpdateStatus(ctx context.Context, id string, status domain.Status) error

	// Claim takes a short-lived processing lease on the postback. It succeeds
	// only when no live lease exists, guaranteeing at most one concurrent
	// delivery attempt per postback.
	Claim(ctx context.Context, id string, now, leaseUntil time.Time) (bool, error)
	ReleaseClaim(ctx context.Context, id string) error
}

// AttemptLogRepository stores the per-attempt audit trail.
type AttemptLogRepository interface {
	Create(ctx context.Context, attempt *domain.DeliveryAttempt) error
	GetByPostbackID(ctx context.Context, postbackID string) ([]domain.DeliveryAttempt, error)
}
