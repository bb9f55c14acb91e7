package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trackforge/postback-engine/internal/domain"
)

// MemoryPostbackRepo is an in-memory store behind the same contract as the
// Postgres repo. Used by tests and single-process development runs.
type MemoryPostbackRepo struct {
	mu        sync.Mutex
	postbacks map[string]*domain.Postback
}

var _ PostbackRepository = (*MemoryPostbackRepo)(nil)

func NewMemoryPostbackRepo() *MemoryPostbackRepo {
	return &MemoryPostbackRepo{
		postbacks: make(map[string]*domain.Postback),
	}
}

func (r *MemoryPostbackRepo) Save(ctx context.Context, postback *domain.Postback) error {
	if postback == nil || postback.ID == "" {
		return domain.ErrPersistence
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Full upsert: the stored record is replaced, except the live claim lease
	// which is owned by the claim surface.
	stored := postback.Clone()
	if existing, ok := r.postbacks[postback.ID]; ok {
		stored.ClaimedUntil = existing.ClaimedUntil
	}
	r.postbacks[postback.ID] = stored
	return nil
}

func (r *MemoryPostbackRepo) GetByID(ctx context.Context, id string) (*domain.Postback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	postback, ok := r.postbacks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return postback.Clone(), nil
}

func (r *MemoryPostbackRepo) GetByConversionID(ctx context.Context, conversionID string) ([]domain.Postback, error) {
	matches := r.collect(func(p *domain.Postback) bool {
		return p.ConversionID == conversionID
	})
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func (r *MemoryPostbackRepo) GetPending(ctx context.Context, limit int) ([]domain.Postback, error) {
	matches := r.collect(func(p *domain.Postback) bool {
		return p.Status == domain.StatusPending
	})
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return capSlice(matches, limit), nil
}

func (r *MemoryPostbackRepo) GetByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Postback, error) {
	matches := r.collect(func(p *domain.Postback) bool {
		return p.Status == status
	})
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return capSlice(matches, limit), nil
}

func (r *MemoryPostbackRepo) GetRetryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Postback, error) {
	matches := r.collect(func(p *domain.Postback) bool {
		return p.Status == domain.StatusRetrying &&
			p.NextAttemptAt != nil &&
			!p.NextAttemptAt.After(now)
	})
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].NextAttemptAt.Before(*matches[j].NextAttemptAt)
	})
	return capSlice(matches, limit), nil
}

func (r *MemoryPostbackRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	postback, ok := r.postbacks[id]
	if !ok {
		return domain.ErrNotFound
	}
	postback.Status = status
	return nil
}

func (r *MemoryPostbackRepo) Claim(ctx context.Context, id string, now, leaseUntil time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	postback, ok := r.postbacks[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if postback.ClaimedUntil != nil && postback.ClaimedUntil.After(now) {
		return false, nil
	}
	lease := leaseUntil
	postback.ClaimedUntil = &lease
	return true, nil
}

func (r *MemoryPostbackRepo) ReleaseClaim(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if postback, ok := r.postbacks[id]; ok {
		postback.ClaimedUntil = nil
	}
	return nil
}

func (r *MemoryPostbackRepo) collect(match func(*domain.Postback) bool) []domain.Postback {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Postback
	for _, postback := range r.postbacks {
		if match(postback) {
			out = append(out, *postback.Clone())
		}
	}
	return out
}

func capSlice(postbacks []domain.Postback, limit int) []domain.Postback {
	if limit > 0 && len(postbacks) > limit {
		return postbacks[:limit]
	}
	return postbacks
}

// MemoryAttemptLogRepo is the in-memory attempt audit store.
type MemoryAttemptLogRepo struct {
	mu       sync.Mutex
	attempts map[string][]domain.DeliveryAttempt
}

var _ AttemptLogRepository = (*MemoryAttemptLogRepo)(nil)

func NewMemoryAttemptLogRepo() *MemoryAttemptLogRepo {
	return &MemoryAttemptLogRepo{
		attempts: make(map[string][]domain.DeliveryAttempt),
	}
}

func (r *MemoryAttemptLogRepo) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	if attempt == nil {
		return domain.ErrPersistence
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[attempt.PostbackID] = append(r.attempts[attempt.PostbackID], *attempt)
	return nil
}

func (r *MemoryAttemptLogRepo) GetByPostbackID(ctx context.Context, postbackID string) ([]domain.DeliveryAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempts := make([]domain.DeliveryAttempt, len(r.attempts[postbackID]))
	copy(attempts, r.attempts[postbackID])
	sort.Slice(attempts, func(i, j int) bool {
		return attempts[i].AttemptNumber < attempts[j].AttemptNumber
	})
	return attempts, nil
}
