package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trackforge/postback-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormPostbackRepo struct {
	db *gorm.DB
}

var _ PostbackRepository = (*GormPostbackRepo)(nil)

func NewGormPostbackRepo(db *gorm.DB) *GormPostbackRepo {
	return &GormPostbackRepo{db: db}
}

// postbackUpsertColumns lists the columns Save replaces on conflict. The claim
// lease column is deliberately absent: it is owned by Claim and ReleaseClaim,
// and a working copy's snapshot of it is stale by the time Save runs.
var postbackUpsertColumns = []string{
	"conversion_id",
	"url",
	"method",
	"payload",
	"headers",
	"status",
	"attempt_count",
	"max_attempts",
	"last_attempt_at",
	"next_attempt_at",
	"response_code",
	"response_body",
	"error_message",
	"created_at",
	"completed_at",
}

func (r *GormPostbackRepo) Save(ctx context.Context, postback *domain.Postback) error {
	model := postbackModelFromDomain(postback)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(postbackUpsertColumns),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (r *GormPostbackRepo) GetByID(ctx context.Context, id string) (*domain.Postback, error) {
	var model PostbackModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return postbackModelToDomain(&model), nil
}

func (r *GormPostbackRepo) GetByConversionID(ctx context.Context, conversionID string) ([]domain.Postback, error) {
	var models []PostbackModel
	err := r.db.WithContext(ctx).
		Where("conversion_id = ?", conversionID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return modelsToDomain(models), nil
}

func (r *GormPostbackRepo) GetPending(ctx context.Context, limit int) ([]domain.Postback, error) {
	var models []PostbackModel
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return modelsToDomain(models), nil
}

func (r *GormPostbackRepo) GetByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Postback, error) {
	var models []PostbackModel
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return modelsToDomain(models), nil
}

func (r *GormPostbackRepo) GetRetryCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Postback, error) {
	var models []PostbackModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", domain.StatusRetrying, now).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return modelsToDomain(models), nil
}

func (r *GormPostbackRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&PostbackModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Claim takes the lease with a single conditional UPDATE, so two workers
// racing on the same due postback resolve at the database.
func (r *GormPostbackRepo) Claim(ctx context.Context, id string, now, leaseUntil time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&PostbackModel{}).
		Where("id = ? AND (claimed_until IS NULL OR claimed_until <= ?)", id, now).
		Update("claimed_until", leaseUntil)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *GormPostbackRepo) ReleaseClaim(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&PostbackModel{}).
		Where("id = ?", id).
		Update("claimed_until", nil).Error
}

func modelsToDomain(models []PostbackModel) []domain.Postback {
	postbacks := make([]domain.Postback, 0, len(models))
	for i := range models {
		postbacks = append(postbacks, *postbackModelToDomain(&models[i]))
	}
	return postbacks
}
