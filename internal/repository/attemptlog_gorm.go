package repository

import (
	"context"
	"fmt"

	"github.com/trackforge/postback-engine/internal/domain"
	"gorm.io/gorm"
)

type GormAttemptLogRepo struct {
	db *gorm.DB
}

var _ AttemptLogRepository = (*GormAttemptLogRepo)(nil)

func NewGormAttemptLogRepo(db *gorm.DB) *GormAttemptLogRepo {
	return &GormAttemptLogRepo{db: db}
}

func (r *GormAttemptLogRepo) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	model := attemptModelFromDomain(attempt)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (r *GormAttemptLogRepo) GetByPostbackID(ctx context.Context, postbackID string) ([]domain.DeliveryAttempt, error) {
	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("postback_id = ?", postbackID).
		Order("attempt_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}
	return attempts, nil
}
