package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trackforge/postback-engine/internal/domain"
	"github.com/trackforge/postback-engine/internal/observability"
	"github.com/trackforge/postback-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// PostbackService owns the creation flow and read-side queries. Delivery
// itself is the Dispatcher's job.
type PostbackService struct {
	postbacks   repository.PostbackRepository
	attempts    repository.AttemptLogRepository
	conversions domain.ConversionLookup
	logger      *zap.Logger
	now         func() time.Time
}

func NewPostbackService(
	postbacks repository.PostbackRepository,
	attempts repository.AttemptLogRepository,
	conversions domain.ConversionLookup,
	logger *zap.Logger,
) (*PostbackService, error) {
	if postbacks == nil {
		return nil, fmt.Errorf("postback repository is required")
	}
	if conversions == nil {
		return nil, fmt.Errorf("conversion lookup is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PostbackService{
		postbacks:   postbacks,
		attempts:    attempts,
		conversions: conversions,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Create validates the configuration, resolves the conversion's attribution
// fields, builds the final URL, and persists a PENDING postback. Every
// rejection happens before anything is persisted.
func (s *PostbackService) Create(ctx context.Context, conversionID string, rawConfig map[string]any) (*domain.Postback, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	conversionID = strings.TrimSpace(conversionID)
	if conversionID == "" {
		return nil, fmt.Errorf("%w: conversion id is required", domain.ErrValidation)
	}

	cfg, err := domain.ParsePostbackConfig(rawConfig)
	if err != nil {
		return nil, err
	}

	conversion, err := s.conversions.GetByID(ctx, conversionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conversion %q: %w", conversionID, err)
	}

	finalURL, err := domain.BuildPostbackURL(cfg.URL, *conversion)
	if err != nil {
		return nil, err
	}

	postback := domain.NewPostback(conversionID, finalURL, cfg, s.now().UTC())
	postback.ID = uuid.NewString()

	if err := s.postbacks.Save(ctx, postback); err != nil {
		return nil, err
	}

	observability.WithContextLogger(s.logger, ctx).Info("postback created",
		zap.String("postbackId", postback.ID),
		zap.String("conversionId", conversionID),
		zap.String("method", postback.Method.String()),
		zap.Int("maxAttempts", postback.MaxAttempts),
	)

	return postback, nil
}

func (s *PostbackService) GetByID(ctx context.Context, id string) (*domain.Postback, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: postback id is required", domain.ErrValidation)
	}
	return s.postbacks.GetByID(ctx, strings.TrimSpace(id))
}

func (s *PostbackService) GetByConversionID(ctx context.Context, conversionID string) ([]domain.Postback, error) {
	if strings.TrimSpace(conversionID) == "" {
		return nil, fmt.Errorf("%w: conversion id is required", domain.ErrValidation)
	}
	return s.postbacks.GetByConversionID(ctx, strings.TrimSpace(conversionID))
}

func (s *PostbackService) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Postback, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, status)
	}
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.postbacks.GetByStatus(ctx, status, limit)
}

func (s *PostbackService) GetAttempts(ctx context.Context, postbackID string) ([]domain.DeliveryAttempt, error) {
	if strings.TrimSpace(postbackID) == "" {
		return nil, fmt.Errorf("%w: postback id is required", domain.ErrValidation)
	}
	if s.attempts == nil {
		return nil, nil
	}
	return s.attempts.GetByPostbackID(ctx, strings.TrimSpace(postbackID))
}

// OverrideStatus is the administrative escape hatch; normal transitions go
// through RecordAttempt and Save.
func (s *PostbackService) OverrideStatus(ctx context.Context, id string, status domain.Status) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: postback id is required", domain.ErrValidation)
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", domain.ErrValidation, status)
	}

	if err := s.postbacks.UpdateStatus(ctx, strings.TrimSpace(id), status); err != nil {
		return err
	}

	s.logger.Warn("postback status overridden",
		zap.String("postbackId", id),
		zap.String("status", status.String()),
	)
	return nil
}
