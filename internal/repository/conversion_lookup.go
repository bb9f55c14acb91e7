package repository

import (
	"context"
	"errors"

	"github.com/trackforge/postback-engine/internal/domain"
	"gorm.io/gorm"
)

// ConversionModel reads the minimal attribution columns of the externally
// owned conversions table. This service never writes it.
type ConversionModel struct {
	ID             string   `gorm:"type:uuid;primaryKey"`
	ClickID        string   `gorm:"type:varchar(64)"`
	ConversionType string   `gorm:"type:varchar(32)"`
	OrderID        string   `gorm:"type:varchar(64)"`
	ProductID      string   `gorm:"type:varchar(64)"`
	Revenue        *float64 `gorm:"type:numeric"`
	Currency       *string  `gorm:"type:varchar(8)"`
}

func (ConversionModel) TableName() string {
	return "conversions"
}

type GormConversionLookup struct {
	db *gorm.DB
}

var _ domain.ConversionLookup = (*GormConversionLookup)(nil)

func NewGormConversionLookup(db *gorm.DB) *GormConversionLookup {
	return &GormConversionLookup{db: db}
}

func (r *GormConversionLookup) GetByID(ctx context.Context, conversionID string) (*domain.Conversion, error) {
	var model ConversionModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", conversionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	conv := &domain.Conversion{
		ConversionID:   model.ID,
		ClickID:        model.ClickID,
		ConversionType: model.ConversionType,
		OrderID:        model.OrderID,
		ProductID:      model.ProductID,
	}
	if model.Revenue != nil {
		currency := ""
		if model.Currency != nil {
			currency = *model.Currency
		}
		conv.Value = &domain.ConversionValue{
			Revenue:  *model.Revenue,
			Currency: currency,
		}
	}
	return conv, nil
}

// PassthroughConversionLookup synthesizes a conversion carrying only its own
// id. Development stores only; production wiring uses the gorm lookup.
type PassthroughConversionLookup struct{}

var _ domain.ConversionLookup = PassthroughConversionLookup{}

func (PassthroughConversionLookup) GetByID(ctx context.Context, conversionID string) (*domain.Conversion, error) {
	return &domain.Conversion{ConversionID: conversionID}, nil
}
