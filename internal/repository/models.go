package repository

import (
	"encoding/json"
	"time"

	"github.com/trackforge/postback-engine/internal/domain"
)

// PostbackModel is the persistence model for the postbacks table.
type PostbackModel struct {
	ID            string        `gorm:"type:uuid;primaryKey"`
	ConversionID  string        `gorm:"type:varchar(64);not null;index:idx_postbacks_conversion_id"`
	URL           string        `gorm:"type:text;not null"`
	Method        domain.Method `gorm:"type:varchar(10);not null"`
	Payload       *string       `gorm:"type:text"`
	Headers       *string       `gorm:"type:text"`
	Status        domain.Status `gorm:"type:varchar(20);not null"`
	AttemptCount  int           `gorm:"not null;default:0"`
	MaxAttempts   int           `gorm:"not null;default:3"`
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time
	ResponseCode  *int    `gorm:"type:int"`
	ResponseBody  *string `gorm:"type:text"`
	ErrorMessage  *string `gorm:"type:text"`
	ClaimedUntil  *time.Time
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

func (PostbackModel) TableName() string {
	return "postbacks"
}

// DeliveryAttemptModel is the persistence model for postback_attempts.
type DeliveryAttemptModel struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	PostbackID    string  `gorm:"type:uuid;not null"`
	AttemptNumber int     `gorm:"not null"`
	ResponseCode  *int    `gorm:"type:int"`
	ResponseBody  *string `gorm:"type:text"`
	ErrorMessage  *string `gorm:"type:text"`
	CreatedAt     time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "postback_attempts"
}

func postbackModelFromDomain(p *domain.Postback) *PostbackModel {
	if p == nil {
		return nil
	}

	return &PostbackModel{
		ID:            p.ID,
		ConversionID:  p.ConversionID,
		URL:           p.URL,
		Method:        p.Method,
		Payload:       mapToJSON(p.Payload),
		Headers:       mapToJSON(p.Headers),
		Status:        p.Status,
		AttemptCount:  p.AttemptCount,
		MaxAttempts:   p.MaxAttempts,
		LastAttemptAt: p.LastAttemptAt,
		NextAttemptAt: p.NextAttemptAt,
		ResponseCode:  p.ResponseCode,
		ResponseBody:  optionalString(p.ResponseBody),
		ErrorMessage:  optionalString(p.ErrorMessage),
		ClaimedUntil:  p.ClaimedUntil,
		CreatedAt:     p.CreatedAt,
		CompletedAt:   p.CompletedAt,
	}
}

func postbackModelToDomain(m *PostbackModel) *domain.Postback {
	if m == nil {
		return nil
	}

	return &domain.Postback{
		ID:            m.ID,
		ConversionID:  m.ConversionID,
		URL:           m.URL,
		Method:        m.Method,
		Payload:       jsonToMap(m.Payload),
		Headers:       jsonToMap(m.Headers),
		Status:        m.Status,
		AttemptCount:  m.AttemptCount,
		MaxAttempts:   m.MaxAttempts,
		LastAttemptAt: m.LastAttemptAt,
		NextAttemptAt: m.NextAttemptAt,
		ResponseCode:  m.ResponseCode,
		ResponseBody:  stringValue(m.ResponseBody),
		ErrorMessage:  stringValue(m.ErrorMessage),
		ClaimedUntil:  m.ClaimedUntil,
		CreatedAt:     m.CreatedAt,
		CompletedAt:   m.CompletedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:            a.ID,
		PostbackID:    a.PostbackID,
		AttemptNumber: a.AttemptNumber,
		ResponseCode:  a.ResponseCode,
		ResponseBody:  a.ResponseBody,
		ErrorMessage:  a.ErrorMessage,
		CreatedAt:     a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:            m.ID,
		PostbackID:    m.PostbackID,
		AttemptNumber: m.AttemptNumber,
		ResponseCode:  m.ResponseCode,
		ResponseBody:  m.ResponseBody,
		ErrorMessage:  m.ErrorMessage,
		CreatedAt:     m.CreatedAt,
	}
}

// Payload and header columns are written only by this service, so decode
// failures are treated as an empty map instead of surfacing an error.
func mapToJSON(m map[string]string) *string {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	encoded := string(raw)
	return &encoded
}

func jsonToMap(raw *string) map[string]string {
	if raw == nil || *raw == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(*raw), &m); err != nil {
		return nil
	}
	return m
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
