package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a postback.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusRetrying Status = "RETRYING"
	StatusSent     Status = "SENT"
	StatusFailed   Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRetrying, StatusSent, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status allows no further attempts.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Method represents the HTTP method used for delivery.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
	MethodPut  Method = "PUT"
)

func (m Method) String() string { return string(m) }

func (m Method) IsValid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut:
		return true
	}
	return false
}

func ParseMethodFromString(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: unsupported HTTP method %q", ErrValidation, s)
	}
	return m, nil
}

// Postback is the core domain entity: one outbound conversion notification and
// its full attempt history. One row per notification, not per attempt.
type Postback struct {
	ID            string
	ConversionID  string
	URL           string
	Method        Method
	Payload       map[string]string
	Headers       map[string]string
	Status        Status
	AttemptCount  int
	MaxAttempts   int
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time
	ResponseCode  *int
	ResponseBody  string
	ErrorMessage  string
	ClaimedUntil  *time.Time
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// NewPostback builds a PENDING postback that is immediately eligible for
// delivery. The caller assigns the ID and persists it.
func NewPostback(conversionID, url string, cfg PostbackConfig, now time.Time) *Postback {
	next := now
	return &Postback{
		ConversionID:  conversionID,
		URL:           url,
		Method:        cfg.Method,
		Payload:       cfg.Payload,
		Headers:       cfg.Headers,
		Status:        StatusPending,
		AttemptCount:  0,
		MaxAttempts:   cfg.MaxAttempts,
		NextAttemptAt: &next,
		CreatedAt:     now,
	}
}

// RecordAttempt applies the result of one delivery attempt. It is the single
// mutator of postback state: a 2xx response is terminal success, an exhausted
// attempt budget is terminal failure, anything else schedules a retry with
// exponential backoff. Calling it on a terminal postback is a no-op.
func (p *Postback) RecordAttempt(responseCode *int, responseBody, errorMessage string, now time.Time) {
	if p.Status.IsTerminal() {
		return
	}

	p.AttemptCount++
	attemptedAt := now
	p.LastAttemptAt = &attemptedAt
	p.ResponseCode = responseCode
	p.ResponseBody = responseBody
	p.ErrorMessage = errorMessage

	switch {
	case responseCode != nil && *responseCode >= 200 && *responseCode < 300:
		p.Status = StatusSent
		p.CompletedAt = &attemptedAt
		p.NextAttemptAt = nil
	case p.AttemptCount >= p.MaxAttempts:
		p.Status = StatusFailed
		p.CompletedAt = &attemptedAt
		p.NextAttemptAt = nil
	default:
		p.Status = StatusRetrying
		next := now.Add(backoffDelay(p.AttemptCount))
		p.NextAttemptAt = &next
	}
}

// backoffDelay returns the wait after the n-th failed attempt: 1, 2, 4, 8, ... minutes.
func backoffDelay(attemptCount int) time.Duration {
	if attemptCount < 1 {
		attemptCount = 1
	}
	return time.Duration(1<<(attemptCount-1)) * time.Minute
}

// IsDueNow reports whether the postback is eligible for a delivery attempt.
func (p *Postback) IsDueNow(now time.Time) bool {
	if p.Status != StatusPending && p.Status != StatusRetrying {
		return false
	}
	if p.NextAttemptAt == nil {
		return false
	}
	return !now.Before(*p.NextAttemptAt)
}

// Clone returns a deep copy, used by stores that hand out working copies.
func (p *Postback) Clone() *Postback {
	if p == nil {
		return nil
	}

	clone := *p
	clone.Payload = cloneStringMap(p.Payload)
	clone.Headers = cloneStringMap(p.Headers)
	clone.LastAttemptAt = cloneTime(p.LastAttemptAt)
	clone.NextAttemptAt = cloneTime(p.NextAttemptAt)
	clone.ClaimedUntil = cloneTime(p.ClaimedUntil)
	clone.CompletedAt = cloneTime(p.CompletedAt)
	if p.ResponseCode != nil {
		code := *p.ResponseCode
		clone.ResponseCode = &code
	}
	return &clone
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := *t
	return &value
}
