package domain

import "time"

// DeliveryAttempt is the audit record for a single delivery attempt. The
// Postback row remains the authority on delivery state; attempts are
// supplemental history.
type DeliveryAttempt struct {
	ID            string
	PostbackID    string
	AttemptNumber int
	ResponseCode  *int
	ResponseBody  *string
	ErrorMessage  *string
	CreatedAt     time.Time
}
