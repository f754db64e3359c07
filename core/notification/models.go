package notification

import "time"

type Type string

const (
	TypeApplicationSubmitted Type = "APPLICATION_SUBMITTED"
	TypeApplicationApproved  Type = "APPLICATION_APPROVED"
	TypeApplicationRejected  Type = "APPLICATION_REJECTED"
	TypePaymentReceived      Type = "PAYMENT_RECEIVED"
	TypePaymentDue           Type = "PAYMENT_DUE"
	TypeGeneral              Type = "GENERAL"
)

type Notification struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ApplicationID string    `json:"application_id,omitempty"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Type          Type      `json:"type"`
	IsRead        bool      `json:"is_read"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewNotification is what the other services provide to notify a user.
type NewNotification struct {
	UserID        string
	ApplicationID string
	Title         string
	Message       string
	Type          Type
}
