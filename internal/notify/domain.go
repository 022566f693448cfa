package notify

import "time"

// NotificationType enumerates notification categories.
type NotificationType string

const (
	TypePaymentOverdue NotificationType = "payment_overdue"
	TypeServiceUpdate  NotificationType = "service_update"
	TypeGeneral        NotificationType = "general"
)

// Notification is one message shown to a client in the portal.
type Notification struct {
	ID        string           `json:"id"`
	ClientID  string           `json:"client_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
