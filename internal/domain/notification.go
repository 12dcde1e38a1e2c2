package domain

import "time"

// Actor identifies who triggered an operation. Staff actors suppress the
// customer-facing notification of their own actions.
type Actor struct {
	ID    string
	Staff bool
}

const RoleStaff = "staff"

type NotificationType string

const (
	NotificationOrderPlaced NotificationType = "order_placed"
	NotificationOrderStatus NotificationType = "order_status"
)

// Notification targets either a single user (UserID set) or every account
// holding a role (Role set). It references an order by id but does not own it.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id,omitempty"`
	Role      string           `json:"role,omitempty"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
