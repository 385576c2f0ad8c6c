package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationKind enumerates in-app notifications.
type NotificationKind string

const (
	NotifyOrderCreated       NotificationKind = "order_created"
	NotifyOrderStatusChanged NotificationKind = "order_status_changed"
	NotifyOrderComment       NotificationKind = "order_comment_added"
)

// Notification is an in-app message for the other party of an order.
// RecipientID is a user id for dentists and a laboratory id for lab recipients.
type Notification struct {
	BaseModel
	ClinicID      string           `gorm:"size:36;index;not null" json:"clinicId"`
	RecipientType ActorType        `gorm:"size:20;index" json:"recipientType"`
	RecipientID   string           `gorm:"size:36;index" json:"recipientId"`
	Kind          NotificationKind `gorm:"size:40" json:"kind"`
	Title         string           `gorm:"size:255" json:"title"`
	Body          string           `gorm:"type:text" json:"body"`
	ReferenceID   string           `gorm:"size:36" json:"referenceId"`
	ReadAt        *time.Time       `json:"readAt"`
}

// OutboxEvent is written in the same transaction as the aggregate change and
// relayed to the message broker afterwards.
type OutboxEvent struct {
	BaseModel
	AggregateType string         `gorm:"size:50;not null" json:"aggregateType"`
	AggregateID   string         `gorm:"size:36;index;not null" json:"aggregateId"`
	EventType     string         `gorm:"size:80;not null" json:"eventType"`
	Payload       datatypes.JSON `json:"payload"`
	ProcessedAt   *time.Time     `gorm:"index" json:"processedAt"`
	PublishedAt   *time.Time     `json:"publishedAt"`
	ErrorMessage  string         `gorm:"type:text" json:"errorMessage,omitempty"`
	RetryCount    int            `gorm:"not null;default:0" json:"retryCount"`
}
