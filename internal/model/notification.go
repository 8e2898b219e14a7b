package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	NotificationPostStatusChange = "post_status_change"
	NotificationNewComments      = "new_comments"
)

type Notification struct {
	ID          uint64            `gorm:"primaryKey"`
	RecipientID uint64            `gorm:"not null;index"`
	Type        string            `gorm:"size:64;not null;index"`
	Params      datatypes.JSONMap
	ReadAt      *time.Time
	CreatedAt   time.Time
}

// EventOutbox holds domain events until the relayer delivers them.
type EventOutbox struct {
	ID          uint64         `gorm:"primaryKey"`
	EventType   string         `gorm:"size:64;not null"`
	AggregateID uint64         `gorm:"not null"`
	Payload     datatypes.JSON `gorm:"not null"`
	Status      int8           `gorm:"not null;default:0;index"`
	Retry       int            `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (EventOutbox) TableName() string { return "event_outbox" }

const (
	EventPostCommentCreate = "post_comment_create"
	EventPostOpen          = "post_open"
)
