package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusError     Status = "error"
)

// Entry is the permanent record of one partner event. At most one row
// exists per EventID and rows are never updated.
type Entry struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	EventID      string        `gorm:"not null;uniqueIndex" json:"event_id"`
	OrderID      string        `gorm:"not null" json:"order_id"`
	DisplayID    string        `json:"display_id"`
	CredentialID snowflake.ID  `gorm:"not null;index" json:"credential_id"`
	RequestID    *snowflake.ID `json:"request_id,omitempty"`
	EventCode    string        `gorm:"not null" json:"event_code"`
	Status       Status        `gorm:"not null" json:"status"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
}

func (Entry) TableName() string {
	return "processed_events"
}
