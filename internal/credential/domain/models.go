package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/config"
	partnerdomain "github.com/smallbiznis/orderbridge/internal/partner/domain"
)

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// Credential links a company to one partner merchant account.
type Credential struct {
	ID                     snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID              snowflake.ID  `gorm:"not null;index" json:"company_id"`
	MerchantID             string        `gorm:"not null" json:"merchant_id"`
	ClientID               string        `gorm:"not null" json:"client_id"`
	ClientSecret           string        `gorm:"not null" json:"-"`
	IsActive               bool          `gorm:"not null" json:"is_active"`
	TriggerOnConfirmed     bool          `gorm:"not null" json:"trigger_on_confirmed"`
	TriggerOnReadyToPickup bool          `gorm:"not null" json:"trigger_on_ready_to_pickup"`
	TriggerOnDispatched    bool          `gorm:"not null" json:"trigger_on_dispatched"`
	PickupAddress          string        `json:"pickup_address"`
	PickupLatitude         *float64      `json:"pickup_latitude,omitempty"`
	PickupLongitude        *float64      `json:"pickup_longitude,omitempty"`
	DefaultCategoryID      *snowflake.ID `json:"default_category_id,omitempty"`
	LastSyncAt             *time.Time    `json:"last_sync_at,omitempty"`
	LastSyncStatus         *string       `json:"last_sync_status,omitempty"`
	LastSyncError          *string       `json:"last_sync_error,omitempty"`
	JobsCreatedCount       int64         `gorm:"not null;default:0" json:"jobs_created_count"`
	CreatedAt              time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time     `gorm:"not null" json:"updated_at"`
}

func (Credential) TableName() string {
	return "partner_credentials"
}

// Credentials returns the client-credentials pair used for token exchange.
func (c Credential) Credentials() partnerdomain.Credentials {
	return partnerdomain.Credentials{
		CredentialID: c.ID.String(),
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
	}
}

// EnabledTriggers lists the trigger names switched on for this credential.
func (c Credential) EnabledTriggers() []string {
	out := make([]string, 0, 3)
	if c.TriggerOnConfirmed {
		out = append(out, config.TriggerConfirmed)
	}
	if c.TriggerOnReadyToPickup {
		out = append(out, config.TriggerReadyToPickup)
	}
	if c.TriggerOnDispatched {
		out = append(out, config.TriggerDispatched)
	}
	return out
}

// HasPickupLocation reports whether both pickup coordinates are set.
func (c Credential) HasPickupLocation() bool {
	return c.PickupLatitude != nil && c.PickupLongitude != nil
}

// SyncResult is the outcome of one credential's pass through a tick.
type SyncResult struct {
	At          time.Time
	Status      SyncStatus
	Error       string
	JobsCreated int
}
