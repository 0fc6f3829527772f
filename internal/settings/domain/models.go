package domain

import "time"

const (
	KeyDriverSearchRadius        = "driverSearchRadius"
	KeyDriverAcceptanceTimeout   = "driverAcceptanceTimeout"
	KeyAdminCommissionPercentage = "adminCommissionPercentage"
	KeyCurrency                  = "currency"
)

const (
	DefaultDriverSearchRadiusKm  = 10.0
	DefaultAcceptanceTimeoutSecs = 30
	DefaultCommissionPercentage  = 20.0
	DefaultCurrency              = "BRL"
)

// Setting is one system-wide key/value pair maintained by the admin dashboard.
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Dispatch holds the typed settings the ingestion pipeline reads per event.
type Dispatch struct {
	SearchRadiusKm       float64
	AcceptanceTimeout    time.Duration
	CommissionPercentage float64
	Currency             string
}

func DefaultDispatch() Dispatch {
	return Dispatch{
		SearchRadiusKm:       DefaultDriverSearchRadiusKm,
		AcceptanceTimeout:    DefaultAcceptanceTimeoutSecs * time.Second,
		CommissionPercentage: DefaultCommissionPercentage,
		Currency:             DefaultCurrency,
	}
}
