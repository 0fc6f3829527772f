package domain

import (
	"encoding/json"
	"time"
)

// Event is one order lifecycle transition returned by the polling endpoint.
type Event struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"orderId"`
	Code       string    `json:"code"`
	FullCode   string    `json:"fullCode"`
	MerchantID string    `json:"merchantId,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// Matches reports whether the event carries one of the given codes, either
// in short (CFM) or long (CONFIRMED) form.
func (e Event) Matches(codes ...string) bool {
	for _, c := range codes {
		if c == "" {
			continue
		}
		if e.Code == c || e.FullCode == c {
			return true
		}
	}
	return false
}

// Token is an access token issued by the partner auth endpoint.
type Token struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"type,omitempty"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// Credentials are the client-credentials pair of one partner account.
type Credentials struct {
	CredentialID string
	ClientID     string
	ClientSecret string
}

// Order is the subset of the order detail payload the worker reads.
// Raw keeps the full document for auditing.
type Order struct {
	ID        string        `json:"id"`
	DisplayID string        `json:"displayId"`
	OrderType string        `json:"orderType,omitempty"`
	CreatedAt string        `json:"createdAt,omitempty"`
	Customer  OrderCustomer `json:"customer"`
	Delivery  OrderDelivery `json:"delivery"`
	Total     OrderTotal    `json:"total"`

	Raw json.RawMessage `json:"-"`
}

type OrderCustomer struct {
	ID    string     `json:"id,omitempty"`
	Name  string     `json:"name"`
	Phone OrderPhone `json:"phone"`
}

type OrderPhone struct {
	Number       string `json:"number"`
	Localizer    string `json:"localizer,omitempty"`
	LocalizerExp string `json:"localizerExpiration,omitempty"`
}

type OrderDelivery struct {
	Mode            string       `json:"mode,omitempty"`
	DeliveredBy     string       `json:"deliveredBy,omitempty"`
	DeliveryAddress OrderAddress `json:"deliveryAddress"`
}

type OrderAddress struct {
	StreetName       string            `json:"streetName,omitempty"`
	StreetNumber     string            `json:"streetNumber,omitempty"`
	FormattedAddress string            `json:"formattedAddress,omitempty"`
	Neighborhood     string            `json:"neighborhood,omitempty"`
	Complement       string            `json:"complement,omitempty"`
	City             string            `json:"city,omitempty"`
	State            string            `json:"state,omitempty"`
	PostalCode       string            `json:"postalCode,omitempty"`
	Coordinates      *OrderCoordinates `json:"coordinates,omitempty"`
}

type OrderCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type OrderTotal struct {
	OrderAmount float64 `json:"orderAmount,omitempty"`
}

// Address renders the delivery address as a single line, preferring the
// partner's own formatting.
func (a OrderAddress) Address() string {
	if a.FormattedAddress != "" {
		return a.FormattedAddress
	}
	out := a.StreetName
	if a.StreetNumber != "" {
		out += ", " + a.StreetNumber
	}
	if a.Neighborhood != "" {
		out += " - " + a.Neighborhood
	}
	if a.City != "" {
		out += ", " + a.City
	}
	return out
}
