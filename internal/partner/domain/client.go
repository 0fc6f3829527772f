package domain

import "context"

// Client speaks the partner marketplace protocol. Every call takes an
// already issued bearer token except Authenticate.
type Client interface {
	Authenticate(ctx context.Context, creds Credentials) (Token, error)
	Poll(ctx context.Context, merchantID, token string, types []string) ([]Event, error)
	Acknowledge(ctx context.Context, token string, eventIDs []string) error
	GetOrderDetails(ctx context.Context, token, orderID string) (*Order, error)
	SendStatus(ctx context.Context, token, orderID, action string) error
}

// TokenProvider issues cached bearer tokens per credential.
type TokenProvider interface {
	GetValidToken(ctx context.Context, creds Credentials) (string, error)
	ClearToken(ctx context.Context, credentialID string) error
}
