package domain

import (
	"context"
	"errors"

	credentialdomain "github.com/smallbiznis/orderbridge/internal/credential/domain"
)

// SyncReport counts what one credential pass did. Deferred events had no
// ledger record and were left unacknowledged for redelivery.
type SyncReport struct {
	CredentialID string `json:"credential_id"`
	Polled       int    `json:"polled"`
	Ignored      int    `json:"ignored"`
	Duplicates   int    `json:"duplicates"`
	Created      int    `json:"created"`
	Failed       int    `json:"failed"`
	Offers       int    `json:"offers"`
	Deferred     int    `json:"deferred"`
	Acknowledged bool   `json:"acknowledged"`
}

// TickReport aggregates a pass over every active credential.
type TickReport struct {
	Credentials int          `json:"credentials"`
	Succeeded   int          `json:"succeeded"`
	Failed      int          `json:"failed"`
	Throttled   int          `json:"throttled"`
	Syncs       []SyncReport `json:"syncs"`
}

type Service interface {
	// SyncAll processes every active credential in turn. A failing
	// credential is recorded on its sync fields and does not stop the pass.
	SyncAll(ctx context.Context) (*TickReport, error)
	SyncCredential(ctx context.Context, cred credentialdomain.Credential) (*SyncReport, error)
}

var ErrThrottled = errors.New("partner_throttled")
