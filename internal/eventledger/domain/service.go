package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// OutcomeRequest describes the ledger entry to append for an event.
type OutcomeRequest struct {
	EventID      string
	OrderID      string
	DisplayID    string
	CredentialID snowflake.ID
	RequestID    *snowflake.ID
	EventCode    string
	Status       Status
	ErrorMessage string
}

type Service interface {
	AlreadyProcessed(ctx context.Context, eventID string) (bool, error)
	// RecordOutcome appends the entry using tx, or the service's own handle
	// when tx is nil. inserted is false when the event was already recorded.
	RecordOutcome(ctx context.Context, tx *gorm.DB, req OutcomeRequest) (inserted bool, err error)
	FindByEventID(ctx context.Context, eventID string) (*Entry, error)
}

var (
	// ErrDuplicateEvent aborts a job transaction whose ledger insert lost
	// the race to another writer. Callers treat it as a skip.
	ErrDuplicateEvent = errors.New("duplicate_event")
	ErrInvalidEventID = errors.New("invalid_event_id")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrNotFound       = errors.New("ledger_entry_not_found")
)
