package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Result reports what was forwarded to the partner for a status change.
type Result struct {
	Forwarded bool   `json:"forwarded"`
	OrderID   string `json:"order_id,omitempty"`
	Action    string `json:"action,omitempty"`
}

type Service interface {
	// NotifyStatusChange forwards a job lifecycle transition to the partner
	// the job came from. Jobs not created from a partner order are ignored.
	NotifyStatusChange(ctx context.Context, jobID snowflake.ID, status string) (*Result, error)
}

var (
	ErrUnknownStatus = errors.New("unknown_status")
	ErrInvalidJobID  = errors.New("invalid_job_id")
)
