package domain

import (
	"context"
	"errors"

	deliveryjobdomain "github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	partnerdomain "github.com/smallbiznis/orderbridge/internal/partner/domain"
)

// Stage is the step a credential sync was in when it stopped.
type Stage string

const (
	StageAuthenticating Stage = "authenticating"
	StageFetching       Stage = "fetching"
	StageDeduplicating  Stage = "deduplicating"
	StageTranslating    Stage = "translating"
	StageMatching       Stage = "matching"
	StageDispatching    Stage = "dispatching"
	StageAcknowledging  Stage = "acknowledging"
)

const (
	ReasonAuth          = "auth"
	ReasonAPI           = "api"
	ReasonNetwork       = "network"
	ReasonConfiguration = "configuration"
	ReasonDB            = "db"
	ReasonUnknown       = "unknown"
)

// Classify maps pipeline errors to a low-cardinality reason.
func Classify(err error) string {
	if err == nil {
		return ReasonUnknown
	}

	var (
		authErr *partnerdomain.AuthError
		apiErr  *partnerdomain.APIRequestError
		netErr  *partnerdomain.TransientNetworkError
		cfgErr  *partnerdomain.ConfigurationError
	)
	switch {
	case errors.As(err, &authErr):
		return ReasonAuth
	case errors.As(err, &cfgErr), errors.Is(err, deliveryjobdomain.ErrCategoryNotFound):
		return ReasonConfiguration
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		return ReasonNetwork
	case errors.As(err, &apiErr), errors.Is(err, partnerdomain.ErrInvalidOrder):
		return ReasonAPI
	case metrics.IsDBError(err):
		return ReasonDB
	}
	return ReasonUnknown
}

// StageError tags an error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage recorded on err, or "" when none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
