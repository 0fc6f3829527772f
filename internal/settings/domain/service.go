package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Dispatch returns the current dispatch settings with defaults applied
	// for missing or malformed values.
	Dispatch(ctx context.Context) (Dispatch, error)
	Set(ctx context.Context, key, value string) error
}

var ErrInvalidKey = errors.New("invalid_setting_key")
