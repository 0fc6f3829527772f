package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// FindCandidates applies the radius filter then allocation precedence:
	// a company with active allocations only reaches its allocated drivers;
	// otherwise drivers allocated to another company are excluded.
	FindCandidates(ctx context.Context, companyID snowflake.ID, lat, lng, radiusKm float64) ([]Candidate, error)
}

var ErrInvalidRadius = errors.New("invalid_radius")
