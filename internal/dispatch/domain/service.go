package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	jobdomain "github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	matchingdomain "github.com/smallbiznis/orderbridge/internal/matching/domain"
)

type Service interface {
	// Dispatch stores a notified offer per candidate expiring after timeout,
	// then sends a single push to every candidate device. Offers are kept
	// when the push fails; the returned error wraps ErrPushFailed.
	Dispatch(ctx context.Context, job *jobdomain.Job, candidates []matchingdomain.Candidate, timeout time.Duration) (*Result, error)
	// ExpireOffers marks notified offers past their expiry as expired.
	ExpireOffers(ctx context.Context, now time.Time) (int64, error)
	ListOffers(ctx context.Context, requestID snowflake.ID) ([]Offer, error)
}

var (
	ErrInvalidJob     = errors.New("invalid_job")
	ErrInvalidTimeout = errors.New("invalid_timeout")
	ErrPushFailed     = errors.New("push_failed")
)
