package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	deliveryjobdomain "github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	partnerdomain "github.com/smallbiznis/orderbridge/internal/partner/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"auth", &partnerdomain.AuthError{StatusCode: 401}, ReasonAuth},
		{"wrapped auth", fmt.Errorf("poll: %w", &partnerdomain.AuthError{StatusCode: 401}), ReasonAuth},
		{"api", &partnerdomain.APIRequestError{Op: "poll", StatusCode: 500}, ReasonAPI},
		{"invalid order", fmt.Errorf("%w: no coords", partnerdomain.ErrInvalidOrder), ReasonAPI},
		{"network", &partnerdomain.TransientNetworkError{Op: "poll", Err: context.DeadlineExceeded}, ReasonNetwork},
		{"deadline", context.DeadlineExceeded, ReasonNetwork},
		{"configuration", &partnerdomain.ConfigurationError{Field: "pickup_address"}, ReasonConfiguration},
		{"category", fmt.Errorf("%w: 1", deliveryjobdomain.ErrCategoryNotFound), ReasonConfiguration},
		{"db", &pgconn.PgError{Code: "08006"}, ReasonDB},
		{"unknown", errors.New("boom"), ReasonUnknown},
		{"nil", nil, ReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestStageError(t *testing.T) {
	inner := &partnerdomain.APIRequestError{Op: "poll", StatusCode: 503}
	err := fmt.Errorf("sync: %w", &StageError{Stage: StageFetching, Err: inner})

	assert.Equal(t, StageFetching, StageOf(err))
	assert.Equal(t, ReasonAPI, Classify(err))
	assert.Equal(t, Stage(""), StageOf(errors.New("plain")))
}
