package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatching(t *testing.T) {
	authErr := fmt.Errorf("poll: %w", &AuthError{StatusCode: 401})
	assert.True(t, IsAuthError(authErr))
	assert.False(t, IsConfigurationError(authErr))

	cfgErr := fmt.Errorf("translate: %w", &ConfigurationError{CredentialID: "1", Field: "pickup_address"})
	assert.True(t, IsConfigurationError(cfgErr))

	netErr := &TransientNetworkError{Op: "poll", Err: context.DeadlineExceeded}
	assert.True(t, errors.Is(netErr, context.DeadlineExceeded))
}

func TestEventMatches(t *testing.T) {
	evt := Event{ID: "evt1", Code: "RTP", FullCode: "READY_TO_PICKUP"}
	assert.True(t, evt.Matches("READY_TO_PICKUP"))
	assert.True(t, evt.Matches("CFM", "RTP"))
	assert.False(t, evt.Matches("DSP", ""))
}

func TestAddressFallsBackToParts(t *testing.T) {
	addr := OrderAddress{StreetName: "Rua Augusta", StreetNumber: "100", Neighborhood: "Consolacao", City: "Sao Paulo"}
	assert.Equal(t, "Rua Augusta, 100 - Consolacao, Sao Paulo", addr.Address())

	addr.FormattedAddress = "Rua Augusta, 100"
	assert.Equal(t, "Rua Augusta, 100", addr.Address())
}
