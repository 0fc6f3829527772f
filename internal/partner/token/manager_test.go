package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/partner/client"
	"github.com/smallbiznis/orderbridge/internal/partner/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type authServer struct {
	calls  atomic.Int32
	status int
	delay  time.Duration
}

func (a *authServer) handler(w http.ResponseWriter, r *http.Request) {
	n := a.calls.Add(1)
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.status != 0 {
		w.WriteHeader(a.status)
		_, _ = w.Write([]byte("bad credentials"))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"accessToken": "tok-" + string(rune('0'+n)),
		"expiresIn":   3600,
	})
}

func newManager(t *testing.T, auth *authServer, clk clock.Clock) *Manager {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(auth.handler))
	t.Cleanup(srv.Close)

	return New(Params{
		Client:  client.NewWithHTTPClient(srv.URL, srv.Client(), nil, nil),
		Store:   NewMemoryStore(),
		Clock:   clk,
		Partner: config.NewStaticPartnerConfigHolder(config.DefaultPartnerConfig()),
		Log:     zap.NewNop(),
	})
}

var creds = domain.Credentials{CredentialID: "42", ClientID: "cid", ClientSecret: "secret"}

func TestGetValidTokenReusesCachedToken(t *testing.T) {
	auth := &authServer{}
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	m := newManager(t, auth, clk)

	first, err := m.GetValidToken(context.Background(), creds)
	require.NoError(t, err)
	clk.Advance(30 * time.Minute)
	second, err := m.GetValidToken(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), auth.calls.Load())
}

func TestGetValidTokenRefreshesAfterExpiry(t *testing.T) {
	auth := &authServer{}
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	m := newManager(t, auth, clk)

	first, err := m.GetValidToken(context.Background(), creds)
	require.NoError(t, err)

	// The entry expires 60s before the partner's own expiry.
	clk.Advance(time.Hour - 60*time.Second)
	second, err := m.GetValidToken(context.Background(), creds)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), auth.calls.Load())
}

func TestClearTokenForcesReauthentication(t *testing.T) {
	auth := &authServer{}
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	m := newManager(t, auth, clk)

	_, err := m.GetValidToken(context.Background(), creds)
	require.NoError(t, err)
	require.NoError(t, m.ClearToken(context.Background(), creds.CredentialID))
	_, err = m.GetValidToken(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, int32(2), auth.calls.Load())
}

func TestGetValidTokenPropagatesAuthError(t *testing.T) {
	auth := &authServer{status: http.StatusUnauthorized}
	m := newManager(t, auth, clock.NewFakeClock(time.Now()))

	_, err := m.GetValidToken(context.Background(), creds)
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, authErr.Authenticating)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)

	_, ok, _ := m.store.Get(context.Background(), creds.CredentialID)
	assert.False(t, ok)
}

func TestConcurrentCallersShareOneExchange(t *testing.T) {
	auth := &authServer{delay: 50 * time.Millisecond}
	m := newManager(t, auth, clock.NewFakeClock(time.Now()))

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.GetValidToken(context.Background(), creds)
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), auth.calls.Load())
	for _, tok := range tokens {
		assert.Equal(t, tokens[0], tok)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	entry := Entry{Token: "abc", ExpiresAt: time.Now().Add(time.Minute)}

	require.NoError(t, store.Set(ctx, "1", entry))
	got, ok, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", got.Token)

	require.NoError(t, store.Delete(ctx, "1"))
	_, ok, _ = store.Get(ctx, "1")
	assert.False(t, ok)
}
