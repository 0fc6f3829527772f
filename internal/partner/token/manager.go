package token

import (
	"context"
	"time"

	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/partner/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultSafetyMargin = 60 * time.Second

type Params struct {
	fx.In

	Client  domain.Client
	Store   Store
	Clock   clock.Clock
	Partner *config.PartnerConfigHolder `optional:"true"`
	Log     *zap.Logger
}

// Manager hands out bearer tokens per credential, authenticating only when
// the cached entry is missing or expired.
type Manager struct {
	client  domain.Client
	store   Store
	clock   clock.Clock
	partner *config.PartnerConfigHolder
	log     *zap.Logger
	group   singleflight.Group
}

func New(p Params) *Manager {
	return &Manager{
		client:  p.Client,
		store:   p.Store,
		clock:   p.Clock,
		partner: p.Partner,
		log:     p.Log.Named("partner.token"),
	}
}

func (m *Manager) GetValidToken(ctx context.Context, creds domain.Credentials) (string, error) {
	if entry, ok, err := m.store.Get(ctx, creds.CredentialID); err != nil {
		m.log.Warn("partner.token.cache_read_failed", zap.String("credential_id", creds.CredentialID), zap.Error(err))
	} else if ok && m.clock.Now().Before(entry.ExpiresAt) {
		return entry.Token, nil
	}

	// Concurrent callers for one credential share a single token exchange.
	v, err, _ := m.group.Do(creds.CredentialID, func() (any, error) {
		if entry, ok, err := m.store.Get(ctx, creds.CredentialID); err == nil && ok && m.clock.Now().Before(entry.ExpiresAt) {
			return entry.Token, nil
		}
		return m.authenticate(ctx, creds)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) ClearToken(ctx context.Context, credentialID string) error {
	m.log.Debug("partner.token.cleared", zap.String("credential_id", credentialID))
	return m.store.Delete(ctx, credentialID)
}

func (m *Manager) authenticate(ctx context.Context, creds domain.Credentials) (string, error) {
	issuedAt := m.clock.Now()
	tok, err := m.client.Authenticate(ctx, creds)
	if err != nil {
		m.log.Warn("partner.token.authenticate_failed", zap.String("credential_id", creds.CredentialID), zap.Error(err))
		return "", err
	}

	expiresAt := issuedAt.Add(time.Duration(tok.ExpiresIn)*time.Second - m.safetyMargin())
	if err := m.store.Set(ctx, creds.CredentialID, Entry{Token: tok.AccessToken, ExpiresAt: expiresAt}); err != nil {
		m.log.Warn("partner.token.cache_write_failed", zap.String("credential_id", creds.CredentialID), zap.Error(err))
	}
	m.log.Info("partner.token.issued",
		zap.String("credential_id", creds.CredentialID),
		zap.Time("expires_at", expiresAt),
	)
	return tok.AccessToken, nil
}

func (m *Manager) safetyMargin() time.Duration {
	if m.partner == nil {
		return defaultSafetyMargin
	}
	return time.Duration(m.partner.Get().TokenSafetyMargin) * time.Second
}
