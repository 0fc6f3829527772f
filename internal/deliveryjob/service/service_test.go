package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	credentialdomain "github.com/smallbiznis/orderbridge/internal/credential/domain"
	"github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	"github.com/smallbiznis/orderbridge/internal/deliveryjob/repository"
	partnerdomain "github.com/smallbiznis/orderbridge/internal/partner/domain"
	settingsdomain "github.com/smallbiznis/orderbridge/internal/settings/domain"
	"github.com/smallbiznis/orderbridge/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Mocks --

type partnerMock struct {
	mock.Mock
}

func (m *partnerMock) Authenticate(ctx context.Context, creds partnerdomain.Credentials) (partnerdomain.Token, error) {
	args := m.Called(ctx, creds)
	return args.Get(0).(partnerdomain.Token), args.Error(1)
}

func (m *partnerMock) Poll(ctx context.Context, merchantID, token string, types []string) ([]partnerdomain.Event, error) {
	args := m.Called(ctx, merchantID, token, types)
	return args.Get(0).([]partnerdomain.Event), args.Error(1)
}

func (m *partnerMock) Acknowledge(ctx context.Context, token string, eventIDs []string) error {
	return m.Called(ctx, token, eventIDs).Error(0)
}

func (m *partnerMock) GetOrderDetails(ctx context.Context, token, orderID string) (*partnerdomain.Order, error) {
	args := m.Called(ctx, token, orderID)
	res := args.Get(0)
	if res == nil {
		return nil, args.Error(1)
	}
	return res.(*partnerdomain.Order), args.Error(1)
}

func (m *partnerMock) SendStatus(ctx context.Context, token, orderID, action string) error {
	return m.Called(ctx, token, orderID, action).Error(0)
}

type tokenMock struct {
	mock.Mock
}

func (m *tokenMock) GetValidToken(ctx context.Context, creds partnerdomain.Credentials) (string, error) {
	args := m.Called(ctx, creds)
	return args.String(0), args.Error(1)
}

func (m *tokenMock) ClearToken(ctx context.Context, credentialID string) error {
	return m.Called(ctx, credentialID).Error(0)
}

type settingsStub struct {
	dispatch settingsdomain.Dispatch
}

func (s settingsStub) Dispatch(context.Context) (settingsdomain.Dispatch, error) {
	return s.dispatch, nil
}

func (s settingsStub) Set(context.Context, string, string) error { return nil }

// -- Fixtures --

var pickup = geo.Point{Lat: -23.5613, Lng: -46.6565}

type fixture struct {
	svc     domain.Service
	db      *gorm.DB
	partner *partnerMock
	tokens  *tokenMock
	cred    credentialdomain.Credential
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Job{}, &domain.Place{}, &domain.Bill{}, &domain.Category{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	categoryID := snowflake.ID(500)
	require.NoError(t, db.Create(&domain.Category{ID: categoryID, Name: "moto", BasePrice: 1000, PricePerKm: 300, IsActive: true}).Error)

	lat, lng := pickup.Lat, pickup.Lng
	cred := credentialdomain.Credential{
		ID:                     7,
		CompanyID:              70,
		MerchantID:             "m-1",
		ClientID:               "cid",
		ClientSecret:           "secret",
		IsActive:               true,
		TriggerOnReadyToPickup: true,
		PickupAddress:          "Av. Paulista, 1000",
		PickupLatitude:         &lat,
		PickupLongitude:        &lng,
		DefaultCategoryID:      &categoryID,
	}

	partner := &partnerMock{}
	tokens := &tokenMock{}
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewFakeClock(time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)),
		Repo:     repository.Provide(),
		Partner:  partner,
		Tokens:   tokens,
		Settings: settingsStub{dispatch: settingsdomain.DefaultDispatch()},
		Config:   config.NewStaticPartnerConfigHolder(config.DefaultPartnerConfig()),
	})
	return &fixture{svc: svc, db: db, partner: partner, tokens: tokens, cred: cred}
}

func orderAt(p geo.Point) *partnerdomain.Order {
	return &partnerdomain.Order{
		ID:        "o1",
		DisplayID: "4821",
		Customer:  partnerdomain.OrderCustomer{Name: " Ana ", Phone: partnerdomain.OrderPhone{Number: "11 5555"}},
		Delivery: partnerdomain.OrderDelivery{DeliveryAddress: partnerdomain.OrderAddress{
			FormattedAddress: "Rua Augusta, 100",
			Coordinates:      &partnerdomain.OrderCoordinates{Latitude: p.Lat, Longitude: p.Lng},
		}},
		Raw: []byte(`{"id":"o1"}`),
	}
}

var evt1 = partnerdomain.Event{ID: "evt1", OrderID: "o1", Code: "RTP", FullCode: "READY_TO_PICKUP"}

// -- Tests --

func TestTranslateCreatesJobPlaceAndBill(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	drop := geo.OffsetNorth(pickup, 5)

	f.tokens.On("GetValidToken", mock.Anything, f.cred.Credentials()).Return("tok", nil)
	f.partner.On("GetOrderDetails", mock.Anything, "tok", "o1").Return(orderAt(drop), nil)

	var hookCalled bool
	job, err := f.svc.Translate(ctx, f.cred, evt1, func(tx *gorm.DB, job *domain.Job) error {
		hookCalled = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, hookCalled)

	assert.True(t, strings.HasPrefix(job.RequestNumber, "RQ-"))
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, "Ana", job.CustomerName)
	assert.Equal(t, "4821", job.ExternalDisplayID)
	assert.InDelta(t, 5, job.DistanceKm, 1e-6)
	assert.Equal(t, 10, job.EtaMinutes)

	stored, err := f.svc.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rua Augusta, 100", stored.Place.DropAddress)
	assert.Equal(t, int64(2500), stored.Bill.Total)
	assert.Equal(t, int64(500), stored.Bill.Commission)
	assert.Equal(t, int64(2000), stored.Bill.WorkerPayout)
	assert.Equal(t, "BRL", stored.Bill.Currency)
}

func TestTranslateRollsBackWhenHookFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.tokens.On("GetValidToken", mock.Anything, mock.Anything).Return("tok", nil)
	f.partner.On("GetOrderDetails", mock.Anything, "tok", "o1").Return(orderAt(geo.OffsetNorth(pickup, 2)), nil)

	hookErr := errors.New("ledger conflict")
	_, err := f.svc.Translate(ctx, f.cred, evt1, func(*gorm.DB, *domain.Job) error { return hookErr })
	require.ErrorIs(t, err, hookErr)

	var jobs, places, bills int64
	require.NoError(t, f.db.Model(&domain.Job{}).Count(&jobs).Error)
	require.NoError(t, f.db.Model(&domain.Place{}).Count(&places).Error)
	require.NoError(t, f.db.Model(&domain.Bill{}).Count(&bills).Error)
	assert.Zero(t, jobs+places+bills)
}

func TestTranslateConfigurationErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	missingAddress := f.cred
	missingAddress.PickupAddress = ""
	_, err := f.svc.Translate(ctx, missingAddress, evt1, nil)
	var cfgErr *partnerdomain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "pickup_address", cfgErr.Field)

	missingCoords := f.cred
	missingCoords.PickupLongitude = nil
	_, err = f.svc.Translate(ctx, missingCoords, evt1, nil)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "pickup_coordinates", cfgErr.Field)

	missingCategory := f.cred
	missingCategory.DefaultCategoryID = nil
	_, err = f.svc.Translate(ctx, missingCategory, evt1, nil)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "default_category_id", cfgErr.Field)

	f.partner.AssertNotCalled(t, "GetOrderDetails", mock.Anything, mock.Anything, mock.Anything)
}

func TestTranslateRejectsOrderWithoutCoordinates(t *testing.T) {
	f := setup(t)
	order := orderAt(pickup)
	order.Delivery.DeliveryAddress.Coordinates = nil

	f.tokens.On("GetValidToken", mock.Anything, mock.Anything).Return("tok", nil)
	f.partner.On("GetOrderDetails", mock.Anything, "tok", "o1").Return(order, nil)

	_, err := f.svc.Translate(context.Background(), f.cred, evt1, nil)
	assert.ErrorIs(t, err, partnerdomain.ErrInvalidOrder)
}

func TestTranslateClearsTokenOnUnauthorized(t *testing.T) {
	f := setup(t)

	f.tokens.On("GetValidToken", mock.Anything, mock.Anything).Return("stale", nil)
	f.tokens.On("ClearToken", mock.Anything, "7").Return(nil)
	f.partner.On("GetOrderDetails", mock.Anything, "stale", "o1").Return(nil, &partnerdomain.AuthError{StatusCode: 401})

	_, err := f.svc.Translate(context.Background(), f.cred, evt1, nil)
	assert.True(t, partnerdomain.IsAuthError(err))
	f.tokens.AssertCalled(t, "ClearToken", mock.Anything, "7")
}
