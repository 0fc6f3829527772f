package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	credentialdomain "github.com/smallbiznis/orderbridge/internal/credential/domain"
	"github.com/smallbiznis/orderbridge/internal/deliveryjob/domain"
	partnerdomain "github.com/smallbiznis/orderbridge/internal/partner/domain"
	settingsdomain "github.com/smallbiznis/orderbridge/internal/settings/domain"
	"github.com/smallbiznis/orderbridge/pkg/geo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Partner  partnerdomain.Client
	Tokens   partnerdomain.TokenProvider
	Settings settingsdomain.Service
	Config   *config.PartnerConfigHolder
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	partner  partnerdomain.Client
	tokens   partnerdomain.TokenProvider
	settings settingsdomain.Service
	config   *config.PartnerConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("deliveryjob.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		partner:  p.Partner,
		tokens:   p.Tokens,
		settings: p.Settings,
		config:   p.Config,
	}
}

// Translate fetches the order behind event and persists it as a pending job.
// The job, its place and bill rows, and whatever afterCreate writes commit in
// one transaction.
func (s *Service) Translate(ctx context.Context, cred credentialdomain.Credential, event partnerdomain.Event, afterCreate domain.AfterCreateFunc) (*domain.Job, error) {
	ctx, span := otel.Tracer("orderbridge/deliveryjob").Start(ctx, "deliveryjob.translate")
	defer span.End()
	span.SetAttributes(attribute.String("event_id", event.ID), attribute.String("order_id", event.OrderID))

	if err := validateCredential(cred); err != nil {
		return nil, err
	}
	pickup := geo.Point{Lat: *cred.PickupLatitude, Lng: *cred.PickupLongitude}

	category, err := s.repo.FindCategory(ctx, s.db, *cred.DefaultCategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, cred.DefaultCategoryID.String())
	}

	order, err := s.fetchOrder(ctx, cred, event.OrderID)
	if err != nil {
		return nil, err
	}
	coords := order.Delivery.DeliveryAddress.Coordinates
	if coords == nil || (coords.Latitude == 0 && coords.Longitude == 0) {
		return nil, fmt.Errorf("%w: order %s has no drop coordinates", partnerdomain.ErrInvalidOrder, event.OrderID)
	}
	drop := geo.Point{Lat: coords.Latitude, Lng: coords.Longitude}

	rates, err := s.settings.Dispatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	distance := geo.Haversine(pickup, drop)
	quote := domain.Price(distance, category.BasePrice, category.PricePerKm, rates.CommissionPercentage)
	now := s.clock.Now()

	metadata := datatypes.JSON(order.Raw)
	if len(metadata) == 0 {
		metadata = datatypes.JSON("{}")
	}

	credID := cred.ID
	job := &domain.Job{
		ID:                s.genID.Generate(),
		RequestNumber:     newRequestNumber(now),
		CompanyID:         cred.CompanyID,
		CredentialID:      &credID,
		CategoryID:        category.ID,
		CustomerName:      strings.TrimSpace(order.Customer.Name),
		CustomerPhone:     strings.TrimSpace(order.Customer.Phone.Number),
		DistanceKm:        distance,
		EtaMinutes:        geo.ETAMinutes(distance, s.config.Get().AverageSpeedKmh),
		Source:            domain.SourcePartner,
		ExternalOrderID:   event.OrderID,
		ExternalDisplayID: order.DisplayID,
		Status:            domain.StatusPending,
		Metadata:          metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
		Place: domain.Place{
			ID:              s.genID.Generate(),
			PickupAddress:   cred.PickupAddress,
			PickupLatitude:  pickup.Lat,
			PickupLongitude: pickup.Lng,
			DropAddress:     order.Delivery.DeliveryAddress.Address(),
			DropLatitude:    drop.Lat,
			DropLongitude:   drop.Lng,
		},
		Bill: domain.Bill{
			ID:             s.genID.Generate(),
			BasePrice:      quote.BasePrice,
			DistancePrice:  quote.DistancePrice,
			Total:          quote.Total,
			Commission:     quote.Commission,
			WorkerPayout:   quote.WorkerPayout,
			CommissionRate: quote.CommissionRate,
			Currency:       rates.Currency,
		},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, job); err != nil {
			return err
		}
		if afterCreate != nil {
			return afterCreate(tx, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deliveryjob.created",
		zap.String("request_id", job.ID.String()),
		zap.String("request_number", job.RequestNumber),
		zap.String("company_id", job.CompanyID.String()),
		zap.String("order_id", job.ExternalOrderID),
		zap.Float64("distance_km", job.DistanceKm),
		zap.Int64("total", job.Bill.Total),
	)
	return job, nil
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*domain.Job, error) {
	job, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// fetchOrder loads the order detail. A 401 drops the cached token so the
// next call re-authenticates.
func (s *Service) fetchOrder(ctx context.Context, cred credentialdomain.Credential, orderID string) (*partnerdomain.Order, error) {
	token, err := s.tokens.GetValidToken(ctx, cred.Credentials())
	if err != nil {
		return nil, err
	}
	order, err := s.partner.GetOrderDetails(ctx, token, orderID)
	if err != nil {
		if partnerdomain.IsAuthError(err) {
			if clearErr := s.tokens.ClearToken(ctx, cred.ID.String()); clearErr != nil {
				s.log.Warn("deliveryjob.token.clear_failed", zap.Error(clearErr))
			}
		}
		return nil, err
	}
	return order, nil
}

func validateCredential(cred credentialdomain.Credential) error {
	switch {
	case strings.TrimSpace(cred.PickupAddress) == "":
		return &partnerdomain.ConfigurationError{CredentialID: cred.ID.String(), Field: "pickup_address"}
	case !cred.HasPickupLocation():
		return &partnerdomain.ConfigurationError{CredentialID: cred.ID.String(), Field: "pickup_coordinates"}
	case cred.DefaultCategoryID == nil || *cred.DefaultCategoryID == 0:
		return &partnerdomain.ConfigurationError{CredentialID: cred.ID.String(), Field: "default_category_id"}
	}
	return nil
}

func newRequestNumber(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return "RQ-" + id.String()
}
