package service

import (
	"time"

	"canchita/internal/messaging"
	"canchita/internal/metrics"
	"canchita/internal/session"
)

type Services struct {
	Fields       *FieldCatalog
	Availability *AvailabilityResolver
	Bookings     *BookingManager
	Auth         *AuthService
	Users        *UserAdmin
}

// Deps - внешние зависимости сервисного слоя. Publisher, Searcher и Indexer могут быть nil.
type Deps struct {
	Backend   Backend
	Sessions  *session.Manager
	Publisher messaging.Publisher
	Searcher  FieldSearcher
	Indexer   FieldIndexer
	Metrics   *metrics.Metrics
	CacheTTL  time.Duration
	Location  *time.Location
	Now       func() time.Time
}

func NewServices(d Deps) *Services {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.UTC
	}

	fieldCatalog := NewFieldCatalog(d.Backend, d.Metrics, d.CacheTTL, d.Now)
	if d.Searcher != nil {
		fieldCatalog.WithSearch(d.Searcher, d.Indexer)
	}
	if d.Publisher != nil {
		fieldCatalog.WithPublisher(d.Publisher)
	}

	availability := NewAvailabilityResolver(d.Backend, d.Metrics, d.CacheTTL, d.Location, d.Now)
	bookingManager := NewBookingManager(d.Backend, fieldCatalog, availability, d.Publisher, d.Metrics, d.Now)

	return &Services{
		Fields:       fieldCatalog,
		Availability: availability,
		Bookings:     bookingManager,
		Auth:         NewAuthService(d.Backend, d.Sessions),
		Users:        NewUserAdmin(d.Backend, d.CacheTTL, d.Now),
	}
}
