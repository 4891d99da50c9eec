package consumers

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/stan.go"

	"canchita/internal/messaging"
	"canchita/internal/models"
)

// AvailabilityCache is the part of the availability resolver that events invalidate.
type AvailabilityCache interface {
	Invalidate(fieldID int64, date string)
	InvalidateField(fieldID int64)
}

// CatalogCache is the field catalog cache of a gateway instance.
type CatalogCache interface {
	Invalidate()
}

// Invalidator drops the caches of this gateway instance when another instance
// writes a booking or a field. Every instance subscribes on its own.
type Invalidator struct {
	availability AvailabilityCache
	catalog      CatalogCache
	subs         []stan.Subscription
}

func NewInvalidator(availability AvailabilityCache, catalog CatalogCache) *Invalidator {
	return &Invalidator{availability: availability, catalog: catalog}
}

func (inv *Invalidator) Start(nc *messaging.NATSClient) error {
	handlers := map[string]stan.MsgHandler{
		models.EventBookingCreated:   func(m *stan.Msg) { inv.BookingChanged(m.Data) },
		models.EventBookingCancelled: func(m *stan.Msg) { inv.BookingChanged(m.Data) },
		models.EventFieldChanged:     func(m *stan.Msg) { inv.FieldChanged(m.Data) },
	}
	for subject, h := range handlers {
		sub, err := nc.Subscribe(subject, h)
		if err != nil {
			inv.Stop()
			return err
		}
		inv.subs = append(inv.subs, sub)
	}
	return nil
}

func (inv *Invalidator) Stop() {
	for _, s := range inv.subs {
		if err := s.Close(); err != nil {
			slog.Warn("Failed to close subscription", "error", err)
		}
	}
	inv.subs = nil
}

// BookingChanged handles booking.created and booking.cancelled; both carry field_id and date.
func (inv *Invalidator) BookingChanged(data []byte) {
	var ev struct {
		FieldID int64  `json:"field_id"`
		Date    string `json:"date"`
	}
	if err := json.Unmarshal(data, &ev); err != nil || ev.FieldID <= 0 {
		slog.Warn("Ignoring malformed booking event", "error", err)
		return
	}
	if ev.Date == "" {
		inv.availability.InvalidateField(ev.FieldID)
		return
	}
	inv.availability.Invalidate(ev.FieldID, ev.Date)
}

func (inv *Invalidator) FieldChanged(data []byte) {
	var ev models.FieldChangedEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Warn("Ignoring malformed field event", "error", err)
		return
	}
	inv.catalog.Invalidate()
	if ev.FieldID > 0 {
		inv.availability.InvalidateField(ev.FieldID)
	}
}
