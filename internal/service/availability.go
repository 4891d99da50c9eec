package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"canchita/internal/cache"
	apperr "canchita/internal/errors"
	"canchita/internal/external"
	"canchita/internal/logger"
	"canchita/internal/metrics"
	"canchita/internal/models"
)

const (
	slotLength = 60

	fallbackFirstHour = 8
	fallbackLastHour  = 21

	degradedWarning = "Availability is approximate: the schedule could not be loaded, every slot is shown as free."
)

type slotKey struct {
	FieldID int64
	Date    string
}

// AvailabilityResolver builds the slot grid of a field for a date.
type AvailabilityResolver struct {
	backend  ScheduleBackend
	metrics  *metrics.Metrics
	loc      *time.Location
	now      func() time.Time
	catalog  *cache.TTL[string, []string]
	bookings *cache.TTL[slotKey, []models.Booking]
}

func NewAvailabilityResolver(backend ScheduleBackend, m *metrics.Metrics, ttl time.Duration, loc *time.Location, now func() time.Time) *AvailabilityResolver {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityResolver{
		backend:  backend,
		metrics:  m,
		loc:      loc,
		now:      now,
		catalog:  cache.NewTTL[string, []string](ttl, now),
		bookings: cache.NewTTL[slotKey, []models.Booking](ttl, now),
	}
}

// CheckDate parses date and rejects days before today.
func (r *AvailabilityResolver) CheckDate(date string) (time.Time, error) {
	d, err := models.ParseDate(date, r.loc)
	if err != nil {
		return time.Time{}, apperr.NewValidationError("date", "must be a date in YYYY-MM-DD format")
	}
	y, m, day := r.now().In(r.loc).Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, r.loc)
	if d.Before(today) {
		return time.Time{}, fmt.Errorf("%s: %w", date, apperr.ErrInvalidDate)
	}
	return d, nil
}

// Resolve returns every catalog slot of the date marked free or taken.
// When the backend is unreachable the result is degraded: the fallback catalog
// with every slot free, plus a warning.
func (r *AvailabilityResolver) Resolve(ctx context.Context, fieldID int64, date string) (*models.Availability, error) {
	if _, err := r.CheckDate(date); err != nil {
		return nil, err
	}

	result := &models.Availability{FieldID: fieldID, Date: date}

	slots, err := r.slotCatalog(ctx)
	if err != nil {
		if !errors.Is(err, apperr.ErrBackendUnreachable) {
			return nil, err
		}
		logger.WithContext(ctx).Warn("Slot catalog unavailable, using fallback", "field_id", fieldID, "date", date, "error", err)
		return r.degraded(result, FallbackSlots()), nil
	}

	active, err := r.ActiveBookings(ctx, fieldID, date, false)
	if err != nil {
		if !errors.Is(err, apperr.ErrBackendUnreachable) {
			return nil, err
		}
		logger.WithContext(ctx).Warn("Bookings unavailable, showing all slots free", "field_id", fieldID, "date", date, "error", err)
		return r.degraded(result, slots), nil
	}

	result.Slots = make([]models.Slot, 0, len(slots))
	for _, label := range slots {
		start, _ := models.ParseClock(label)
		result.Slots = append(result.Slots, models.Slot{
			Time:      label,
			Available: !takenBy(active, start, start+slotLength),
		})
	}
	return result, nil
}

func (r *AvailabilityResolver) degraded(a *models.Availability, slots []string) *models.Availability {
	a.Degraded = true
	a.Warning = degradedWarning
	a.Slots = make([]models.Slot, len(slots))
	for i, label := range slots {
		a.Slots[i] = models.Slot{Time: label, Available: true}
	}
	if r.metrics != nil {
		r.metrics.AvailabilityDegraded.Inc()
	}
	return a
}

// ActiveBookings returns pending and confirmed bookings of the field on date.
// fresh skips the cache and refreshes it.
func (r *AvailabilityResolver) ActiveBookings(ctx context.Context, fieldID int64, date string, fresh bool) ([]models.Booking, error) {
	key := slotKey{FieldID: fieldID, Date: date}
	if !fresh {
		cached, ok := r.bookings.Get(key)
		r.cacheHit("bookings", ok)
		if ok {
			return cached, nil
		}
	}

	all, err := r.backend.ListBookings(ctx, external.BookingQuery{FieldID: fieldID, Date: date})
	if err != nil {
		return nil, err
	}

	active := make([]models.Booking, 0, len(all))
	for _, b := range all {
		// the backend filter is advisory; older deployments ignore it
		if b.FieldID == fieldID && b.Date == date && b.Status.IsActive() {
			active = append(active, b)
		}
	}
	r.bookings.Set(key, active)
	return active, nil
}

// Invalidate forgets the cached bookings of one field and date.
func (r *AvailabilityResolver) Invalidate(fieldID int64, date string) {
	r.bookings.Delete(slotKey{FieldID: fieldID, Date: date})
}

// InvalidateField forgets every cached date of a field.
func (r *AvailabilityResolver) InvalidateField(fieldID int64) {
	r.bookings.DeleteFunc(func(k slotKey) bool { return k.FieldID == fieldID })
}

func (r *AvailabilityResolver) slotCatalog(ctx context.Context) ([]string, error) {
	cached, ok := r.catalog.Get("catalog")
	r.cacheHit("slot_catalog", ok)
	if ok {
		return cached, nil
	}

	entries, err := r.backend.ListSlotCatalog(ctx)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Enabled.Bool() || e.Cancelled.Bool() {
			continue
		}
		label, err := models.NormalizeClock(e.Time)
		if err != nil {
			logger.WithContext(ctx).Warn("Skipping malformed catalog slot", "id", e.ID, "time", e.Time)
			continue
		}
		if !slices.Contains(labels, label) {
			labels = append(labels, label)
		}
	}
	slices.Sort(labels)

	r.catalog.Set("catalog", labels)
	return labels, nil
}

func (r *AvailabilityResolver) cacheHit(name string, hit bool) {
	if r.metrics != nil {
		r.metrics.CacheHit(name, hit)
	}
}

// FallbackSlots is the static catalog used when the backend cannot be reached.
func FallbackSlots() []string {
	slots := make([]string, 0, fallbackLastHour-fallbackFirstHour+1)
	for h := fallbackFirstHour; h <= fallbackLastHour; h++ {
		slots = append(slots, models.FormatClock(h*60))
	}
	return slots
}

// takenBy reports whether any booking overlaps [start, end).
func takenBy(bookings []models.Booking, start, end int) bool {
	for i := range bookings {
		bStart, bEnd, err := bookings[i].Interval()
		if err != nil {
			continue
		}
		if bStart < end && start < bEnd {
			return true
		}
	}
	return false
}
