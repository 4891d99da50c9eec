package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	apperr "canchita/internal/errors"
	"canchita/internal/external"
	"canchita/internal/logger"
	"canchita/internal/messaging"
	"canchita/internal/metrics"
	"canchita/internal/models"
	"canchita/internal/permissions"
	"canchita/internal/validation"
)

// BookingManager is the single place where bookings are created and cancelled.
// The backend stays the authority on conflicts; the checks here fail fast.
type BookingManager struct {
	backend      BookingBackend
	fields       *FieldCatalog
	availability *AvailabilityResolver
	publisher    messaging.Publisher
	metrics      *metrics.Metrics
	locks        *keyedMutex
	now          func() time.Time
}

func NewBookingManager(backend BookingBackend, fields *FieldCatalog, availability *AvailabilityResolver, publisher messaging.Publisher, m *metrics.Metrics, now func() time.Time) *BookingManager {
	if now == nil {
		now = time.Now
	}
	return &BookingManager{
		backend:      backend,
		fields:       fields,
		availability: availability,
		publisher:    publisher,
		metrics:      m,
		locks:        newKeyedMutex(),
		now:          now,
	}
}

func lockKey(fieldID int64, date string) string {
	return strconv.FormatInt(fieldID, 10) + "|" + date
}

// Create books a field for actor.
func (m *BookingManager) Create(ctx context.Context, actor *models.Identity, req models.CreateBookingRequest) (*models.Booking, error) {
	if actor == nil || actor.Guest || actor.ID <= 0 {
		return nil, apperr.ErrNotAuthenticated
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if _, err := m.availability.CheckDate(req.Date); err != nil {
		return nil, err
	}
	start, _ := models.ParseClock(req.Time)
	end := start + models.SpanMinutes(req.Duration)
	if end > models.MinutesPerDay {
		return nil, apperr.NewValidationError("duration", "must end by 24:00")
	}
	req.Time = models.FormatClock(start)

	unlock := m.locks.Lock(lockKey(req.FieldID, req.Date))
	defer unlock()

	field, err := m.fields.Get(ctx, req.FieldID)
	if err != nil {
		return nil, err
	}
	if !field.Offerable() {
		return nil, fmt.Errorf("field %d: %w", field.ID, apperr.ErrFieldUnavailable)
	}

	active, err := m.availability.ActiveBookings(ctx, req.FieldID, req.Date, true)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	if takenBy(active, start, end) {
		m.conflict("precheck")
		return nil, fmt.Errorf("field %d on %s at %s: %w", req.FieldID, req.Date, req.Time, apperr.ErrSlotConflict)
	}

	total := field.Price.Times(req.Duration)
	res, err := m.backend.CreateBooking(ctx, external.CreateBookingPayload{
		UserID:   actor.ID,
		FieldID:  req.FieldID,
		Date:     req.Date,
		Time:     req.Time,
		Duration: req.Duration,
		Total:    total,
		Comments: req.Comments,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrSlotConflict) {
			m.availability.Invalidate(req.FieldID, req.Date)
			m.conflict("backend")
		}
		return nil, err
	}
	m.availability.Invalidate(req.FieldID, req.Date)

	booking := bookingFromResult(res, actor, field, req, total, m.now())

	if m.metrics != nil {
		m.metrics.BookingsCreated.Inc()
	}
	m.publish(ctx, models.EventBookingCreated, models.BookingCreatedEvent{
		BookingID: booking.ID,
		UserID:    booking.UserID,
		FieldID:   booking.FieldID,
		Date:      booking.Date,
		Time:      booking.Time,
		Duration:  booking.Duration,
		Total:     booking.Total,
		Status:    booking.Status,
		Timestamp: m.now(),
	})

	logger.WithContext(ctx).Info("Booking created",
		"booking_id", booking.ID, "field_id", booking.FieldID, "date", booking.Date,
		"time", booking.Time, "duration", booking.Duration, "total", booking.Total.String(), "status", booking.Status)
	return booking, nil
}

// bookingFromResult keeps the computed total; the backend decides id and status.
func bookingFromResult(res *external.BookingResult, actor *models.Identity, field *models.Field, req models.CreateBookingRequest, total models.Money, now time.Time) *models.Booking {
	b := &models.Booking{
		UserID:     actor.ID,
		FieldID:    req.FieldID,
		Date:       req.Date,
		Time:       req.Time,
		Duration:   req.Duration,
		Total:      total,
		Comments:   req.Comments,
		CreatedAt:  now.Format(time.RFC3339),
		FieldName:  field.Name,
		FieldPrice: field.Price,
		UserName:   actor.FullName(),
		UserEmail:  actor.Email,
		Status:     models.BookingStatus(res.Status),
	}
	if res.Booking != nil {
		b.ID = res.Booking.ID
		if res.Booking.Status != "" {
			b.Status = res.Booking.Status
		}
		if res.Booking.CreatedAt != "" {
			b.CreatedAt = res.Booking.CreatedAt
		}
	}
	if b.ID == 0 {
		b.ID = res.BookingID
	}
	b.Normalize()
	return b
}

// Cancel moves an active booking to cancelled. Only the owner or a manager may do it.
func (m *BookingManager) Cancel(ctx context.Context, actor *models.Identity, bookingID int64, reason string) (*models.Booking, error) {
	if actor == nil || actor.Guest {
		return nil, apperr.ErrNotAuthenticated
	}

	b, err := m.backend.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !permissions.CanCancelBooking(actor, b) {
		return nil, fmt.Errorf("booking %d: %w", bookingID, apperr.ErrNotAuthorized)
	}

	unlock := m.locks.Lock(lockKey(b.FieldID, b.Date))
	defer unlock()

	// re-read under the lock so two cancels of the same booking cannot both pass
	b, err = m.backend.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.Status.IsActive() {
		return nil, fmt.Errorf("booking %d is %s: %w", bookingID, b.Status, apperr.ErrInvalidState)
	}

	if err := m.backend.CancelBooking(ctx, bookingID, reason); err != nil {
		return nil, err
	}
	m.availability.Invalidate(b.FieldID, b.Date)

	b.Status = models.BookingCancelled
	b.Cancelled = true
	b.UpdatedAt = m.now().Format(time.RFC3339)

	if m.metrics != nil {
		m.metrics.BookingsCancelled.Inc()
	}
	m.publish(ctx, models.EventBookingCancelled, models.BookingCancelledEvent{
		BookingID:   b.ID,
		FieldID:     b.FieldID,
		Date:        b.Date,
		Time:        b.Time,
		CancelledBy: actor.ID,
		Reason:      reason,
		Timestamp:   m.now(),
	})

	logger.WithContext(ctx).Info("Booking cancelled", "booking_id", b.ID, "field_id", b.FieldID, "date", b.Date, "cancelled_by", actor.ID)
	return b, nil
}

// ListOwn returns the actor's bookings in [from, to] (either bound may be empty) with stats.
func (m *BookingManager) ListOwn(ctx context.Context, actor *models.Identity, from, to string) (*models.ListBookingsResponse, error) {
	if !permissions.CanViewOwnBookings(actor) {
		return nil, apperr.ErrNotAuthenticated
	}
	for name, v := range map[string]string{"from": from, "to": to} {
		if v == "" {
			continue
		}
		if _, err := models.ParseDate(v, time.UTC); err != nil {
			return nil, apperr.NewValidationError(name, "must be a date in YYYY-MM-DD format")
		}
	}

	if actor.Guest || actor.ID <= 0 {
		return &models.ListBookingsResponse{Bookings: []models.Booking{}}, nil
	}

	all, err := m.backend.ListBookings(ctx, external.BookingQuery{UserID: actor.ID})
	if err != nil {
		return nil, err
	}

	out := make([]models.Booking, 0, len(all))
	for _, b := range all {
		if b.UserID != actor.ID {
			continue
		}
		if (from != "" && b.Date < from) || (to != "" && b.Date > to) {
			continue
		}
		out = append(out, b)
	}
	sortBookings(out)

	return &models.ListBookingsResponse{Bookings: out, Stats: Stats(out)}, nil
}

// ListForField returns every booking of a field on date. Managers only.
func (m *BookingManager) ListForField(ctx context.Context, actor *models.Identity, fieldID int64, date string) ([]models.Booking, error) {
	if actor == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	if !permissions.IsManager(actor.Role) {
		return nil, apperr.ErrNotAuthorized
	}
	if _, err := models.ParseDate(date, time.UTC); err != nil {
		return nil, apperr.NewValidationError("date", "must be a date in YYYY-MM-DD format")
	}

	all, err := m.backend.ListBookings(ctx, external.BookingQuery{FieldID: fieldID, Date: date})
	if err != nil {
		return nil, err
	}
	out := make([]models.Booking, 0, len(all))
	for _, b := range all {
		if b.FieldID == fieldID && b.Date == date {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

// Stats summarizes bookings. Cancelled bookings do not count towards the amount spent.
func Stats(bookings []models.Booking) models.BookingStats {
	var s models.BookingStats
	s.Total = len(bookings)
	for _, b := range bookings {
		switch b.Status {
		case models.BookingConfirmed:
			s.Confirmed++
		case models.BookingCancelled:
			s.Cancelled++
		}
		if b.Status != models.BookingCancelled {
			s.TotalSpent += b.Total
		}
	}
	return s
}

func sortBookings(bs []models.Booking) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].Date != bs[j].Date {
			return bs[i].Date < bs[j].Date
		}
		return bs[i].Time < bs[j].Time
	})
}

func (m *BookingManager) conflict(stage string) {
	if m.metrics != nil {
		m.metrics.BookingConflicts.WithLabelValues(stage).Inc()
	}
}

func (m *BookingManager) publish(ctx context.Context, subject string, event any) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(subject, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event", "subject", subject, "error", err)
	}
}
