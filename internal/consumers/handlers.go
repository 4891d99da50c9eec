package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/stan.go"

	apperr "canchita/internal/errors"
	"canchita/internal/models"
)

// FieldSource returns the current state of a field from the backend.
type FieldSource interface {
	Invalidate()
	Get(ctx context.Context, id int64) (*models.Field, error)
}

// FieldIndexer is the search index the consumers keep up to date.
type FieldIndexer interface {
	IndexField(ctx context.Context, field models.Field) error
	DeleteField(ctx context.Context, id int64) error
}

type Handlers struct {
	fields  FieldSource
	indexer FieldIndexer
	timeout time.Duration
}

func NewHandlers(fields FieldSource, indexer FieldIndexer) *Handlers {
	return &Handlers{fields: fields, indexer: indexer, timeout: 10 * time.Second}
}

// errMalformed marks messages that will never succeed and must not be redelivered.
var errMalformed = errors.New("malformed event")

// ack wraps a handler for a manual-ack subscription: the message is acked when
// fn succeeds or the payload is unusable, and left for redelivery otherwise.
func (h *Handlers) ack(subject string, fn func(ctx context.Context, data []byte) error) stan.MsgHandler {
	return func(m *stan.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		err := fn(ctx, m.Data)
		switch {
		case err == nil:
		case errors.Is(err, errMalformed):
			slog.Error("Dropping malformed event", "subject", subject, "sequence", m.Sequence, "error", err)
		default:
			slog.Error("Failed to process event, will be redelivered", "subject", subject, "sequence", m.Sequence, "error", err)
			return
		}
		if err := m.Ack(); err != nil {
			slog.Error("Failed to ack event", "subject", subject, "sequence", m.Sequence, "error", err)
		}
	}
}

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

// FieldChanged - синхронизирует поисковый индекс с каталогом площадок
func (h *Handlers) FieldChanged(ctx context.Context, data []byte) error {
	var event models.FieldChangedEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	if event.FieldID <= 0 {
		return fmt.Errorf("%w: field_id %d", errMalformed, event.FieldID)
	}

	slog.Info("Processing field changed event", "field_id", event.FieldID, "action", event.Action)

	if h.indexer == nil {
		return nil
	}
	if event.Action == models.FieldActionDeleted {
		return h.indexer.DeleteField(ctx, event.FieldID)
	}

	// the event only names the field; the backend has the current state
	h.fields.Invalidate()
	field, err := h.fields.Get(ctx, event.FieldID)
	if apperr.IsNotFound(err) {
		return h.indexer.DeleteField(ctx, event.FieldID)
	}
	if err != nil {
		return err
	}
	return h.indexer.IndexField(ctx, *field)
}

func (h *Handlers) BookingCreated(ctx context.Context, data []byte) error {
	var event models.BookingCreatedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	slog.Info("Processing booking created event",
		"booking_id", event.BookingID, "user_id", event.UserID, "field_id", event.FieldID,
		"date", event.Date, "time", event.Time, "total", event.Total.String(), "status", event.Status)
	return nil
}

func (h *Handlers) BookingCancelled(ctx context.Context, data []byte) error {
	var event models.BookingCancelledEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	slog.Info("Processing booking cancelled event",
		"booking_id", event.BookingID, "field_id", event.FieldID, "date", event.Date,
		"cancelled_by", event.CancelledBy, "reason", event.Reason)
	return nil
}
