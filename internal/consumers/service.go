package consumers

import (
	"context"
	"log/slog"

	"canchita/internal/config"
	"canchita/internal/external"
	"canchita/internal/messaging"
	"canchita/internal/models"
	"canchita/internal/search"
	"canchita/internal/service"
)

const queueGroup = "consumers"

type ConsumerService struct {
	nats     *messaging.NATSClient
	handlers *Handlers
	fields   *service.FieldCatalog
	indexed  bool
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	// Connect to NATS
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		return nil, err
	}

	backend := external.NewBackendClient(cfg.Backend)
	// ttl 0: every event reads the field straight from the backend
	fields := service.NewFieldCatalog(backend, nil, 0, nil)

	var indexer FieldIndexer
	if cfg.Elasticsearch.Enabled {
		idx, err := search.NewFieldIndex(cfg.Elasticsearch)
		if err != nil {
			natsClient.Close()
			return nil, err
		}
		indexer = idx
		fields.WithSearch(nil, idx)
	} else {
		slog.Warn("Elasticsearch disabled, field events will only be logged")
	}

	return &ConsumerService{
		nats:     natsClient,
		handlers: NewHandlers(fields, indexer),
		fields:   fields,
		indexed:  indexer != nil,
	}, nil
}

// Catalog is the backend-backed field catalog; with an index configured its
// Reindex rebuilds the search index.
func (cs *ConsumerService) Catalog() *service.FieldCatalog {
	return cs.fields
}

func (cs *ConsumerService) Indexed() bool {
	return cs.indexed
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	subscriptions := []struct {
		subject string
		fn      func(context.Context, []byte) error
	}{
		{models.EventFieldChanged, cs.handlers.FieldChanged},
		{models.EventBookingCreated, cs.handlers.BookingCreated},
		{models.EventBookingCancelled, cs.handlers.BookingCancelled},
	}
	for _, s := range subscriptions {
		if _, err := cs.nats.SubscribeQueue(s.subject, queueGroup, cs.handlers.ack(s.subject, s.fn)); err != nil {
			return err
		}
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
			return err
		}
	}
	return nil
}
