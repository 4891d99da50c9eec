package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"canchita/internal/cache"
	apperr "canchita/internal/errors"
	"canchita/internal/logger"
	"canchita/internal/messaging"
	"canchita/internal/metrics"
	"canchita/internal/models"
	"canchita/internal/permissions"
	"canchita/internal/validation"
)

const catalogKey = "fields"

// FieldCatalog caches the field list and runs admin writes against the backend.
// After a write the cache is patched when the backend echoes the entity and
// invalidated and refetched otherwise.
type FieldCatalog struct {
	backend   FieldBackend
	searcher  FieldSearcher
	indexer   FieldIndexer
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	cache     *cache.TTL[string, []models.Field]
	now       func() time.Time
}

func NewFieldCatalog(backend FieldBackend, m *metrics.Metrics, ttl time.Duration, now func() time.Time) *FieldCatalog {
	if now == nil {
		now = time.Now
	}
	return &FieldCatalog{
		backend: backend,
		metrics: m,
		cache:   cache.NewTTL[string, []models.Field](ttl, now),
		now:     now,
	}
}

// WithSearch plugs in the full-text index. indexer may be nil when another
// process keeps the index up to date.
func (c *FieldCatalog) WithSearch(searcher FieldSearcher, indexer FieldIndexer) *FieldCatalog {
	c.searcher = searcher
	c.indexer = indexer
	return c
}

// WithPublisher makes writes emit field.changed events.
func (c *FieldCatalog) WithPublisher(p messaging.Publisher) *FieldCatalog {
	c.publisher = p
	return c
}

// List returns every field, offerable or not.
func (c *FieldCatalog) List(ctx context.Context) ([]models.Field, error) {
	cached, ok := c.cache.Get(catalogKey)
	if c.metrics != nil {
		c.metrics.CacheHit("fields", ok)
	}
	if ok {
		return slices.Clone(cached), nil
	}
	return c.refresh(ctx)
}

func (c *FieldCatalog) refresh(ctx context.Context) ([]models.Field, error) {
	fields, err := c.backend.ListFields(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(catalogKey, fields)
	return slices.Clone(fields), nil
}

// ListOfferable returns the fields that can currently be booked.
func (c *FieldCatalog) ListOfferable(ctx context.Context) ([]models.Field, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(f models.Field) bool { return !f.Offerable() }), nil
}

func (c *FieldCatalog) Get(ctx context.Context, id int64) (*models.Field, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("field %d: %w", id, apperr.ErrFieldNotFound)
}

// Search matches query against field names and categories.
// The full-text index is used when configured; the cached catalog otherwise.
func (c *FieldCatalog) Search(ctx context.Context, query string, offerableOnly bool, limit int) ([]models.Field, error) {
	if limit <= 0 {
		limit = 20
	}
	if c.searcher != nil {
		found, err := c.searcher.Search(ctx, query, offerableOnly, limit)
		if err == nil {
			return found, nil
		}
		logger.WithContext(ctx).Warn("Field search index failed, searching catalog", "error", err)
	}

	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	q := fold(query)
	out := make([]models.Field, 0, limit)
	for _, f := range all {
		if offerableOnly && !f.Offerable() {
			continue
		}
		if q != "" && !strings.Contains(fold(f.Name), q) && !strings.Contains(fold(f.Category), q) {
			continue
		}
		out = append(out, f)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

var accentFolder = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n")

func fold(s string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}

func requireAdmin(actor *models.Identity) error {
	if actor == nil {
		return apperr.ErrNotAuthenticated
	}
	if !permissions.CanAccessSection(actor.Role, models.SectionAdmin) {
		return apperr.ErrNotAuthorized
	}
	return nil
}

func (c *FieldCatalog) Create(ctx context.Context, actor *models.Identity, in models.FieldInput) (*models.Field, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	res, err := c.backend.CreateField(ctx, in)
	if err != nil {
		return nil, err
	}

	var field *models.Field
	if res.Field != nil {
		field = res.Field
		c.cache.Update(catalogKey, func(fs []models.Field) []models.Field {
			return append(slices.Clone(fs), *field)
		})
	} else {
		field, err = c.refetchCreated(ctx, in)
		if err != nil {
			return nil, err
		}
	}

	c.changed(ctx, *field, models.FieldActionCreated)
	return field, nil
}

// refetchCreated finds the newest field matching in after an ambiguous create.
func (c *FieldCatalog) refetchCreated(ctx context.Context, in models.FieldInput) (*models.Field, error) {
	c.cache.Delete(catalogKey)
	all, err := c.refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("field created but catalog refetch failed: %w", err)
	}
	var found *models.Field
	for i := range all {
		if all[i].Name == in.Name && (found == nil || all[i].ID > found.ID) {
			found = &all[i]
		}
	}
	if found == nil {
		return nil, fmt.Errorf("field %q created but not listed: %w", in.Name, apperr.ErrFieldNotFound)
	}
	return found, nil
}

func (c *FieldCatalog) Update(ctx context.Context, actor *models.Identity, id int64, in models.FieldInput) (*models.Field, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return c.update(ctx, id, in, models.FieldActionUpdated)
}

func (c *FieldCatalog) update(ctx context.Context, id int64, in models.FieldInput, action string) (*models.Field, error) {
	res, err := c.backend.UpdateField(ctx, id, in)
	if err != nil {
		return nil, err
	}

	var field *models.Field
	if res.Field != nil {
		field = res.Field
		c.cache.Update(catalogKey, func(fs []models.Field) []models.Field {
			out := slices.Clone(fs)
			for i := range out {
				if out[i].ID == id {
					out[i] = *field
				}
			}
			return out
		})
	} else {
		c.cache.Delete(catalogKey)
		if field, err = c.Get(ctx, id); err != nil {
			return nil, err
		}
	}

	c.changed(ctx, *field, action)
	return field, nil
}

// SetEnabled toggles whether the field can be offered.
func (c *FieldCatalog) SetEnabled(ctx context.Context, actor *models.Identity, id int64, enabled bool) (*models.Field, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	current, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	action := models.FieldActionDisabled
	if enabled {
		action = models.FieldActionEnabled
	}
	return c.update(ctx, id, models.FieldInput{
		Name:     current.Name,
		Category: current.Category,
		Price:    current.Price.Units(),
		Enabled:  &enabled,
	}, action)
}

func (c *FieldCatalog) Delete(ctx context.Context, actor *models.Identity, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := c.backend.DeleteField(ctx, id); err != nil {
		return err
	}

	c.cache.Update(catalogKey, func(fs []models.Field) []models.Field {
		return slices.DeleteFunc(slices.Clone(fs), func(f models.Field) bool { return f.ID == id })
	})
	c.changed(ctx, models.Field{ID: id}, models.FieldActionDeleted)
	return nil
}

// Reindex pushes the whole catalog into the search index.
func (c *FieldCatalog) Reindex(ctx context.Context) (int, error) {
	if c.indexer == nil {
		return 0, nil
	}
	all, err := c.refresh(ctx)
	if err != nil {
		return 0, err
	}
	for _, f := range all {
		if err := c.indexer.IndexField(ctx, f); err != nil {
			return 0, fmt.Errorf("failed to index field %d: %w", f.ID, err)
		}
	}
	return len(all), nil
}

// Invalidate forces the next read to hit the backend.
func (c *FieldCatalog) Invalidate() {
	c.cache.Delete(catalogKey)
}

// changed announces a write. Without an event bus the index is updated inline.
func (c *FieldCatalog) changed(ctx context.Context, f models.Field, action string) {
	log := logger.WithContext(ctx).With("field_id", f.ID, "action", action)
	log.Info("Field catalog changed")

	if c.publisher != nil {
		if err := c.publisher.Publish(models.EventFieldChanged, models.FieldChangedEvent{
			FieldID: f.ID, Action: action, Timestamp: c.now(),
		}); err != nil {
			log.Error("Failed to publish event", "subject", models.EventFieldChanged, "error", err)
		}
		return
	}
	if c.indexer == nil {
		return
	}

	var err error
	if action == models.FieldActionDeleted {
		err = c.indexer.DeleteField(ctx, f.ID)
	} else {
		err = c.indexer.IndexField(ctx, f)
	}
	if err != nil {
		log.Error("Failed to update field index", "error", err)
	}
}
