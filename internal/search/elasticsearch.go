package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"canchita/internal/config"
	"canchita/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// FieldIndex хранит каталог площадок в Elasticsearch для полнотекстового поиска
type FieldIndex struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewFieldIndex создает клиент и индекс, если его еще нет
func NewFieldIndex(cfg config.ElasticsearchConfig) (*FieldIndex, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	idx := &FieldIndex{client: es, config: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := idx.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return idx, nil
}

// indexMapping uses the spanish analyzer: field names are things like "La Bombonera".
var indexMapping = map[string]any{
	"settings": map[string]any{
		"number_of_shards":   1,
		"number_of_replicas": 0,
		"analysis": map[string]any{
			"analyzer": map[string]any{
				"spanish_folded": map[string]any{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase", "asciifolding", "spanish_stop"},
				},
			},
			"filter": map[string]any{
				"spanish_stop": map[string]any{
					"type":      "stop",
					"stopwords": "_spanish_",
				},
			},
		},
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"id": map[string]any{"type": "long"},
			"name": map[string]any{
				"type":     "text",
				"analyzer": "spanish_folded",
				"fields": map[string]any{
					"keyword": map[string]any{"type": "keyword", "ignore_above": 256},
				},
			},
			"category": map[string]any{
				"type":     "text",
				"analyzer": "spanish_folded",
				"fields": map[string]any{
					"keyword": map[string]any{"type": "keyword"},
				},
			},
			"price":     map[string]any{"type": "double"},
			"enabled":   map[string]any{"type": "boolean"},
			"cancelled": map[string]any{"type": "boolean"},
		},
	},
}

func (i *FieldIndex) ensureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{i.config.Index}}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", i.config.Index)
		return nil
	}

	body, err := json.Marshal(indexMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createRes, err := esapi.IndicesCreateRequest{
		Index: i.config.Index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", i.config.Index)
	return nil
}

// Search ищет площадки по названию и категории
func (i *FieldIndex) Search(ctx context.Context, query string, offerableOnly bool, limit int) ([]models.Field, error) {
	if limit <= 0 {
		limit = 20
	}

	body, err := json.Marshal(map[string]any{
		"query": buildQuery(query, offerableOnly),
		"sort":  buildSort(query),
		"size":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{i.config.Index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source models.Field `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	fields := make([]models.Field, len(response.Hits.Hits))
	for n, hit := range response.Hits.Hits {
		fields[n] = hit.Source
	}
	return fields, nil
}

func buildQuery(query string, offerableOnly bool) map[string]any {
	must := []map[string]any{}
	if query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "category"},
				"fuzziness": "AUTO",
			},
		})
	}

	filter := []map[string]any{}
	if offerableOnly {
		filter = append(filter,
			map[string]any{"term": map[string]any{"enabled": true}},
			map[string]any{"term": map[string]any{"cancelled": false}},
		)
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}
	return map[string]any{
		"bool": map[string]any{
			"must":   must,
			"filter": filter,
		},
	}
}

func buildSort(query string) []map[string]any {
	if query != "" {
		return []map[string]any{
			{"_score": map[string]any{"order": "desc"}},
			{"id": map[string]any{"order": "asc"}},
		}
	}
	return []map[string]any{
		{"id": map[string]any{"order": "asc"}},
	}
}

// IndexField индексирует или переиндексирует площадку
func (i *FieldIndex) IndexField(ctx context.Context, field models.Field) error {
	body, err := json.Marshal(field)
	if err != nil {
		return fmt.Errorf("failed to marshal field: %w", err)
	}

	res, err := esapi.IndexRequest{
		Index:      i.config.Index,
		DocumentID: strconv.FormatInt(field.ID, 10),
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to index field: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index error: %s", res.String())
	}
	return nil
}

// DeleteField удаляет площадку из индекса. Missing documents are not an error.
func (i *FieldIndex) DeleteField(ctx context.Context, id int64) error {
	res, err := esapi.DeleteRequest{
		Index:      i.config.Index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "wait_for",
	}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to delete field: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}
	return nil
}

// HealthCheck проверяет состояние Elasticsearch
func (i *FieldIndex) HealthCheck(ctx context.Context) error {
	res, err := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       5 * time.Second,
	}.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}
	return nil
}
