// Package search indexes products in Elasticsearch and answers full-text
// and prefix queries with product ids.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"byteshop/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "name":        {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "description": {"type": "text"},
      "category":    {"type": "keyword"},
      "price":       {"type": "scaled_float", "scaling_factor": 100},
      "is_active":   {"type": "boolean"}
    }
  }
}`

type document struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    models.Category `json:"category"`
	Price       float64         `json:"price"`
	IsActive    bool            `json:"is_active"`
}

type Index struct {
	client *elasticsearch.Client
	name   string
}

func New(client *elasticsearch.Client, name string) *Index {
	return &Index{client: client, name: name}
}

// EnsureIndex creates the index with its mapping when missing.
func (ix *Index) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{ix.name}}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = esapi.IndicesCreateRequest{Index: ix.name, Body: strings.NewReader(indexMapping)}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

func (ix *Index) IndexProduct(ctx context.Context, p *models.Product) error {
	if !p.IsActive {
		return ix.RemoveProduct(ctx, p.ID)
	}
	price, _ := p.Price.Float64()
	data, err := json.Marshal(document{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       price,
		IsActive:    p.IsActive,
	})
	if err != nil {
		return err
	}

	res, err := esapi.IndexRequest{
		Index:      ix.name,
		DocumentID: p.ID,
		Body:       bytes.NewReader(data),
		Refresh:    "true",
	}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("index product %s: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}
	return nil
}

func (ix *Index) RemoveProduct(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{Index: ix.name, DocumentID: id, Refresh: "true"}.Do(ctx, ix.client)
	if err != nil {
		return fmt.Errorf("remove product %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return responseError(res)
	}
	return nil
}

// Search runs a fuzzy multi_match over name and description and returns
// matching ids by relevance.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]string, error) {
	return ix.ids(ctx, searchQuery(query, limit))
}

// Suggest returns product names starting with prefix.
func (ix *Index) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	hits, err := ix.query(ctx, suggestQuery(prefix, limit))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.Source.Name)
	}
	return names, nil
}

func searchQuery(query string, limit int) map[string]interface{} {
	return map[string]interface{}{
		"size":    limit,
		"_source": []string{"id", "name"},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":     query,
						"fields":    []string{"name^3", "description"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"is_active": true},
				},
			},
		},
	}
}

func suggestQuery(prefix string, limit int) map[string]interface{} {
	return map[string]interface{}{
		"size":    limit,
		"_source": []string{"id", "name"},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"match_phrase_prefix": map[string]interface{}{"name": prefix},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"is_active": true},
				},
			},
		},
	}
}

type hit struct {
	ID     string   `json:"_id"`
	Source document `json:"_source"`
}

func (ix *Index) ids(ctx context.Context, q map[string]interface{}) ([]string, error) {
	hits, err := ix.query(ctx, q)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func (ix *Index) query(ctx context.Context, q map[string]interface{}) ([]hit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := esapi.SearchRequest{Index: []string{ix.name}, Body: &buf}.Do(ctx, ix.client)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res)
	}

	var body struct {
		Hits struct {
			Hits []hit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return body.Hits.Hits, nil
}

func responseError(res *esapi.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error.Type != "" {
		return fmt.Errorf("elasticsearch %s: %s: %s", res.Status(), e.Error.Type, e.Error.Reason)
	}
	if len(raw) == 0 {
		return errors.New("elasticsearch " + res.Status())
	}
	return fmt.Errorf("elasticsearch %s: %s", res.Status(), raw)
}
