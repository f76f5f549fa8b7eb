package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/Skotchmaster/nolmart/internal/models"
)

const (
	DefaultIndex = "products"
	fetchSize    = 10000
)

// Catalog serves the product list from an index and keeps that index in sync with admin edits.
type Catalog struct {
	Client *elasticsearch.Client
	Index  string
}

func NewCatalog(client *elasticsearch.Client, index string) *Catalog {
	if index == "" {
		index = DefaultIndex
	}
	return &Catalog{Client: client, Index: index}
}

func (c *Catalog) Fetch(ctx context.Context) ([]models.Product, error) {
	body := map[string]any{
		"query": map[string]any{"match_all": map[string]any{}},
		"size":  fetchSize,
		"sort": []any{
			map[string]any{"createdAt": map[string]any{"order": "desc", "unmapped_type": "date"}},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := c.Client.Search(
		c.Client.Search.WithContext(ctx),
		c.Client.Search.WithIndex(c.Index),
		c.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.Index, err)
	}
	defer res.Body.Close()

	if err := responseError(res); err != nil {
		return nil, fmt.Errorf("search %s: %w", c.Index, err)
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source models.Product `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	prods := make([]models.Product, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		prods[i] = hit.Source
	}
	return prods, nil
}

func (c *Catalog) IndexProduct(ctx context.Context, p models.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product %s: %w", p.ID, err)
	}

	res, err := c.Client.Index(c.Index, bytes.NewReader(data),
		c.Client.Index.WithContext(ctx),
		c.Client.Index.WithDocumentID(p.ID),
		c.Client.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("index product %s: %w", p.ID, err)
	}
	defer res.Body.Close()

	if err := responseError(res); err != nil {
		return fmt.Errorf("index product %s: %w", p.ID, err)
	}
	return nil
}

// DeleteProduct removes the document. A document that is already gone is not an error.
func (c *Catalog) DeleteProduct(ctx context.Context, id string) error {
	res, err := c.Client.Delete(c.Index, id,
		c.Client.Delete.WithContext(ctx),
		c.Client.Delete.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if err := responseError(res); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

// IndexAll pushes every product, stopping at the first failure.
func (c *Catalog) IndexAll(ctx context.Context, products []models.Product) (int, error) {
	for i, p := range products {
		if err := c.IndexProduct(ctx, p); err != nil {
			return i, err
		}
	}
	return len(products), nil
}

func responseError(res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return fmt.Errorf("%s: %s", res.Status(), bytes.TrimSpace(body))
}
