package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Skotchmaster/nolmart/internal/models"
)

// FileSource reads the products.json document produced by build-products.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return decodeDocument(raw)
}

// HTTPSource fetches the same document from a URL, e.g. a CDN copy of products.json.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func NewHTTPSource(url string, timeout time.Duration) HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return HTTPSource{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (s HTTPSource) Fetch(ctx context.Context) ([]models.Product, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %d", s.URL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.URL, err)
	}
	return decodeDocument(raw)
}

func decodeDocument(raw []byte) ([]models.Product, error) {
	var products []models.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("decode products document: %w", err)
	}
	return products, nil
}
