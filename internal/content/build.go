// Package content compiles the markdown product files into the products.json catalog document.
package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Skotchmaster/nolmart/internal/models"
)

const (
	DefaultName     = "Untitled Product"
	DefaultCategory = "Other"
)

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

type frontMatter struct {
	Title       string `yaml:"title"`
	Name        string `yaml:"name"`
	Price       any    `yaml:"price"`
	Description string `yaml:"description"`
	Body        string `yaml:"body"`
	Category    string `yaml:"category"`
	Subcategory string `yaml:"subcategory"`
	Image       string `yaml:"image"`
	Images      []any  `yaml:"images"`
	VideoURL    string `yaml:"videoUrl"`
	VideoLink   string `yaml:"videoLink"`
	CreatedAt   any    `yaml:"createdAt"`
	UpdatedAt   any    `yaml:"updatedAt"`
}

type Builder struct {
	// BaseURL prefixes relative media paths. Absolute http(s) URLs are kept as they are.
	BaseURL string
	Now     func() time.Time
}

// BuildDir parses every *.md file in dir. A missing directory yields an empty catalog.
func (b Builder) BuildDir(dir string) ([]models.Product, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Product{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	products := []models.Product{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		p, err := b.Parse(strings.TrimSuffix(e.Name(), ".md"), raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		products = append(products, p)
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.After(*products[j].CreatedAt)
	})
	return products, nil
}

// Parse turns one markdown document with YAML front matter into a product with the given id.
func (b Builder) Parse(id string, raw []byte) (models.Product, error) {
	meta, body, err := splitFrontMatter(raw)
	if err != nil {
		return models.Product{}, err
	}

	var fm frontMatter
	if len(meta) > 0 {
		if err := yaml.Unmarshal(meta, &fm); err != nil {
			return models.Product{}, fmt.Errorf("front matter: %w", err)
		}
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	p := models.Product{
		ID:          id,
		Name:        firstNonEmpty(fm.Title, fm.Name, DefaultName),
		Price:       parsePrice(fm.Price),
		Description: strings.TrimSpace(firstNonEmpty(string(body), fm.Body, fm.Description)),
		Category:    firstNonEmpty(fm.Category, DefaultCategory),
		Subcategory: fm.Subcategory,
		ImageURLs:   b.images(fm),
		VideoLink:   fm.VideoLink,
		CreatedAt:   parseTime(fm.CreatedAt, now),
		UpdatedAt:   parseTime(fm.UpdatedAt, now),
	}
	if fm.VideoURL != "" {
		p.VideoURL = b.fullURL(fm.VideoURL)
	}
	return p, nil
}

func (b Builder) images(fm frontMatter) []string {
	urls := []string{}
	if fm.Image != "" {
		urls = append(urls, b.fullURL(fm.Image))
	}
	for _, img := range fm.Images {
		var path string
		switch v := img.(type) {
		case string:
			path = v
		case map[string]any:
			path, _ = v["image"].(string)
		}
		if path != "" {
			urls = append(urls, b.fullURL(path))
		}
	}

	if len(urls) == 0 && fm.VideoURL != "" {
		lower := strings.ToLower(fm.VideoURL)
		for _, ext := range imageExts {
			if strings.HasSuffix(lower, ext) {
				urls = append(urls, b.fullURL(fm.VideoURL))
				break
			}
		}
	}
	return urls
}

func (b Builder) fullURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http") || b.BaseURL == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(b.BaseURL, "/") + path
}

// WriteFile writes products as an indented JSON array, creating the parent directory.
func WriteFile(path string, products []models.Product) error {
	if products == nil {
		products = []models.Product{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func splitFrontMatter(raw []byte) (meta, body []byte, err error) {
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	normalized := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, normalized, nil
	}

	rest := normalized[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, nil, errors.New("unterminated front matter")
	}
	meta = rest[:end]
	body = rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}
	return meta, body, nil
}

func parsePrice(v any) decimal.Decimal {
	var s string
	switch p := v.(type) {
	case nil:
		return decimal.Zero
	case int:
		return decimal.NewFromInt(int64(p))
	case float64:
		return decimal.NewFromFloat(p)
	case string:
		s = strings.TrimSpace(p)
	default:
		s = fmt.Sprint(p)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTime(v any, now func() time.Time) *time.Time {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
				t = parsed
				break
			}
		}
	}
	if t.IsZero() {
		t = now()
	}
	t = t.UTC()
	return &t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
