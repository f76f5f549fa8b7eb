package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/nolmart/internal/models"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func fixture() []models.Product {
	return []models.Product{
		{ID: "radio", Name: "Radio", Price: decimal.NewFromInt(25000), Description: "FM radio with bluetooth",
			Category: "Electronics", Subcategory: "Audio", CreatedAt: ts("2024-03-01T00:00:00Z")},
		{ID: "kanga", Name: "Kanga", Price: decimal.NewFromInt(12000), Description: "Cotton wrap",
			Category: "Clothing", Subcategory: "Women", CreatedAt: ts("2024-05-01T00:00:00Z")},
		{ID: "legacy", Name: "Old stock", Price: decimal.NewFromInt(100), Description: "No timestamp",
			Category: "Other"},
		{ID: "shirt", Name: "Shirt", Price: decimal.NewFromInt(1000), Description: "Blue cotton shirt",
			Category: "Clothing", Subcategory: "Men", CreatedAt: ts("2024-04-01T00:00:00Z")},
		{ID: "speaker", Name: "Speaker", Price: decimal.NewFromInt(40000), Description: "Portable",
			Category: "Electronics", Subcategory: "Audio", CreatedAt: ts("2024-01-01T00:00:00Z")},
		{ID: "legacy2", Name: "Older stock", Price: decimal.NewFromInt(50), Category: "Other"},
	}
}

func loaded(t *testing.T, products []models.Product) *Cache {
	t.Helper()
	c := New(SourceFunc(func(context.Context) ([]models.Product, error) { return products, nil }))
	_, err := c.Load(context.Background())
	require.NoError(t, err)
	return c
}

func ids(products []models.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestCache_LoadOrdersNewestFirst(t *testing.T) {
	c := loaded(t, fixture())

	got, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"kanga", "shirt", "radio", "speaker", "legacy", "legacy2"}, ids(got))
	assert.True(t, c.Loaded())
}

func TestCache_LoadFetchesOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := New(SourceFunc(func(context.Context) ([]models.Product, error) {
		calls.Add(1)
		<-release
		return fixture(), nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Load(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	_, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	_, err = c.Reload(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCache_LoadFailure(t *testing.T) {
	boom := errors.New("network down")
	fail := true
	c := New(SourceFunc(func(context.Context) ([]models.Product, error) {
		if fail {
			return nil, boom
		}
		return fixture(), nil
	}))

	got, err := c.Load(context.Background())
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.False(t, c.Loaded())

	fail = false
	got, err = c.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 6)

	fail = true
	_, err = c.Reload(context.Background())
	assert.ErrorIs(t, err, ErrCatalogUnavailable)

	got, err = c.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 6, "a failed reload keeps the previous list")
}

func TestCache_RejectsMalformedProducts(t *testing.T) {
	products := append(fixture(),
		models.Product{Name: "No id", Price: decimal.NewFromInt(1)},
		models.Product{ID: "noname", Price: decimal.NewFromInt(1)},
		models.Product{ID: "neg", Name: "Negative", Price: decimal.NewFromInt(-1)},
		models.Product{ID: "radio", Name: "Radio duplicate", Price: decimal.NewFromInt(1)},
	)
	c := loaded(t, products)

	got, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 6)
	p, ok := c.Product("radio")
	require.True(t, ok)
	assert.Equal(t, "Radio", p.Name)
}

func TestCache_FilterByCategory(t *testing.T) {
	c := loaded(t, fixture())

	tests := []struct {
		name        string
		category    string
		subcategory string
		want        []string
	}{
		{name: "all", category: "all", want: []string{"kanga", "shirt", "radio", "speaker", "legacy", "legacy2"}},
		{name: "unset", category: "", want: []string{"kanga", "shirt", "radio", "speaker", "legacy", "legacy2"}},
		{name: "category", category: "Clothing", want: []string{"kanga", "shirt"}},
		{name: "subcategory", category: "Clothing", subcategory: "Men", want: []string{"shirt"}},
		{name: "subcategory all", category: "Electronics", subcategory: "all", want: []string{"radio", "speaker"}},
		{name: "unknown", category: "Furniture", want: []string{}},
		{name: "unknown subcategory", category: "Clothing", subcategory: "Kids", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(c.FilterByCategory(tt.category, tt.subcategory)))
		})
	}
}

func TestCache_Search(t *testing.T) {
	c := loaded(t, fixture())

	res := c.Search("")
	assert.Equal(t, SearchNoQuery, res.State)
	assert.Empty(t, res.Products)

	assert.Equal(t, SearchNoQuery, c.Search("   ").State)

	res = c.Search("zz__no_match")
	assert.Equal(t, SearchNoMatches, res.State)
	assert.Empty(t, res.Products)

	res = c.Search("  COTTON ")
	assert.Equal(t, SearchMatches, res.State)
	assert.Equal(t, []string{"kanga", "shirt"}, ids(res.Products))

	res = c.Search("radio")
	assert.Equal(t, []string{"radio"}, ids(res.Products))
}

func TestCache_ProductAndRelated(t *testing.T) {
	c := loaded(t, fixture())

	_, ok := c.Product("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"speaker"}, ids(c.Related("radio", 0)))
	assert.Equal(t, []string{"kanga"}, ids(c.Related("shirt", 4)))
	assert.Empty(t, c.Related("missing", 4))

	many := fixture()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		many = append(many, models.Product{ID: id, Name: id, Category: "Electronics"})
	}
	c = loaded(t, many)
	related := c.Related("radio", 0)
	assert.Len(t, related, DefaultRelatedLimit)
	assert.NotContains(t, ids(related), "radio")
}

func TestCache_LatestAndCategories(t *testing.T) {
	c := loaded(t, fixture())

	assert.Equal(t, []string{"kanga", "shirt"}, ids(c.Latest(2)))
	assert.Len(t, c.Latest(0), 6)
	assert.Len(t, c.Latest(100), 6)

	assert.Equal(t, []string{"Clothing", "Electronics", "Other"}, c.Categories())
	assert.Equal(t, []string{"Men", "Women"}, c.Subcategories("Clothing"))
	assert.Equal(t, []string{"Audio", "Men", "Women"}, c.Subcategories("all"))
}

func TestCache_EmptyBeforeLoad(t *testing.T) {
	c := New(SourceFunc(func(context.Context) ([]models.Product, error) { return fixture(), nil }))

	assert.Empty(t, c.FilterByCategory("all", ""))
	assert.Equal(t, SearchNoMatches, c.Search("radio").State)
	assert.Empty(t, c.Categories())
}
