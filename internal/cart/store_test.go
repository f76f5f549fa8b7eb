package cart

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Skotchmaster/nolmart/internal/logging"
	"github.com/Skotchmaster/nolmart/internal/models"
	"github.com/Skotchmaster/nolmart/internal/storage"
)

type countingKV struct {
	*storage.Memory
	sets   int
	setErr error
	getErr error
}

func newCountingKV() *countingKV {
	return &countingKV{Memory: storage.NewMemory()}
}

func (c *countingKV) Get(ctx context.Context, key string) ([]byte, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.Memory.Get(ctx, key)
}

func (c *countingKV) Set(ctx context.Context, key string, value []byte) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	return c.Memory.Set(ctx, key, value)
}

func product(id, name string, price int64, images ...string) models.Product {
	return models.Product{ID: id, Name: name, Price: decimal.NewFromInt(price), ImageURLs: images}
}

func openStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	s, err := Open(context.Background(), kv, DefaultKey)
	require.NoError(t, err)
	return s
}

func TestStore_Scenario(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())

	assert.Empty(t, s.Lines())

	_, err := s.AddItem(ctx, product("p1", "Shirt", 1000), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalQuantity())
	assert.Equal(t, "2000", s.TotalPrice().String())

	_, err = s.AddItem(ctx, product("p2", "Hat", 500), 1)
	require.NoError(t, err)
	assert.Equal(t, "2500", s.TotalPrice().String())

	_, err = s.UpdateQuantity(ctx, "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, "5500", s.TotalPrice().String())

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, []models.CartLine{}, s.Lines())
	assert.True(t, s.TotalPrice().IsZero())
}

func TestStore_AddSameProductTwice(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())
	p := product("p1", "Shirt", 1000)

	_, err := s.AddItem(ctx, p, 1)
	require.NoError(t, err)
	lines, err := s.AddItem(ctx, p, 1)
	require.NoError(t, err)

	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 1, s.ItemCount())
}

func TestStore_AddItemSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	s, err := Open(ctx, kv, DefaultKey, WithPlaceholder("img/none.png"))
	require.NoError(t, err)

	lines, err := s.AddItem(ctx, product("p1", "Shirt", 1000, "img/a.png", "img/b.png"), 1)
	require.NoError(t, err)
	assert.Equal(t, "img/a.png", lines[0].ThumbnailURL)
	assert.Equal(t, "Shirt", lines[0].Name)

	lines, err = s.AddItem(ctx, product("p2", "Hat", 500), 1)
	require.NoError(t, err)
	assert.Equal(t, "img/none.png", lines[1].ThumbnailURL)

	// the snapshot is not re-synced when the catalog price changes
	lines, err = s.AddItem(ctx, product("p1", "Shirt", 9999), 1)
	require.NoError(t, err)
	assert.Equal(t, "1000", lines[0].UnitPrice.String())
	assert.Equal(t, []string{"p1", "p2"}, []string{lines[0].ProductID, lines[1].ProductID})
}

func TestStore_AddItemRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	kv := newCountingKV()
	s := openStore(t, kv)

	notified := 0
	s.OnChange(func([]models.CartLine) { notified++ })

	tests := []struct {
		name    string
		product models.Product
		qty     int
		wantErr error
	}{
		{name: "missing id", product: product("", "Shirt", 10), qty: 1, wantErr: ErrInvalidProduct},
		{name: "missing name", product: product("p1", "", 10), qty: 1, wantErr: ErrInvalidProduct},
		{name: "negative price", product: product("p1", "Shirt", -1), qty: 1, wantErr: ErrInvalidProduct},
		{name: "zero quantity", product: product("p1", "Shirt", 10), qty: 0, wantErr: ErrInvalidQuantity},
		{name: "quantity above cap", product: product("p1", "Shirt", 10), qty: MaxQuantity + 1, wantErr: ErrInvalidQuantity},
		{name: "max int quantity", product: product("p1", "Shirt", 10), qty: math.MaxInt, wantErr: ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddItem(ctx, tt.product, tt.qty)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, s.Lines())
	assert.Zero(t, kv.sets)
	assert.Zero(t, notified)
}

func TestStore_UpdateQuantityZeroEqualsRemove(t *testing.T) {
	ctx := context.Background()

	build := func() *Store {
		s := openStore(t, storage.NewMemory())
		_, err := s.AddItem(ctx, product("p1", "Shirt", 1000), 2)
		require.NoError(t, err)
		_, err = s.AddItem(ctx, product("p2", "Hat", 500), 1)
		require.NoError(t, err)
		return s
	}

	a, b := build(), build()
	_, err := a.UpdateQuantity(ctx, "p1", 0)
	require.NoError(t, err)
	_, err = b.RemoveItem(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, a.Lines(), b.Lines())

	c := build()
	_, err = c.UpdateQuantity(ctx, "p2", -3)
	require.NoError(t, err)
	require.Len(t, c.Lines(), 1)
	assert.Equal(t, "p1", c.Lines()[0].ProductID)
}

func TestStore_RemoveAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	kv := newCountingKV()
	s := openStore(t, kv)
	_, err := s.AddItem(ctx, product("p1", "Shirt", 1000), 1)
	require.NoError(t, err)
	before := s.Lines()

	notified := 0
	s.OnChange(func([]models.CartLine) { notified++ })

	lines, err := s.RemoveItem(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, before, lines)
	assert.Equal(t, 1, notified)
	assert.Equal(t, 2, kv.sets)

	_, err = s.UpdateQuantity(ctx, "nope", 4)
	require.NoError(t, err)
	assert.Equal(t, before, s.Lines())
}

func TestStore_OneWriteOneNotifyPerMutation(t *testing.T) {
	ctx := context.Background()
	kv := newCountingKV()
	s := openStore(t, kv)

	notified := 0
	s.OnChange(func([]models.CartLine) { notified++ })

	ops := []func() error{
		func() error { _, err := s.AddItem(ctx, product("p1", "Shirt", 1000), 1); return err },
		func() error { _, err := s.AddItem(ctx, product("p1", "Shirt", 1000), 3); return err },
		func() error { _, err := s.UpdateQuantity(ctx, "p1", 2); return err },
		func() error { _, err := s.RemoveItem(ctx, "p1"); return err },
		func() error { return s.Clear(ctx) },
	}
	for i, op := range ops {
		require.NoError(t, op())
		assert.Equal(t, i+1, kv.sets)
		assert.Equal(t, i+1, notified)
	}
}

func TestStore_TotalsMatchLines(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())

	_, _ = s.AddItem(ctx, models.Product{ID: "a", Name: "A", Price: decimal.RequireFromString("19.99")}, 3)
	_, _ = s.AddItem(ctx, models.Product{ID: "b", Name: "B", Price: decimal.RequireFromString("0.01")}, 7)
	_, _ = s.UpdateQuantity(ctx, "a", 4)
	_, _ = s.AddItem(ctx, models.Product{ID: "c", Name: "C", Price: decimal.NewFromInt(250)}, 1)
	_, _ = s.RemoveItem(ctx, "b")

	want := decimal.Zero
	qty := 0
	for _, l := range s.Lines() {
		want = want.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		qty += l.Quantity
	}
	assert.True(t, want.Equal(s.TotalPrice()))
	assert.Equal(t, "329.96", s.TotalPrice().StringFixed(2))
	assert.Equal(t, qty, s.TotalQuantity())
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	s := openStore(t, kv)
	_, err := s.AddItem(ctx, product("p1", "Shirt", 1000, "img/shirt.png"), 2)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, models.Product{ID: "p2", Name: "Hat", Price: decimal.RequireFromString("499.50")}, 3)
	require.NoError(t, err)

	reopened := openStore(t, kv)
	require.Len(t, reopened.Lines(), 2)
	for i, l := range reopened.Lines() {
		want := s.Lines()[i]
		assert.Equal(t, want.ProductID, l.ProductID)
		assert.Equal(t, want.Quantity, l.Quantity)
		assert.Equal(t, want.ThumbnailURL, l.ThumbnailURL)
		assert.True(t, want.UnitPrice.Equal(l.UnitPrice))
	}
	assert.True(t, s.TotalPrice().Equal(reopened.TotalPrice()))
}

func TestOpen_CorruptRecord(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	ctx := logging.IntoContext(context.Background(), logging.FromZap(zap.New(core)))

	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, DefaultKey, []byte(`{not json`)))

	s, err := Open(ctx, kv, DefaultKey)
	require.NoError(t, err)
	assert.Empty(t, s.Lines())

	logs := observed.FilterMessage("discarding persisted cart").All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].ContextMap()["error"], ErrStorageCorrupt.Error())

	_, err = s.AddItem(ctx, product("p1", "Shirt", 1000), 1)
	require.NoError(t, err)
	raw, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"productId":"p1","name":"Shirt","unitPrice":1000,"thumbnailUrl":"img/placeholder-image.png","quantity":1}]`, string(raw))
}

func TestOpen_DropsInvalidLines(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, DefaultKey, []byte(`[
		{"productId":"p1","name":"Shirt","unitPrice":10,"quantity":1},
		{"productId":"","name":"Ghost","unitPrice":10,"quantity":1},
		{"productId":"p2","name":"Hat","unitPrice":5,"quantity":0},
		{"productId":"p1","name":"Shirt again","unitPrice":10,"quantity":9}
	]`)))

	s := openStore(t, kv)
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "Shirt", lines[0].Name)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestOpen_StorageError(t *testing.T) {
	kv := newCountingKV()
	kv.getErr = errors.New("disk on fire")

	_, err := Open(context.Background(), kv, DefaultKey)
	assert.ErrorIs(t, err, kv.getErr)
}

func TestStore_PersistFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	kv := newCountingKV()
	s := openStore(t, kv)
	_, err := s.AddItem(ctx, product("p1", "Shirt", 1000), 1)
	require.NoError(t, err)

	notified := 0
	s.OnChange(func([]models.CartLine) { notified++ })

	kv.setErr = errors.New("quota exceeded")
	_, err = s.AddItem(ctx, product("p2", "Hat", 500), 1)
	assert.ErrorIs(t, err, kv.setErr)
	assert.Error(t, s.Clear(ctx))

	assert.Len(t, s.Lines(), 1)
	assert.Zero(t, notified)
}

func TestStore_OnChange(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())

	var order []string
	var got []models.CartLine
	unsubA := s.OnChange(func(lines []models.CartLine) {
		order = append(order, "a")
		got = lines
	})
	s.OnChange(func([]models.CartLine) { order = append(order, "b") })

	_, err := s.AddItem(ctx, product("p1", "Shirt", 1000), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
	require.Len(t, got, 1)

	// listeners get their own copy
	got[0].Quantity = 99
	assert.Equal(t, 1, s.Lines()[0].Quantity)

	unsubA()
	unsubA()
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, []string{"a", "b", "b"}, order)
}

func TestStore_LinesIsACopy(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, storage.NewMemory())
	_, err := s.AddItem(ctx, product("p1", "Shirt", 1000), 1)
	require.NoError(t, err)

	lines := s.Lines()
	lines[0].Quantity = 42
	assert.Equal(t, 1, s.Lines()[0].Quantity)
}

func TestStore_QuantityNeverPassesCap(t *testing.T) {
	ctx := context.Background()
	kv := newCountingKV()
	s := openStore(t, kv)
	shirt := product("p1", "Shirt", 1000)

	_, err := s.AddItem(ctx, shirt, MaxQuantity)
	require.NoError(t, err)
	notified := 0
	s.OnChange(func([]models.CartLine) { notified++ })
	sets := kv.sets

	_, err = s.AddItem(ctx, shirt, 2)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = s.UpdateQuantity(ctx, "p1", math.MaxInt)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	require.Len(t, s.Lines(), 1)
	assert.Equal(t, MaxQuantity, s.Lines()[0].Quantity)
	assert.True(t, s.TotalPrice().IsPositive())
	assert.Equal(t, sets, kv.sets)
	assert.Zero(t, notified)
}

func TestOpen_DropsLinesAboveCap(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(context.Background(), DefaultKey,
		[]byte(`[{"productId":"p1","name":"Shirt","unitPrice":10,"quantity":-9223372036854775807},
		{"productId":"p2","name":"Hat","unitPrice":5,"quantity":100000},
		{"productId":"p3","name":"Sock","unitPrice":1,"quantity":3}]`)))

	s := openStore(t, kv)
	require.Len(t, s.Lines(), 1)
	assert.Equal(t, "p3", s.Lines()[0].ProductID)
}

func TestStore_OnCommitRevisions(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := openStore(t, kv)

	var revs []uint64
	s.OnCommit(func(rev uint64, _ []models.CartLine) { revs = append(revs, rev) })

	_, err := s.AddItem(ctx, product("p1", "Shirt", 1000), 1)
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	require.Len(t, revs, 2)
	assert.Less(t, revs[0], revs[1])
	assert.Equal(t, revs[1], s.Revision())

	reopened := openStore(t, kv)
	assert.Greater(t, reopened.Revision(), revs[1])
}
