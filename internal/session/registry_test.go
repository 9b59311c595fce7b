package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/apiclient"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/cache"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/domain"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/queries"
	"github.com/the-africanmarkethub/africanmarkethub.ca-sub006/internal/storage"
)

type mockCartReader struct {
	m           sync.Mutex
	cart        domain.Cart
	err         error
	fetches     int
	invalidates int
}

func (r *mockCartReader) FetchCart(context.Context) (domain.Cart, error) {
	r.m.Lock()
	defer r.m.Unlock()
	r.fetches++
	return r.cart, r.err
}

func (r *mockCartReader) InvalidateCart(context.Context) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.invalidates++
	return nil
}

type nopAPI struct{}

func (nopAPI) Do(context.Context, apiclient.Request, any) error { return nil }

func item(id int64, qty int) domain.CartItem {
	return domain.CartItem{ProductID: id, Quantity: qty, UnitPrice: decimal.NewFromInt(10), StockQuantity: 10}
}

func TestFor_SameTokenSameCustomer(t *testing.T) {
	r := NewRegistry(Deps{API: nopAPI{}, Cart: &mockCartReader{}}, time.Hour)
	ctx := context.Background()

	a := r.For(ctx, "token-a")
	again := r.For(ctx, "token-a")
	b := r.For(ctx, "token-b")

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.Equal(t, cache.Scope("token-a"), a.Owner)
	assert.Equal(t, 2, r.Len())
}

func TestSync_ReplacesWithServerCart(t *testing.T) {
	reader := &mockCartReader{cart: domain.Cart{Items: []domain.CartItem{item(1, 2), item(2, 1)}}}
	r := NewRegistry(Deps{API: nopAPI{}, Cart: reader}, time.Hour)
	ctx := context.Background()
	c := r.For(ctx, "token")
	require.NoError(t, c.Cart.AddItem(item(9, 1)))

	require.NoError(t, r.Sync(ctx, c))

	items := c.Cart.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ProductID)
}

func TestSync_DisabledLeavesContainerAlone(t *testing.T) {
	reader := &mockCartReader{err: queries.ErrDisabled}
	r := NewRegistry(Deps{API: nopAPI{}, Cart: reader}, time.Hour)
	ctx := context.Background()
	c := r.For(ctx, "")
	require.NoError(t, c.Cart.AddItem(item(9, 1)))

	err := r.Sync(ctx, c)

	assert.ErrorIs(t, err, queries.ErrDisabled)
	assert.Equal(t, 1, c.Cart.Len())
}

func TestFor_RestoresSnapshotFromSQLite(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.RunMigrations())

	ctx := context.Background()
	deps := Deps{API: nopAPI{}, Cart: &mockCartReader{}, Persister: store}

	first := NewRegistry(deps, time.Hour)
	require.NoError(t, first.For(ctx, "token").Cart.AddItem(item(42, 3)))

	second := NewRegistry(deps, time.Hour)
	restored := second.For(ctx, "token").Cart.Items()

	require.Len(t, restored, 1)
	assert.Equal(t, 3, restored[0].Quantity)
}

func TestSweep_DropsIdleCustomers(t *testing.T) {
	r := NewRegistry(Deps{API: nopAPI{}, Cart: &mockCartReader{}}, 10*time.Minute)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	r.For(ctx, "idle")
	now = now.Add(5 * time.Minute)
	r.For(ctx, "active")
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())
}

func TestRun_StopsOnCancel(t *testing.T) {
	r := NewRegistry(Deps{API: nopAPI{}, Cart: &mockCartReader{}}, time.Nanosecond)
	r.For(context.Background(), "token")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCustomer_ShippingFailureIsNoticed(t *testing.T) {
	reader := &mockCartReader{}
	r := NewRegistry(Deps{API: nopAPI{}, Cart: reader}, time.Hour)
	ctx := context.Background()
	c := r.For(ctx, "token")
	require.NoError(t, c.Cart.AddItem(item(1, 1)))

	_, err := c.Checkout.Begin(ctx)
	require.NoError(t, err)
	// nopAPI returns no rates, so shipping fails and the flow stops there
	_, err = c.Checkout.SelectAddress(ctx, 5)
	require.Error(t, err)
	assert.Equal(t, 0, reader.invalidates)
	assert.NotEmpty(t, c.Notices.Peek())
}

func TestDrop_ClearsCustomerAndSnapshot(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.RunMigrations())

	ctx := context.Background()
	r := NewRegistry(Deps{API: nopAPI{}, Cart: &mockCartReader{}, Persister: store}, time.Hour)
	require.NoError(t, r.For(ctx, "token").Cart.AddItem(item(42, 1)))

	r.Drop("token")
	r.Drop("never-seen")

	assert.Zero(t, r.Len())
	_, err = store.LoadCart(ctx, cache.Scope("token"))
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
}
