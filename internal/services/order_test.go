package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tehshkola/apiserver/internal/store"
	"github.com/tehshkola/apiserver/types"
)

func newOrderFixture(t *testing.T, stock int) (*OrderService, *memOrders, *memWallet, *memCatalog, types.Order) {
	t.Helper()

	catalog := newMemCatalog(&types.Product{ID: 1, Name: "Футболка", Price: 60, Stock: intPtr(stock)})
	wallet := newMemWallet(map[int]int{7: 40})
	orders := newMemOrders()
	svc := NewOrderService(orders, wallet, catalog, nil, zap.NewNop())

	placed, err := orders.Create(context.Background(), types.Order{
		UserID:      7,
		UserName:    "Иван",
		ProductID:   1,
		ProductName: "Футболка",
		Price:       60,
	})
	require.NoError(t, err)
	return svc, orders, wallet, catalog, placed
}

func TestOrderComplete(t *testing.T) {
	svc, orders, wallet, _, placed := newOrderFixture(t, 0)

	require.NoError(t, svc.Complete(context.Background(), placed.ID))

	current, err := orders.Get(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderCompleted, current.Status)

	// Completion pays out nothing.
	assert.Equal(t, 40, wallet.balance(7))

	// Completing again is a no-op, cancelling afterwards is not allowed.
	assert.NoError(t, svc.Complete(context.Background(), placed.ID))
	assert.ErrorIs(t, svc.Cancel(context.Background(), placed.ID), ErrInvalidTransition)
	assert.Equal(t, 40, wallet.balance(7))
}

func TestOrderCancelRefundsOnce(t *testing.T) {
	svc, orders, wallet, catalog, placed := newOrderFixture(t, 0)

	require.NoError(t, svc.Cancel(context.Background(), placed.ID))

	current, err := orders.Get(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderCancelled, current.Status)
	assert.Equal(t, 100, wallet.balance(7))
	assert.Equal(t, 1, catalog.stock(1))

	// A repeated cancel is a no-op and must not refund again.
	require.NoError(t, svc.Cancel(context.Background(), placed.ID))
	assert.Equal(t, 100, wallet.balance(7))
	assert.Equal(t, 1, catalog.stock(1))
}

func TestOrderCancelConcurrent(t *testing.T) {
	svc, _, wallet, _, placed := newOrderFixture(t, 0)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Cancel(context.Background(), placed.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 100, wallet.balance(7))
}

func TestOrderCancelRefundsPriceSnapshot(t *testing.T) {
	svc, _, wallet, catalog, placed := newOrderFixture(t, 0)

	// The product got more expensive after the purchase; the refund still
	// returns what was actually paid.
	catalog.mu.Lock()
	catalog.products[1].Price = 999
	catalog.mu.Unlock()

	require.NoError(t, svc.Cancel(context.Background(), placed.ID))
	assert.Equal(t, 100, wallet.balance(7))
}

func TestOrderCancelUserGone(t *testing.T) {
	svc, orders, wallet, _, placed := newOrderFixture(t, 0)

	wallet.mu.Lock()
	delete(wallet.coins, 7)
	wallet.mu.Unlock()

	// The refund has nowhere to go, but the cancellation itself stands.
	require.NoError(t, svc.Cancel(context.Background(), placed.ID))

	current, err := orders.Get(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderCancelled, current.Status)
}

func TestOrderSetStatus(t *testing.T) {
	svc, _, _, _, placed := newOrderFixture(t, 0)

	// Re-requesting the current state succeeds without side effects.
	assert.NoError(t, svc.SetStatus(context.Background(), placed.ID, types.OrderPending))

	assert.ErrorIs(t, svc.SetStatus(context.Background(), placed.ID, "shipped"), ErrInvalidTransition)

	require.NoError(t, svc.SetStatus(context.Background(), placed.ID, types.OrderCompleted))

	// A completed order cannot drift back to pending.
	assert.ErrorIs(t, svc.SetStatus(context.Background(), placed.ID, types.OrderPending), ErrInvalidTransition)
}

func TestOrderSetStatusNotFound(t *testing.T) {
	svc, _, _, _, _ := newOrderFixture(t, 0)

	err := svc.SetStatus(context.Background(), 99, types.OrderCancelled)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOrderDeletePendingRefunds(t *testing.T) {
	svc, orders, wallet, catalog, placed := newOrderFixture(t, 0)

	require.NoError(t, svc.Delete(context.Background(), placed.ID))

	_, err := orders.Get(context.Background(), placed.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 100, wallet.balance(7))
	assert.Equal(t, 1, catalog.stock(1))
}

func TestOrderDeleteCancelledNoDoubleRefund(t *testing.T) {
	svc, orders, wallet, _, placed := newOrderFixture(t, 0)

	require.NoError(t, svc.Cancel(context.Background(), placed.ID))
	require.NoError(t, svc.Delete(context.Background(), placed.ID))

	_, err := orders.Get(context.Background(), placed.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 100, wallet.balance(7))
}

func TestOrderCancelRestocksSized(t *testing.T) {
	catalog := newMemCatalog(&types.Product{
		ID: 1, Name: "Худи", Price: 80,
		Sizes: map[string]int{"M": 0},
	})
	wallet := newMemWallet(map[int]int{7: 0})
	orders := newMemOrders()
	svc := NewOrderService(orders, wallet, catalog, nil, zap.NewNop())

	placed, err := orders.Create(context.Background(), types.Order{
		UserID: 7, ProductID: 1, Size: "M", Price: 80,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), placed.ID))
	assert.Equal(t, 80, wallet.balance(7))
	assert.Equal(t, 1, catalog.sizeQuantity(1, "M"))
}
