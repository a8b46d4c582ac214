package services

import (
	"context"
	"errors"

	"github.com/tehshkola/apiserver/internal/store"
	"github.com/tehshkola/apiserver/types"
	"go.uber.org/zap"
)

// OrderRepository defines persistence operations for orders. Transition must
// apply the status change only if the order currently holds the source
// status, atomically, reporting whether it won.
type OrderRepository interface {
	Create(ctx context.Context, order types.Order) (types.Order, error)
	Get(ctx context.Context, id int) (types.Order, error)
	List(ctx context.Context) ([]types.Order, error)
	Transition(ctx context.Context, id int, from, to types.OrderStatus) (bool, error)
	Delete(ctx context.Context, id int) error
}

// OrderService drives the order lifecycle:
//
//	pending --(complete)--> completed
//	pending --(cancel)----> cancelled, refunding the price snapshot
//
// Both target states are terminal. Requesting the state an order is already
// in is a no-op success; any other transition out of a terminal state is
// ErrInvalidTransition. The refund fires exactly once, on the
// pending->cancelled edge only, serialized by the conditional Transition.
type OrderService struct {
	orders  OrderRepository
	wallet  WalletRepository
	catalog CatalogRepository
	events  *OrderEvents
	logger  *zap.Logger
}

func NewOrderService(
	orders OrderRepository,
	wallet WalletRepository,
	catalog CatalogRepository,
	events *OrderEvents,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:  orders,
		wallet:  wallet,
		catalog: catalog,
		events:  events,
		logger:  logger,
	}
}

func (s *OrderService) List(ctx context.Context) ([]types.Order, error) {
	return s.orders.List(ctx)
}

// SetStatus applies a requested lifecycle transition.
func (s *OrderService) SetStatus(ctx context.Context, id int, status types.OrderStatus) error {
	switch status {
	case types.OrderCompleted:
		return s.Complete(ctx, id)
	case types.OrderCancelled:
		return s.Cancel(ctx, id)
	case types.OrderPending:
		order, err := s.orders.Get(ctx, id)
		if err != nil {
			return err
		}
		if order.Status == types.OrderPending {
			return nil
		}
		return ErrInvalidTransition
	default:
		return ErrInvalidTransition
	}
}

// Complete marks a pending order completed.
func (s *OrderService) Complete(ctx context.Context, id int) error {
	ok, err := s.orders.Transition(ctx, id, types.OrderPending, types.OrderCompleted)
	if err != nil {
		return err
	}
	if !ok {
		order, err := s.orders.Get(ctx, id)
		if err != nil {
			return err
		}
		if order.Status == types.OrderCompleted {
			return nil
		}
		return ErrInvalidTransition
	}

	s.events.StatusChanged(ctx, id, types.OrderCompleted)
	return nil
}

// Cancel cancels a pending order and credits back exactly the price
// snapshot stored on the order, not the product's current price. The
// conditional transition picks a single winner among concurrent
// cancellations, so a double cancel can never refund twice.
func (s *OrderService) Cancel(ctx context.Context, id int) error {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.orders.Transition(ctx, id, types.OrderPending, types.OrderCancelled)
	if err != nil {
		return err
	}
	if !ok {
		current, err := s.orders.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == types.OrderCancelled {
			return nil
		}
		return ErrInvalidTransition
	}

	if _, err := s.wallet.Credit(ctx, order.UserID, order.Price); err != nil {
		// The user account may be gone; the cancellation itself stands.
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("cancellation refund failed",
				zap.Int("order_id", order.ID),
				zap.Int("user_id", order.UserID),
				zap.Int("price", order.Price),
				zap.Error(err),
			)
			return err
		}
	}

	s.restock(ctx, order)
	s.events.StatusChanged(ctx, id, types.OrderCancelled)
	return nil
}

// Delete removes an order. Deleting a still-pending order cancels it first,
// with the refund that implies.
func (s *OrderService) Delete(ctx context.Context, id int) error {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return err
	}

	if order.Status == types.OrderPending {
		if err := s.Cancel(ctx, id); err != nil {
			return err
		}
	}

	return s.orders.Delete(ctx, id)
}

// restock returns the cancelled unit to the product counters. Best effort:
// the product may have been deleted or switched tracking mode since the
// purchase, and the refund must not fail because of it.
func (s *OrderService) restock(ctx context.Context, order types.Order) {
	var err error
	if order.Size != "" {
		err = s.catalog.IncrementSize(ctx, order.ProductID, order.Size)
	} else {
		err = s.catalog.IncrementStock(ctx, order.ProductID)
	}
	if err != nil {
		s.logger.Warn("restock after cancellation failed",
			zap.Int("order_id", order.ID),
			zap.Int("product_id", order.ProductID),
			zap.Error(err),
		)
	}
}
