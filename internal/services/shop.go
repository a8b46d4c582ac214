package services

import (
	"context"

	"github.com/tehshkola/apiserver/types"
	"go.uber.org/zap"
)

// WalletRepository defines the conditional balance operations the purchase
// flow relies on. Debit must evaluate its predicate and apply the write
// atomically at the storage layer.
type WalletRepository interface {
	Debit(ctx context.Context, id, amount int) (balance int, ok bool, err error)
	Credit(ctx context.Context, id, amount int) (int, error)
}

// CatalogRepository defines product reads and the atomic stock counters.
type CatalogRepository interface {
	List(ctx context.Context) ([]types.Product, error)
	Get(ctx context.Context, id int) (types.Product, error)
	DecrementStock(ctx context.Context, id int) (bool, error)
	DecrementSize(ctx context.Context, id int, size string) (bool, error)
	IncrementStock(ctx context.Context, id int) error
	IncrementSize(ctx context.Context, id int, size string) error
}

// ShopService runs the shop: product listing and the purchase saga.
type ShopService struct {
	catalog CatalogRepository
	wallet  WalletRepository
	orders  OrderRepository
	events  *OrderEvents
	logger  *zap.Logger
}

func NewShopService(
	catalog CatalogRepository,
	wallet WalletRepository,
	orders OrderRepository,
	events *OrderEvents,
	logger *zap.Logger,
) *ShopService {
	return &ShopService{
		catalog: catalog,
		wallet:  wallet,
		orders:  orders,
		events:  events,
		logger:  logger,
	}
}

// Products returns the shop catalog.
func (s *ShopService) Products(ctx context.Context) ([]types.Product, error) {
	return s.catalog.List(ctx)
}

// Purchase debits the buyer, takes one unit of stock and records a pending
// order, returning the buyer's new balance. userName is the verified display
// name from the session, snapshotted onto the order.
//
// The flow is a saga over single-field conditional updates, not a
// multi-table transaction:
//
//  1. conditional debit   — fails with ErrInsufficientFunds, nothing changed;
//  2. conditional stock decrement — on a miss (stock sold out between the
//     availability check and here) the debit is compensated by an exact
//     re-credit, then ErrOutOfStock;
//  3. order insert — a crash between 2 and 3 leaves a paid, stock-decremented
//     purchase without an order record. Accepted and documented; the engine
//     does not hide it behind a heavier transactional mechanism.
//
// No two concurrent purchases can take the same unit of stock or overdraw a
// balance: both counters only ever move through predicate updates evaluated
// atomically by the storage layer.
func (s *ShopService) Purchase(ctx context.Context, userID int, userName string, productID int, size string) (int, error) {
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return 0, err
	}

	switch {
	case product.Sized():
		quantity, ok := product.Sizes[size]
		if size == "" || !ok {
			return 0, ErrInvalidSelection
		}
		if quantity <= 0 {
			return 0, ErrOutOfStock
		}
	case product.Stock != nil:
		size = ""
		if *product.Stock <= 0 {
			return 0, ErrOutOfStock
		}
	default:
		// Untracked product, always available.
		size = ""
	}

	balance, ok, err := s.wallet.Debit(ctx, userID, product.Price)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrInsufficientFunds
	}

	if product.Tracked() {
		var taken bool
		if product.Sized() {
			taken, err = s.catalog.DecrementSize(ctx, productID, size)
		} else {
			taken, err = s.catalog.DecrementStock(ctx, productID)
		}
		if err == nil && !taken {
			// Lost the race for the last unit. The compensating credit is
			// unconditional cleanup, not best effort: the buyer has paid and
			// receives nothing, so the exact price must come back.
			if _, creditErr := s.wallet.Credit(ctx, userID, product.Price); creditErr != nil {
				s.logger.Error("purchase compensation failed, balance is short",
					zap.Int("user_id", userID),
					zap.Int("product_id", productID),
					zap.Int("price", product.Price),
					zap.Error(creditErr),
				)
				return 0, creditErr
			}
			return 0, ErrOutOfStock
		}
		if err != nil {
			if _, creditErr := s.wallet.Credit(ctx, userID, product.Price); creditErr != nil {
				s.logger.Error("purchase compensation failed, balance is short",
					zap.Int("user_id", userID),
					zap.Int("product_id", productID),
					zap.Int("price", product.Price),
					zap.Error(creditErr),
				)
			}
			return 0, err
		}
	}

	order, err := s.orders.Create(ctx, types.Order{
		UserID:      userID,
		UserName:    userName,
		ProductID:   product.ID,
		ProductName: product.Name,
		Size:        size,
		Price:       product.Price,
	})
	if err != nil {
		// The debit and the stock decrement stand; see the crash window
		// note above.
		s.logger.Error("order insert failed after paid purchase",
			zap.Int("user_id", userID),
			zap.Int("product_id", productID),
			zap.Error(err),
		)
		return 0, err
	}

	s.events.Created(ctx, order)

	return balance, nil
}
