package services

import (
	"context"

	"github.com/tehshkola/apiserver/internal/store"
	"github.com/tehshkola/apiserver/types"
)

// ProductAdminRepository defines the commission-side CRUD for products.
// The one-of invariant between flat stock and sizes is enforced by the
// repository inside a transaction.
type ProductAdminRepository interface {
	Create(ctx context.Context, product types.Product) (types.Product, error)
	Update(ctx context.Context, id int, update store.ProductUpdate) (types.Product, error)
	Delete(ctx context.Context, id int) error
}

// ProductService encapsulates commission product management.
type ProductService struct {
	repo ProductAdminRepository
}

func NewProductService(repo ProductAdminRepository) *ProductService {
	return &ProductService{repo: repo}
}

func (s *ProductService) Create(ctx context.Context, product types.Product) (types.Product, error) {
	return s.repo.Create(ctx, product)
}

func (s *ProductService) Update(ctx context.Context, id int, update store.ProductUpdate) (types.Product, error) {
	return s.repo.Update(ctx, id, update)
}

func (s *ProductService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
