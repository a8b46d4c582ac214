package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tehshkola/apiserver/types"
)

// ProductRepository handles persistence for shop products and their
// availability counters.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, name, price, description, COALESCE(image, ''), stock, is_new, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (types.Product, error) {
	var product types.Product
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Description,
		&product.Image,
		&product.Stock,
		&product.IsNew,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	return product, err
}

func (r *ProductRepository) List(ctx context.Context) ([]types.Product, error) {
	const query = `SELECT ` + productColumns + ` FROM products ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]types.Product, 0)
	byID := make(map[int]int)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		byID[product.ID] = len(products)
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const sizesQuery = `SELECT product_id, size, quantity FROM product_sizes ORDER BY product_id, size`
	sizeRows, err := r.db.QueryContext(ctx, sizesQuery)
	if err != nil {
		return nil, err
	}
	defer sizeRows.Close()

	for sizeRows.Next() {
		var productID, quantity int
		var size string
		if err := sizeRows.Scan(&productID, &size, &quantity); err != nil {
			return nil, err
		}
		if i, ok := byID[productID]; ok {
			if products[i].Sizes == nil {
				products[i].Sizes = make(map[string]int)
			}
			products[i].Sizes[size] = quantity
		}
	}
	return products, sizeRows.Err()
}

func (r *ProductRepository) Get(ctx context.Context, id int) (types.Product, error) {
	const query = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Product{}, ErrNotFound
		}
		return types.Product{}, err
	}

	sizes, err := r.sizes(ctx, id)
	if err != nil {
		return types.Product{}, err
	}
	product.Sizes = sizes
	return product, nil
}

func (r *ProductRepository) sizes(ctx context.Context, productID int) (map[string]int, error) {
	const query = `SELECT size, quantity FROM product_sizes WHERE product_id = $1`
	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sizes map[string]int
	for rows.Next() {
		var size string
		var quantity int
		if err := rows.Scan(&size, &quantity); err != nil {
			return nil, err
		}
		if sizes == nil {
			sizes = make(map[string]int)
		}
		sizes[size] = quantity
	}
	return sizes, rows.Err()
}

// Create inserts a product together with its size rows, if any.
// A product is created with either sizes or flat stock, never both.
func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.Sized() {
		product.Stock = nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Product{}, err
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO products (name, price, description, image, stock, is_new, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.Price,
		product.Description,
		product.Image,
		product.Stock,
		product.IsNew,
		product.CreatedAt,
		product.UpdatedAt,
	).Scan(&product.ID); err != nil {
		return types.Product{}, err
	}

	if err := insertSizes(ctx, tx, product.ID, product.Sizes); err != nil {
		return types.Product{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Product{}, err
	}
	return product, nil
}

// ProductUpdate is a partial update applied by commission staff.
// Setting Stock deletes any size rows; setting Sizes clears the stock
// column. The two tracking modes are mutually exclusive.
type ProductUpdate struct {
	Stock *int
	Sizes map[string]int
	IsNew *bool
}

// Update applies a partial update and returns the resulting product.
func (r *ProductRepository) Update(ctx context.Context, id int, update ProductUpdate) (types.Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Product{}, err
	}
	defer tx.Rollback()

	if update.Stock != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM product_sizes WHERE product_id = $1`, id); err != nil {
			return types.Product{}, err
		}
		if err := execOne(ctx, tx, `UPDATE products SET stock = $1, updated_at = now() WHERE id = $2`, *update.Stock, id); err != nil {
			return types.Product{}, err
		}
	}

	if len(update.Sizes) > 0 {
		if err := execOne(ctx, tx, `UPDATE products SET stock = NULL, updated_at = now() WHERE id = $1`, id); err != nil {
			return types.Product{}, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM product_sizes WHERE product_id = $1`, id); err != nil {
			return types.Product{}, err
		}
		if err := insertSizes(ctx, tx, id, update.Sizes); err != nil {
			return types.Product{}, err
		}
	}

	if update.IsNew != nil {
		if err := execOne(ctx, tx, `UPDATE products SET is_new = $1, updated_at = now() WHERE id = $2`, *update.IsNew, id); err != nil {
			return types.Product{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return types.Product{}, err
	}
	return r.Get(ctx, id)
}

func (r *ProductRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM products WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock atomically takes one unit of flat stock, but only if a unit
// remains. The predicate and the decrement are one statement; two concurrent
// purchases that both saw stock=1 cannot both succeed here. ok is false when
// the stock was already exhausted (or not tracked), with nothing changed.
func (r *ProductRepository) DecrementStock(ctx context.Context, id int) (bool, error) {
	const query = `
		UPDATE products
		SET stock = stock - 1, updated_at = now()
		WHERE id = $1 AND stock >= 1`
	return r.condExec(ctx, query, id)
}

// DecrementSize atomically takes one unit of the named size, with the same
// single-statement guarantee as DecrementStock.
func (r *ProductRepository) DecrementSize(ctx context.Context, id int, size string) (bool, error) {
	const query = `
		UPDATE product_sizes
		SET quantity = quantity - 1
		WHERE product_id = $1 AND size = $2 AND quantity >= 1`
	return r.condExec(ctx, query, id, size)
}

// IncrementStock returns one unit of flat stock, used when a pending order
// is cancelled. No-op for untracked or deleted products.
func (r *ProductRepository) IncrementStock(ctx context.Context, id int) error {
	const query = `
		UPDATE products
		SET stock = stock + 1, updated_at = now()
		WHERE id = $1 AND stock IS NOT NULL`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// IncrementSize returns one unit of the named size.
func (r *ProductRepository) IncrementSize(ctx context.Context, id int, size string) error {
	const query = `
		UPDATE product_sizes
		SET quantity = quantity + 1
		WHERE product_id = $1 AND size = $2`
	_, err := r.db.ExecContext(ctx, query, id, size)
	return err
}

func (r *ProductRepository) condExec(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func insertSizes(ctx context.Context, tx *sql.Tx, productID int, sizes map[string]int) error {
	const query = `INSERT INTO product_sizes (product_id, size, quantity) VALUES ($1, $2, $3)`
	for size, quantity := range sizes {
		if _, err := tx.ExecContext(ctx, query, productID, size, quantity); err != nil {
			return err
		}
	}
	return nil
}

func execOne(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
