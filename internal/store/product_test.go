package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecrementStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE products`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewProductRepository(db)
	ok, err := repo.DecrementStock(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStockExhausted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE products`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewProductRepository(db)
	ok, err := repo.DecrementStock(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, ok, "exhausted stock must report zero rows affected")
}

func TestDecrementSize(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE product_sizes`).
		WithArgs(5, "M").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewProductRepository(db)
	ok, err := repo.DecrementSize(context.Background(), 5, "M")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateStockClearsSizes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stock := 10
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM product_sizes`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE products SET stock`).
		WithArgs(stock, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT .+ FROM products WHERE id`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "price", "description", "image", "stock", "is_new", "created_at", "updated_at",
		}).AddRow(5, "Футболка", 100, "", "", stock, false, testTime(), testTime()))
	mock.ExpectQuery(`SELECT size, quantity FROM product_sizes`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"size", "quantity"}))

	repo := NewProductRepository(db)
	product, err := repo.Update(context.Background(), 5, ProductUpdate{Stock: &stock})
	require.NoError(t, err)
	require.NotNil(t, product.Stock)
	assert.Equal(t, 10, *product.Stock)
	assert.False(t, product.Sized())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSizesClearsStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE products SET stock = NULL`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM product_sizes`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO product_sizes`).
		WithArgs(5, "S", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT .+ FROM products WHERE id`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "price", "description", "image", "stock", "is_new", "created_at", "updated_at",
		}).AddRow(5, "Футболка", 100, "", "", nil, false, testTime(), testTime()))
	mock.ExpectQuery(`SELECT size, quantity FROM product_sizes`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"size", "quantity"}).AddRow("S", 2))

	repo := NewProductRepository(db)
	product, err := repo.Update(context.Background(), 5, ProductUpdate{Sizes: map[string]int{"S": 2}})
	require.NoError(t, err)
	assert.Nil(t, product.Stock)
	assert.Equal(t, map[string]int{"S": 2}, product.Sizes)
	assert.NoError(t, mock.ExpectationsWereMet())
}
