package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tehshkola/apiserver/types"
)

// UserRepository handles persistence for users and their coin balances.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, COALESCE(phone, ''), coins, verified, role, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Phone,
		&user.Coins,
		&user.Verified,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (name, phone, coins, verified, role, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Name,
		user.Phone,
		user.Coins,
		user.Verified,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// UpdateName changes the user's display name.
func (r *UserRepository) UpdateName(ctx context.Context, id int, name string) error {
	const query = `UPDATE users SET name = $1, updated_at = $2 WHERE id = $3`
	return r.exec(ctx, query, name, time.Now(), id)
}

// UpdatePhone changes the user's phone number. An empty phone clears it.
func (r *UserRepository) UpdatePhone(ctx context.Context, id int, phone string) error {
	const query = `UPDATE users SET phone = NULLIF($1, ''), updated_at = $2 WHERE id = $3`
	return r.exec(ctx, query, phone, time.Now(), id)
}

// Debit atomically subtracts amount coins from the user's balance, but only
// if the current balance covers it. The predicate and the write are a single
// statement, so two concurrent debits can never overdraw the balance. On
// success it returns the new balance; ok is false when the balance was
// insufficient (or the user does not exist), with nothing changed.
func (r *UserRepository) Debit(ctx context.Context, id, amount int) (balance int, ok bool, err error) {
	const query = `
		UPDATE users
		SET coins = coins - $2, updated_at = now()
		WHERE id = $1 AND coins >= $2
		RETURNING coins`
	err = r.db.QueryRowContext(ctx, query, id, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return balance, true, nil
}

// Credit atomically adds amount coins to the user's balance and returns the
// new balance. Used for purchase compensation and cancellation refunds.
func (r *UserRepository) Credit(ctx context.Context, id, amount int) (int, error) {
	const query = `
		UPDATE users
		SET coins = coins + $2, updated_at = now()
		WHERE id = $1
		RETURNING coins`
	var balance int
	if err := r.db.QueryRowContext(ctx, query, id, amount).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
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

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
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
