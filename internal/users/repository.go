package users

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/auth"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool     *pgxpool.Pool
	accounts *auth.PGRepository
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, accounts: auth.NewRepository(pool)}
}

// ListUsers returns every account ordered by role then username.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, username, email, role, created_at FROM users ORDER BY role, username`)
	if err != nil {
		return nil, shared.Persistence("users: list", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		var (
			u    User
			role string
		)
		err := row.Scan(&u.ID, &u.Username, &u.Email, &role, &u.CreatedAt)
		u.Role = shared.Role(role)
		return u, err
	})
	if err != nil {
		return nil, shared.Persistence("users: list", err)
	}
	return out, nil
}

// CreateUser stores a new account.
func (r *Repository) CreateUser(ctx context.Context, account auth.NewAccount) (auth.User, error) {
	return r.accounts.CreateUser(ctx, account)
}

// SetRole updates a user's role, reporting whether the user exists.
func (r *Repository) SetRole(ctx context.Context, id int64, role shared.Role) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, string(role))
	if err != nil {
		return false, shared.Persistence("users: set role", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteUser removes a user, reporting whether the user existed.
func (r *Repository) DeleteUser(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err, "orders_user_id_fkey") {
			return false, ErrUserHasOrders
		}
		return false, shared.Persistence("users: delete", err)
	}
	return tag.RowsAffected() > 0, nil
}
