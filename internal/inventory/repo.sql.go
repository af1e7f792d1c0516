package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Querier is satisfied by pgx.Tx and *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction; callers
// lock product rows before reading stock.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// OnHand reads the derived stock of one product.
func (r *Repository) OnHand(ctx context.Context, productID int64) (int, error) {
	return SelectOnHand(ctx, r.pool, productID)
}

// StreamMovements scans matching rows one at a time into yield.
func (r *Repository) StreamMovements(ctx context.Context, filter MovementFilter, yield func(Movement) bool) error {
	var (
		where []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProductID > 0 {
		add("m.product_id = $%d", filter.ProductID)
	}
	if filter.Type != "" {
		add("m.movement_type = $%d", string(filter.Type))
	}
	if !filter.From.IsZero() {
		add("m.moved_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("m.moved_at < $%d", filter.To)
	}
	query := `SELECT m.id, m.product_id, p.name, m.movement_type, m.qty, m.reference, COALESCE(m.moved_by, 0), COALESCE(u.username, ''), m.moved_at
FROM stock_movements m
JOIN products p ON p.id = m.product_id
LEFT JOIN users u ON u.id = m.moved_by`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY m.moved_at DESC, m.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return shared.Persistence("inventory: list movements", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ProductName, &m.Type, &m.Qty, &m.Reference, &m.MovedBy, &m.MovedByName, &m.MovedAt); err != nil {
			return shared.Persistence("inventory: scan movement", err)
		}
		if !yield(m) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return shared.Persistence("inventory: list movements", err)
	}
	return nil
}

func (t *txRepository) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	return InsertMovementRow(ctx, t.tx, m)
}

func (t *txRepository) LockProducts(ctx context.Context, ids []int64) ([]int64, error) {
	return LockProductRows(ctx, t.tx, ids)
}

func (t *txRepository) OnHand(ctx context.Context, productID int64) (int, error) {
	return SelectOnHand(ctx, t.tx, productID)
}

// InsertMovementRow appends m through q and returns it with id and timestamp.
func InsertMovementRow(ctx context.Context, q Querier, m Movement) (Movement, error) {
	err := q.QueryRow(ctx, `INSERT INTO stock_movements (product_id, movement_type, qty, reference, moved_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, moved_at`, m.ProductID, string(m.Type), m.Qty, m.Reference, nullInt(m.MovedBy)).Scan(&m.ID, &m.MovedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err, "stock_movements_product_id_fkey") {
			return Movement{}, ErrUnknownProduct
		}
		return Movement{}, shared.Persistence("inventory: insert movement", err)
	}
	return m, nil
}

// LockProductRows locks the product rows in ascending id order so concurrent
// stock consumers queue behind each other. It returns the ids that exist.
func LockProductRows(ctx context.Context, q Querier, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, shared.Persistence("inventory: lock products", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, shared.Persistence("inventory: lock products", err)
	}
	return found, nil
}

// SelectOnHand reads the derived, zero-clamped stock of productID.
func SelectOnHand(ctx context.Context, q Querier, productID int64) (int, error) {
	var onHand int
	err := q.QueryRow(ctx, `SELECT on_hand FROM v_product_stock WHERE id = $1`, productID).Scan(&onHand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUnknownProduct
		}
		return 0, shared.Persistence("inventory: on hand", err)
	}
	return onHand, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
