package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

const itemsQuery = `SELECT c.id, c.product_id, p.sku, p.name, p.unit_price, c.quantity, COALESCE(v.on_hand, 0), c.added_at
FROM cart_items c
JOIN products p ON p.id = c.product_id
LEFT JOIN v_product_stock v ON v.id = c.product_id
WHERE c.user_id = $1
ORDER BY c.added_at DESC, c.id DESC`

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed cart repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

type pgTx struct {
	tx pgx.Tx
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

func (r *pgRepository) Items(ctx context.Context, userID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, itemsQuery, userID)
	if err != nil {
		return nil, shared.Persistence("cart: list items", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.ProductID, &it.SKU, &it.Name, &it.UnitPrice, &it.Quantity, &it.OnHand, &it.AddedAt)
		return it, err
	})
	if err != nil {
		return nil, shared.Persistence("cart: scan items", err)
	}
	return items, nil
}

func (r *pgRepository) Count(ctx context.Context, userID int64) (int, error) {
	return countLines(ctx, r.pool, userID)
}

func (r *pgRepository) Remove(ctx context.Context, userID, lineID int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, lineID, userID); err != nil {
		return shared.Persistence("cart: remove item", err)
	}
	return nil
}

func (r *pgRepository) Clear(ctx context.Context, userID int64) error {
	return ClearUser(ctx, r.pool, userID)
}

func (t *pgTx) LockProduct(ctx context.Context, productID int64) (bool, error) {
	found, err := inventory.LockProductRows(ctx, t.tx, []int64{productID})
	if err != nil {
		return false, err
	}
	return len(found) == 1, nil
}

func (t *pgTx) OnHand(ctx context.Context, productID int64) (int, error) {
	onHand, err := inventory.SelectOnHand(ctx, t.tx, productID)
	if errors.Is(err, inventory.ErrUnknownProduct) {
		return 0, ErrProductNotFound
	}
	return onHand, err
}

func (t *pgTx) LineByProduct(ctx context.Context, userID, productID int64) (Line, bool, error) {
	return scanLine(t.tx.QueryRow(ctx, `SELECT id, user_id, product_id, quantity, added_at
FROM cart_items WHERE user_id = $1 AND product_id = $2 FOR UPDATE`, userID, productID))
}

func (t *pgTx) Line(ctx context.Context, userID, lineID int64, lock bool) (Line, bool, error) {
	query := `SELECT id, user_id, product_id, quantity, added_at
FROM cart_items WHERE id = $1 AND user_id = $2`
	if lock {
		query += " FOR UPDATE"
	}
	return scanLine(t.tx.QueryRow(ctx, query, lineID, userID))
}

func (t *pgTx) InsertLine(ctx context.Context, userID, productID int64, qty int) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO cart_items (user_id, product_id, quantity) VALUES ($1, $2, $3)`, userID, productID, qty)
	if err != nil {
		if db.IsForeignKeyViolation(err, "cart_items_product_id_fkey") {
			return ErrProductNotFound
		}
		return shared.Persistence("cart: insert item", err)
	}
	return nil
}

func (t *pgTx) SetQuantity(ctx context.Context, lineID int64, qty int) error {
	if _, err := t.tx.Exec(ctx, `UPDATE cart_items SET quantity = $2 WHERE id = $1`, lineID, qty); err != nil {
		return shared.Persistence("cart: update quantity", err)
	}
	return nil
}

func (t *pgTx) DeleteLine(ctx context.Context, lineID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, lineID); err != nil {
		return shared.Persistence("cart: delete item", err)
	}
	return nil
}

func (t *pgTx) Count(ctx context.Context, userID int64) (int, error) {
	return countLines(ctx, t.tx, userID)
}

// LinesForCheckout reads the user's cart rows with the current unit price for
// the checkout transaction. With lock set the cart rows are held FOR UPDATE;
// callers lock the products first so cart mutations and checkout take row
// locks in the same order.
func LinesForCheckout(ctx context.Context, q inventory.Querier, userID int64, lock bool) ([]Item, error) {
	query := `SELECT c.id, c.product_id, p.sku, p.name, p.unit_price, c.quantity, c.added_at
FROM cart_items c
JOIN products p ON p.id = c.product_id
WHERE c.user_id = $1
ORDER BY c.product_id`
	if lock {
		query += "\nFOR UPDATE OF c"
	}
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, shared.Persistence("cart: checkout lines", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.ProductID, &it.SKU, &it.Name, &it.UnitPrice, &it.Quantity, &it.AddedAt)
		return it, err
	})
	if err != nil {
		return nil, shared.Persistence("cart: checkout lines", err)
	}
	return items, nil
}

// ClearUser deletes every cart row of userID through q.
func ClearUser(ctx context.Context, q inventory.Querier, userID int64) error {
	if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return shared.Persistence("cart: clear", err)
	}
	return nil
}

func countLines(ctx context.Context, q inventory.Querier, userID int64) (int, error) {
	var count int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM cart_items WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, shared.Persistence("cart: count", err)
	}
	return count, nil
}

func scanLine(row pgx.Row) (Line, bool, error) {
	var l Line
	if err := row.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.AddedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Line{}, false, nil
		}
		return Line{}, false, shared.Persistence("cart: read item", err)
	}
	return l, true, nil
}
