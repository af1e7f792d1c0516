package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/cart"
	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

const orderColumns = `o.id, o.number, o.user_id, o.order_date, o.full_name, o.email, o.phone,
o.shipping_address, o.shipping_city, o.shipping_state, o.shipping_zipcode, o.payment_method,
o.subtotal, o.shipping_fee, o.total_amount, o.status,
(SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id)`

const itemsQuery = `SELECT i.id, i.order_id, i.product_id, p.sku, p.name, i.quantity, i.price
FROM order_items i
JOIN products p ON p.id = i.product_id
WHERE i.order_id = $1
ORDER BY i.id`

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed order repository.
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

func (r *pgRepository) Get(ctx context.Context, orderID int64) (Order, bool, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, orderID))
}

func (r *pgRepository) Items(ctx context.Context, orderID int64) ([]Item, error) {
	return selectItems(ctx, r.pool, orderID)
}

func (r *pgRepository) History(ctx context.Context, orderID int64) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, status, COALESCE(notes, ''), COALESCE(changed_by, 0), changed_at
FROM order_status_history WHERE order_id = $1 ORDER BY changed_at, id`, orderID)
	if err != nil {
		return nil, shared.Persistence("orders: history", err)
	}
	history, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (HistoryEntry, error) {
		var h HistoryEntry
		err := row.Scan(&h.ID, &h.OrderID, &h.Status, &h.Notes, &h.ChangedBy, &h.Timestamp)
		return h, err
	})
	if err != nil {
		return nil, shared.Persistence("orders: history", err)
	}
	return history, nil
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID > 0 {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders o`+clause, args...).Scan(&total); err != nil {
		return nil, 0, shared.Persistence("orders: count", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM orders o%s ORDER BY o.order_date DESC, o.id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.Persistence("orders: list", err)
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		order, _, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.Persistence("orders: list", err)
	}
	return out, total, nil
}

func (t *pgTx) InsertMovement(ctx context.Context, m inventory.Movement) (inventory.Movement, error) {
	return inventory.InsertMovementRow(ctx, t.tx, m)
}

func (t *pgTx) CartLines(ctx context.Context, userID int64, lock bool) ([]cart.Item, error) {
	return cart.LinesForCheckout(ctx, t.tx, userID, lock)
}

func (t *pgTx) LockProducts(ctx context.Context, ids []int64) ([]int64, error) {
	return inventory.LockProductRows(ctx, t.tx, ids)
}

func (t *pgTx) OnHand(ctx context.Context, productID int64) (int, error) {
	return inventory.SelectOnHand(ctx, t.tx, productID)
}

func (t *pgTx) ClearCart(ctx context.Context, userID int64) error {
	return cart.ClearUser(ctx, t.tx, userID)
}

func (t *pgTx) InsertOrder(ctx context.Context, o Order) (Order, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO orders (number, user_id, full_name, email, phone, shipping_address,
shipping_city, shipping_state, shipping_zipcode, payment_method, subtotal, shipping_fee, total_amount, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id, order_date`,
		o.Number, o.UserID, o.Shipping.FullName, o.Shipping.Email, o.Shipping.Phone, o.Shipping.Address,
		o.Shipping.City, o.Shipping.State, o.Shipping.Zipcode, o.PaymentMethod, o.Subtotal, o.ShippingFee,
		o.TotalAmount, string(o.Status)).Scan(&o.ID, &o.OrderDate)
	if err != nil {
		return Order{}, shared.Persistence("orders: insert order", err)
	}
	return o, nil
}

func (t *pgTx) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, quantity, price)
VALUES ($1, $2, $3, $4) RETURNING id`, item.OrderID, item.ProductID, item.Quantity, item.Price).Scan(&item.ID)
	if err != nil {
		return Item{}, shared.Persistence("orders: insert item", err)
	}
	return item, nil
}

func (t *pgTx) InsertHistory(ctx context.Context, entry HistoryEntry) error {
	var changedBy any
	if entry.ChangedBy > 0 {
		changedBy = entry.ChangedBy
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO order_status_history (order_id, status, notes, changed_by)
VALUES ($1, $2, $3, $4)`, entry.OrderID, string(entry.Status), entry.Notes, changedBy)
	if err != nil {
		return shared.Persistence("orders: insert history", err)
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, orderID int64) (Order, bool, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, orderID))
}

func (t *pgTx) Items(ctx context.Context, orderID int64) ([]Item, error) {
	return selectItems(ctx, t.tx, orderID)
}

func (t *pgTx) SetStatus(ctx context.Context, orderID int64, status Status) error {
	if _, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, orderID, string(status)); err != nil {
		return shared.Persistence("orders: set status", err)
	}
	return nil
}

func selectItems(ctx context.Context, q inventory.Querier, orderID int64) ([]Item, error) {
	rows, err := q.Query(ctx, itemsQuery, orderID)
	if err != nil {
		return nil, shared.Persistence("orders: items", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SKU, &it.Name, &it.Quantity, &it.Price)
		return it, err
	})
	if err != nil {
		return nil, shared.Persistence("orders: items", err)
	}
	return items, nil
}

func scanOrder(row pgx.Row) (Order, bool, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.OrderDate, &o.Shipping.FullName, &o.Shipping.Email,
		&o.Shipping.Phone, &o.Shipping.Address, &o.Shipping.City, &o.Shipping.State, &o.Shipping.Zipcode,
		&o.PaymentMethod, &o.Subtotal, &o.ShippingFee, &o.TotalAmount, &o.Status, &o.ItemCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, false, nil
		}
		return Order{}, false, shared.Persistence("orders: read order", err)
	}
	return o, true, nil
}
