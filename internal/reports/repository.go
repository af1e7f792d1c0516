package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Repository provides read-only report queries over PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const movementSelect = `SELECT m.id, m.moved_at, p.sku, p.name, m.movement_type, m.qty, m.reference, COALESCE(u.username, '')
FROM stock_movements m
JOIN products p ON p.id = m.product_id
LEFT JOIN users u ON u.id = m.moved_by`

const poSelect = `SELECT po.id, po.number, po.order_date, po.status, po.total_amount, po.supplier_id, s.name, COALESCE(u.username, '')
FROM purchase_orders po
JOIN suppliers s ON s.id = po.supplier_id
LEFT JOIN users u ON u.id = po.ordered_by`

// InventoryRows returns every product with its reported on-hand quantity.
func (r *Repository) InventoryRows(ctx context.Context) ([]InventoryRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.sku, p.name, COALESCE(s.name, ''), p.reorder_level, st.on_hand, p.unit_price
FROM products p
JOIN v_product_stock st ON st.id = p.id
LEFT JOIN suppliers s ON s.id = p.supplier_id
ORDER BY p.name, p.id`)
	if err != nil {
		return nil, shared.Persistence("reports.inventory", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (InventoryRow, error) {
		var item InventoryRow
		err := row.Scan(&item.ID, &item.SKU, &item.Name, &item.SupplierName, &item.ReorderLevel, &item.OnHand, &item.UnitPrice)
		return item, err
	})
	if err != nil {
		return nil, shared.Persistence("reports.inventory", err)
	}
	return out, nil
}

// Movements lists ledger entries in [from, until), newest first.
func (r *Repository) Movements(ctx context.Context, from, until time.Time) ([]MovementRow, error) {
	rows, err := r.pool.Query(ctx, movementSelect+`
WHERE m.moved_at >= $1 AND m.moved_at < $2
ORDER BY m.moved_at DESC, m.id DESC`, from, until)
	if err != nil {
		return nil, shared.Persistence("reports.movements", err)
	}
	return collectMovements(rows)
}

// RecentMovements returns the latest ledger entries.
func (r *Repository) RecentMovements(ctx context.Context, limit int) ([]MovementRow, error) {
	rows, err := r.pool.Query(ctx, movementSelect+` ORDER BY m.moved_at DESC, m.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, shared.Persistence("reports.recent_movements", err)
	}
	return collectMovements(rows)
}

// DailyMovementCounts counts movements per day and type in [from, until).
func (r *Repository) DailyMovementCounts(ctx context.Context, from, until time.Time) ([]DailyCount, error) {
	rows, err := r.pool.Query(ctx, `SELECT to_char((moved_at AT TIME ZONE 'UTC')::date, 'YYYY-MM-DD'), movement_type, COUNT(*)
FROM stock_movements
WHERE moved_at >= $1 AND moved_at < $2
GROUP BY 1, 2
ORDER BY 1, 2`, from, until)
	if err != nil {
		return nil, shared.Persistence("reports.daily_movements", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DailyCount, error) {
		var c DailyCount
		err := row.Scan(&c.Date, &c.Type, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, shared.Persistence("reports.daily_movements", err)
	}
	return out, nil
}

// PurchaseOrders lists purchase orders dated within [from, to].
func (r *Repository) PurchaseOrders(ctx context.Context, from, to time.Time) ([]PurchaseOrderRow, error) {
	rows, err := r.pool.Query(ctx, poSelect+`
WHERE po.order_date BETWEEN $1 AND $2
ORDER BY po.order_date DESC, po.id DESC`, from, to)
	if err != nil {
		return nil, shared.Persistence("reports.purchase_orders", err)
	}
	return collectPOs(rows)
}

// RecentPurchaseOrders returns the latest purchase orders.
func (r *Repository) RecentPurchaseOrders(ctx context.Context, limit int) ([]PurchaseOrderRow, error) {
	rows, err := r.pool.Query(ctx, poSelect+` ORDER BY po.order_date DESC, po.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, shared.Persistence("reports.recent_purchase_orders", err)
	}
	return collectPOs(rows)
}

// Suppliers aggregates purchase orders per supplier within [from, to].
// Delivery time runs from the order date to the first PURCHASE movement
// referencing the order.
func (r *Repository) Suppliers(ctx context.Context, from, to time.Time) ([]SupplierRow, error) {
	rows, err := r.pool.Query(ctx, `WITH po AS (
	SELECT po.id, po.supplier_id, po.total_amount, po.order_date,
	       (SELECT MIN(m.moved_at) FROM stock_movements m
	         WHERE m.movement_type = 'PURCHASE' AND m.reference = 'PO#' || po.id) AS delivered_at
	FROM purchase_orders po
	WHERE po.order_date BETWEEN $1 AND $2
)
SELECT s.id, s.name, COALESCE(s.contact_name, ''), COALESCE(s.email, ''),
       COUNT(po.id), COALESCE(SUM(po.total_amount), 0), COUNT(po.delivered_at),
       AVG(EXTRACT(EPOCH FROM (po.delivered_at - po.order_date::timestamptz)) / 86400)::float8
FROM suppliers s
LEFT JOIN po ON po.supplier_id = s.id
GROUP BY s.id, s.name, s.contact_name, s.email
ORDER BY 6 DESC, s.name`, from, to)
	if err != nil {
		return nil, shared.Persistence("reports.suppliers", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SupplierRow, error) {
		var s SupplierRow
		err := row.Scan(&s.ID, &s.Name, &s.ContactName, &s.Email, &s.OrderCount, &s.TotalSpend, &s.DeliveredOrders, &s.AvgDeliveryDays)
		return s, err
	})
	if err != nil {
		return nil, shared.Persistence("reports.suppliers", err)
	}
	return out, nil
}

func collectMovements(rows pgx.Rows) ([]MovementRow, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (MovementRow, error) {
		var m MovementRow
		err := row.Scan(&m.ID, &m.MovedAt, &m.SKU, &m.ProductName, &m.Type, &m.Qty, &m.Reference, &m.MovedBy)
		return m, err
	})
	if err != nil {
		return nil, shared.Persistence("reports.movements", err)
	}
	return out, nil
}

func collectPOs(rows pgx.Rows) ([]PurchaseOrderRow, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PurchaseOrderRow, error) {
		var po PurchaseOrderRow
		err := row.Scan(&po.ID, &po.Number, &po.OrderDate, &po.Status, &po.TotalAmount, &po.SupplierID, &po.SupplierName, &po.OrderedBy)
		return po, err
	})
	if err != nil {
		return nil, shared.Persistence("reports.purchase_orders", err)
	}
	return out, nil
}
