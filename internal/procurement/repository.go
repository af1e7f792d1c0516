package procurement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

const poColumns = `po.id, po.number, po.supplier_id, s.name, po.order_date, po.status, po.total_amount,
COALESCE(po.ordered_by, 0), COALESCE(u.username, ''), po.received_at, po.created_at,
(SELECT COUNT(*) FROM purchase_order_items i WHERE i.po_id = po.id)`

const poFrom = `FROM purchase_orders po
JOIN suppliers s ON s.id = po.supplier_id
LEFT JOIN users u ON u.id = po.ordered_by`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Get loads a purchase order header.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseOrder, bool, error) {
	return scanPO(r.pool.QueryRow(ctx, `SELECT `+poColumns+` `+poFrom+` WHERE po.id = $1`, id))
}

// Lines loads a purchase order's lines.
func (r *Repository) Lines(ctx context.Context, poID int64) ([]Line, error) {
	return selectLines(ctx, r.pool, poID)
}

// ListRecent returns the newest purchase orders.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+poColumns+` `+poFrom+` ORDER BY po.order_date DESC, po.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, shared.Persistence("procurement: list", err)
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, _, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Persistence("procurement: list", err)
	}
	return out, nil
}

func (t *txRepo) InsertMovement(ctx context.Context, m inventory.Movement) (inventory.Movement, error) {
	return inventory.InsertMovementRow(ctx, t.tx, m)
}

func (t *txRepo) SupplierExists(ctx context.Context, supplierID int64) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM suppliers WHERE id = $1)`, supplierID).Scan(&exists); err != nil {
		return false, shared.Persistence("procurement: supplier exists", err)
	}
	return exists, nil
}

func (t *txRepo) ProductSuppliers(ctx context.Context, productIDs []int64) (map[int64]int64, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, COALESCE(supplier_id, 0) FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return nil, shared.Persistence("procurement: product suppliers", err)
	}
	defer rows.Close()
	owners := make(map[int64]int64, len(productIDs))
	for rows.Next() {
		var id, supplierID int64
		if err := rows.Scan(&id, &supplierID); err != nil {
			return nil, shared.Persistence("procurement: product suppliers", err)
		}
		owners[id] = supplierID
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Persistence("procurement: product suppliers", err)
	}
	return owners, nil
}

func (t *txRepo) InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, supplier_id, order_date, status, total_amount, ordered_by)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`, po.Number, po.SupplierID, po.OrderDate, string(po.Status), po.TotalAmount, po.OrderedBy).Scan(&po.ID, &po.CreatedAt)
	if err != nil {
		if db.IsForeignKeyViolation(err, "purchase_orders_supplier_id_fkey") {
			return PurchaseOrder{}, ErrUnknownSupplier
		}
		return PurchaseOrder{}, shared.Persistence("procurement: insert po", err)
	}
	return po, nil
}

func (t *txRepo) InsertLine(ctx context.Context, line Line) (Line, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (po_id, product_id, qty_ordered, unit_cost)
VALUES ($1, $2, $3, $4) RETURNING id`, line.POID, line.ProductID, line.QtyOrdered, line.UnitCost).Scan(&line.ID)
	if err != nil {
		if db.IsForeignKeyViolation(err, "purchase_order_items_product_id_fkey") {
			return Line{}, ErrUnknownProduct
		}
		return Line{}, shared.Persistence("procurement: insert line", err)
	}
	return line, nil
}

func (t *txRepo) LockPO(ctx context.Context, id int64) (PurchaseOrder, bool, error) {
	return scanPO(t.tx.QueryRow(ctx, `SELECT `+poColumns+` `+poFrom+` WHERE po.id = $1 FOR UPDATE OF po`, id))
}

func (t *txRepo) Lines(ctx context.Context, poID int64) ([]Line, error) {
	return selectLines(ctx, t.tx, poID)
}

func (t *txRepo) MarkReceived(ctx context.Context, id int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2, received_at = $3 WHERE id = $1`, id, string(StatusReceived), at)
	if err != nil {
		return shared.Persistence("procurement: mark received", err)
	}
	return nil
}

func (t *txRepo) SetStatus(ctx context.Context, id int64, status Status) error {
	if _, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $2 WHERE id = $1`, id, string(status)); err != nil {
		return shared.Persistence("procurement: set status", err)
	}
	return nil
}

func selectLines(ctx context.Context, q inventory.Querier, poID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT i.id, i.po_id, i.product_id, p.sku, p.name, i.qty_ordered, i.unit_cost
FROM purchase_order_items i
JOIN products p ON p.id = i.product_id
WHERE i.po_id = $1
ORDER BY i.id`, poID)
	if err != nil {
		return nil, shared.Persistence("procurement: lines", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Line, error) {
		var l Line
		err := row.Scan(&l.ID, &l.POID, &l.ProductID, &l.SKU, &l.Name, &l.QtyOrdered, &l.UnitCost)
		return l, err
	})
	if err != nil {
		return nil, shared.Persistence("procurement: lines", err)
	}
	return lines, nil
}

func scanPO(row pgx.Row) (PurchaseOrder, bool, error) {
	var (
		po         PurchaseOrder
		receivedAt pgtype.Timestamptz
	)
	err := row.Scan(&po.ID, &po.Number, &po.SupplierID, &po.SupplierName, &po.OrderDate, &po.Status, &po.TotalAmount,
		&po.OrderedBy, &po.OrderedByName, &receivedAt, &po.CreatedAt, &po.ItemCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, false, nil
		}
		return PurchaseOrder{}, false, shared.Persistence("procurement: read po", err)
	}
	if receivedAt.Valid {
		at := receivedAt.Time
		po.ReceivedAt = &at
	}
	return po, true, nil
}
