package products

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	mdshared "github.com/odyssey-erp/odyssey-wms/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filters mdshared.ListFilters) ([]ProductView, int, error)
	Get(ctx context.Context, id int64) (ProductView, error)
}

// TxRepository exposes the writes of a product transaction.
type TxRepository interface {
	inventory.MovementWriter
	SupplierExists(ctx context.Context, id int64) (bool, error)
	Insert(ctx context.Context, product Product) (Product, error)
	GetForUpdate(ctx context.Context, id int64) (Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	HasHistory(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

type txRepository struct {
	tx pgx.Tx
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const viewColumns = `p.id, p.sku, p.name, p.description, COALESCE(p.image_ref, ''), COALESCE(p.thumbnail_ref, ''),
p.unit_price, p.reorder_level, COALESCE(p.supplier_id, 0), p.created_at, p.updated_at,
COALESCE(s.name, ''), st.on_hand`

const viewFrom = `FROM products p
JOIN v_product_stock st ON st.id = p.id
LEFT JOIN suppliers s ON s.id = p.supplier_id`

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]ProductView, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.SupplierID != nil {
		argCount++
		where += ` AND p.supplier_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.SupplierID)
	}
	if filters.Search != "" {
		argCount++
		where += ` AND (p.name ILIKE $` + strconv.Itoa(argCount) + ` OR p.sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.InStockOnly {
		where += ` AND st.on_hand > 0`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) `+viewFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, shared.Persistence("products: count", err)
	}

	query := `SELECT ` + viewColumns + ` ` + viewFrom + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filters.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.Persistence("products: list", err)
	}
	defer rows.Close()

	views := []ProductView{}
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, 0, shared.Persistence("products: scan", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.Persistence("products: list", err)
	}
	return views, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (ProductView, error) {
	view, err := scanView(r.db.QueryRow(ctx, `SELECT `+viewColumns+` `+viewFrom+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductView{}, ErrNotFound
		}
		return ProductView{}, shared.Persistence("products: get", err)
	}
	return view, nil
}

func scanView(row pgx.Row) (ProductView, error) {
	var v ProductView
	err := row.Scan(&v.ID, &v.SKU, &v.Name, &v.Description, &v.ImageRef, &v.ThumbnailRef,
		&v.UnitPrice, &v.ReorderLevel, &v.SupplierID, &v.CreatedAt, &v.UpdatedAt,
		&v.SupplierName, &v.OnHand)
	return v, err
}

func (t *txRepository) InsertMovement(ctx context.Context, m inventory.Movement) (inventory.Movement, error) {
	return inventory.InsertMovementRow(ctx, t.tx, m)
}

func (t *txRepository) SupplierExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, shared.Persistence("products: supplier exists", err)
	}
	return exists, nil
}

func (t *txRepository) Insert(ctx context.Context, p Product) (Product, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO products (sku, name, description, image_ref, thumbnail_ref, unit_price, reorder_level, supplier_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at, updated_at`,
		p.SKU, p.Name, p.Description, nullString(p.ImageRef), nullString(p.ThumbnailRef), p.UnitPrice, p.ReorderLevel, nullInt(p.SupplierID),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, mapWriteError("products: insert", err)
	}
	return p, nil
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := t.tx.QueryRow(ctx, `SELECT id, sku, name, description, COALESCE(image_ref, ''), COALESCE(thumbnail_ref, ''),
unit_price, reorder_level, COALESCE(supplier_id, 0), created_at, updated_at
FROM products WHERE id = $1 FOR UPDATE`, id).Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.ImageRef, &p.ThumbnailRef,
		&p.UnitPrice, &p.ReorderLevel, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, shared.Persistence("products: get for update", err)
	}
	return p, nil
}

func (t *txRepository) Update(ctx context.Context, p Product) (Product, error) {
	err := t.tx.QueryRow(ctx, `UPDATE products
SET sku = $1, name = $2, description = $3, image_ref = $4, thumbnail_ref = $5, unit_price = $6, reorder_level = $7, supplier_id = $8, updated_at = NOW()
WHERE id = $9
RETURNING updated_at`,
		p.SKU, p.Name, p.Description, nullString(p.ImageRef), nullString(p.ThumbnailRef), p.UnitPrice, p.ReorderLevel, nullInt(p.SupplierID), p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, mapWriteError("products: update", err)
	}
	return p, nil
}

func (t *txRepository) HasHistory(ctx context.Context, id int64) (bool, error) {
	var used bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_movements WHERE product_id = $1)
OR EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)
OR EXISTS (SELECT 1 FROM purchase_order_items WHERE product_id = $1)`, id).Scan(&used)
	if err != nil {
		return false, shared.Persistence("products: history", err)
	}
	return used, nil
}

func (t *txRepository) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err, "") {
			return ErrProductInUse
		}
		return shared.Persistence("products: delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteError(op string, err error) error {
	switch {
	case db.IsUniqueViolation(err, "products_sku_key"):
		return ErrDuplicateSKU
	case db.IsForeignKeyViolation(err, "products_supplier_id_fkey"):
		return ErrUnknownSupplier
	default:
		return shared.Persistence(op, err)
	}
}

func sortOrder(sortBy, sortDir string) string {
	dir := mdshared.SortDirection(sortDir)
	switch sortBy {
	case "sku":
		return "p.sku " + dir
	case "price":
		return "p.unit_price " + dir + ", p.id"
	case "stock":
		return "st.on_hand " + dir + ", p.id"
	case "created_at":
		return "p.created_at " + dir + ", p.id"
	default:
		return "p.name " + dir + ", p.id"
	}
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
