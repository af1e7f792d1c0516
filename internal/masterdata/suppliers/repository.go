package suppliers

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mdshared "github.com/odyssey-erp/odyssey-wms/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters mdshared.ListFilters) ([]Summary, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, supplier Supplier) (Supplier, error)
	Delete(ctx context.Context, id int64) error
	CountProducts(ctx context.Context, id int64) (int, error)
	Products(ctx context.Context, id int64) ([]SupplierProduct, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const supplierColumns = `s.id, s.name, s.contact_name, s.phone, s.email, s.address, s.created_at, s.updated_at`

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]Summary, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0
	if filters.Search != "" {
		argCount++
		where += ` AND (s.name ILIKE $` + strconv.Itoa(argCount) + ` OR s.contact_name ILIKE $` + strconv.Itoa(argCount) + ` OR s.email ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers s`+where, args...).Scan(&total); err != nil {
		return nil, 0, shared.Persistence("suppliers: count", err)
	}

	query := `SELECT ` + supplierColumns + `,
	(SELECT COUNT(*) FROM products p WHERE p.supplier_id = s.id) AS product_count,
	(SELECT COALESCE(SUM(p.unit_price * vs.on_hand), 0)
	   FROM products p JOIN v_product_stock vs ON vs.id = p.id
	  WHERE p.supplier_id = s.id) AS inventory_value
FROM suppliers s` + where + ` ORDER BY s.name ` + mdshared.SortDirection(filters.SortDir) + `, s.id`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, filters.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.Persistence("suppliers: list", err)
	}
	defer rows.Close()
	items := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.ContactName, &s.Phone, &s.Email, &s.Address, &s.CreatedAt, &s.UpdatedAt, &s.ProductCount, &s.InventoryValue); err != nil {
			return nil, 0, shared.Persistence("suppliers: scan", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.Persistence("suppliers: list", err)
	}
	return items, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.db.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers s WHERE s.id = $1`, id).
		Scan(&s.ID, &s.Name, &s.ContactName, &s.Phone, &s.Email, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrNotFound
		}
		return Supplier{}, shared.Persistence("suppliers: get", err)
	}
	return s, nil
}

func (r *repository) Create(ctx context.Context, s Supplier) (Supplier, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (name, contact_name, phone, email, address)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`, s.Name, s.ContactName, s.Phone, s.Email, s.Address).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Supplier{}, shared.Persistence("suppliers: insert", err)
	}
	return s, nil
}

func (r *repository) Update(ctx context.Context, s Supplier) (Supplier, error) {
	err := r.db.QueryRow(ctx, `UPDATE suppliers
SET name = $1, contact_name = $2, phone = $3, email = $4, address = $5, updated_at = NOW()
WHERE id = $6
RETURNING created_at, updated_at`, s.Name, s.ContactName, s.Phone, s.Email, s.Address, s.ID).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrNotFound
		}
		return Supplier{}, shared.Persistence("suppliers: update", err)
	}
	return s, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		switch {
		case db.IsForeignKeyViolation(err, "products_supplier_id_fkey"):
			return ErrSupplierHasProducts
		case db.IsForeignKeyViolation(err, ""):
			return ErrSupplierHasOrders
		}
		return shared.Persistence("suppliers: delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) CountProducts(ctx context.Context, id int64) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE supplier_id = $1`, id).Scan(&count); err != nil {
		return 0, shared.Persistence("suppliers: count products", err)
	}
	return count, nil
}

func (r *repository) Products(ctx context.Context, id int64) ([]SupplierProduct, error) {
	rows, err := r.db.Query(ctx, `SELECT p.id, p.sku, p.name, p.unit_price, vs.on_hand
FROM products p
JOIN v_product_stock vs ON vs.id = p.id
WHERE p.supplier_id = $1
ORDER BY p.name, p.id`, id)
	if err != nil {
		return nil, shared.Persistence("suppliers: products", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SupplierProduct, error) {
		var p SupplierProduct
		err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPrice, &p.OnHand)
		return p, err
	})
	if err != nil {
		return nil, shared.Persistence("suppliers: products", err)
	}
	return items, nil
}
