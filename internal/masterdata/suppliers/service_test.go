package suppliers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	mdshared "github.com/odyssey-erp/odyssey-wms/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type memoryRepo struct {
	suppliers map[int64]Supplier
	products  map[int64][]SupplierProduct
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{suppliers: map[int64]Supplier{}, products: map[int64][]SupplierProduct{}}
}

func (m *memoryRepo) List(_ context.Context, _ mdshared.ListFilters) ([]Summary, int, error) {
	var out []Summary
	for id, s := range m.suppliers {
		value := decimal.Zero
		for _, p := range m.products[id] {
			value = value.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(p.OnHand))))
		}
		out = append(out, Summary{Supplier: s, ProductCount: len(m.products[id]), InventoryValue: value})
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) Create(_ context.Context, s Supplier) (Supplier, error) {
	m.nextID++
	s.ID = m.nextID
	m.suppliers[s.ID] = s
	return s, nil
}

func (m *memoryRepo) Update(_ context.Context, s Supplier) (Supplier, error) {
	if _, ok := m.suppliers[s.ID]; !ok {
		return Supplier{}, ErrNotFound
	}
	m.suppliers[s.ID] = s
	return s, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(m.suppliers, id)
	return nil
}

func (m *memoryRepo) CountProducts(_ context.Context, id int64) (int, error) {
	return len(m.products[id]), nil
}

func (m *memoryRepo) Products(_ context.Context, id int64) ([]SupplierProduct, error) {
	return m.products[id], nil
}

var staff = shared.Actor{ID: 2, Role: shared.RoleStaff}

func TestCreateAndUpdateSupplier(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	sup, err := svc.Create(ctx, staff, SupplierForm{Name: " Acme ", Email: "sales@acme.test"})
	require.NoError(t, err)
	require.Equal(t, "Acme", sup.Name)

	sup, err = svc.Update(ctx, staff, sup.ID, SupplierForm{Name: "Acme Ltd", Phone: "555"})
	require.NoError(t, err)
	require.Equal(t, "Acme Ltd", sup.Name)

	_, err = svc.Update(ctx, staff, 99, SupplierForm{Name: "Ghost"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSupplierValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, staff, SupplierForm{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, staff, SupplierForm{Name: "Acme", Email: "not-an-email"})
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.Create(ctx, shared.Actor{ID: 9, Role: shared.RoleUser}, SupplierForm{Name: "Acme"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDeleteSupplierWithProductsFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	sup, err := svc.Create(ctx, staff, SupplierForm{Name: "Acme"})
	require.NoError(t, err)
	repo.products[sup.ID] = []SupplierProduct{{ID: 1, SKU: "A", Name: "Anvil"}}

	err = svc.Delete(ctx, staff, sup.ID)
	require.ErrorIs(t, err, ErrSupplierHasProducts)
	require.ErrorIs(t, err, shared.ErrStateConflict)
	require.Contains(t, repo.suppliers, sup.ID)

	delete(repo.products, sup.ID)
	require.NoError(t, svc.Delete(ctx, staff, sup.ID))
	require.NotContains(t, repo.suppliers, sup.ID)

	require.ErrorIs(t, svc.Delete(ctx, staff, sup.ID), shared.ErrNotFound)
}

func TestSupplierProducts(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	sup, err := svc.Create(ctx, staff, SupplierForm{Name: "Acme"})
	require.NoError(t, err)

	_, err = svc.Products(ctx, sup.ID)
	require.ErrorIs(t, err, ErrNoProducts)
	check, err := svc.CheckProducts(ctx, sup.ID)
	require.NoError(t, err)
	require.Equal(t, ProductCheck{HasProducts: false, Count: 0}, check)

	repo.products[sup.ID] = []SupplierProduct{
		{ID: 1, SKU: "A", Name: "Anvil", UnitPrice: decimal.RequireFromString("12.50"), OnHand: 4},
		{ID: 2, SKU: "B", Name: "Bolt", UnitPrice: decimal.RequireFromString("0.25"), OnHand: 100},
	}
	items, err := svc.Products(ctx, sup.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	check, err = svc.CheckProducts(ctx, sup.ID)
	require.NoError(t, err)
	require.Equal(t, ProductCheck{HasProducts: true, Count: 2}, check)

	summaries, _, err := svc.List(ctx, mdshared.ListFilters{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.True(t, decimal.RequireFromString("75.00").Equal(summaries[0].InventoryValue))
}

func TestSupplierProductsClampOnHand(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	sup, err := svc.Create(ctx, staff, SupplierForm{Name: "Acme"})
	require.NoError(t, err)
	repo.products[sup.ID] = []SupplierProduct{
		{ID: 1, SKU: "A", Name: "Anvil", UnitPrice: decimal.RequireFromString("12.50"), OnHand: -4},
	}

	items, err := svc.Products(ctx, sup.ID)
	require.NoError(t, err)
	require.Zero(t, items[0].OnHand)
}
