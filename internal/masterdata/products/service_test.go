package products

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	mdshared "github.com/odyssey-erp/odyssey-wms/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/blob"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type memoryRepo struct {
	products  map[int64]Product
	suppliers map[int64]bool
	inUse     map[int64]bool
	movements []inventory.Movement
	nextID    int64
}

type memoryTx struct {
	repo      *memoryRepo
	products  map[int64]Product
	movements []inventory.Movement
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:  map[int64]Product{},
		suppliers: map[int64]bool{1: true},
		inUse:     map[int64]bool{},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, products: map[int64]Product{}}
	for id, p := range r.products {
		tx.products[id] = p
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.products = tx.products
	r.movements = append(r.movements, tx.movements...)
	return nil
}

func (r *memoryRepo) onHand(id int64) int {
	total := 0
	for _, m := range r.movements {
		if m.ProductID == id {
			total += m.Qty
		}
	}
	return total
}

func (r *memoryRepo) List(_ context.Context, filters mdshared.ListFilters) ([]ProductView, int, error) {
	var views []ProductView
	for _, p := range r.products {
		if filters.SupplierID != nil && p.SupplierID != *filters.SupplierID {
			continue
		}
		views = append(views, ProductView{Product: p, OnHand: r.onHand(p.ID)})
	}
	return views, len(views), nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (ProductView, error) {
	p, ok := r.products[id]
	if !ok {
		return ProductView{}, ErrNotFound
	}
	return ProductView{Product: p, OnHand: r.onHand(id)}, nil
}

func (t *memoryTx) InsertMovement(_ context.Context, m inventory.Movement) (inventory.Movement, error) {
	if _, ok := t.products[m.ProductID]; !ok {
		return inventory.Movement{}, inventory.ErrUnknownProduct
	}
	m.ID = int64(len(t.repo.movements) + len(t.movements) + 1)
	t.movements = append(t.movements, m)
	return m, nil
}

func (t *memoryTx) SupplierExists(_ context.Context, id int64) (bool, error) {
	return t.repo.suppliers[id], nil
}

func (t *memoryTx) Insert(_ context.Context, p Product) (Product, error) {
	for _, existing := range t.products {
		if existing.SKU == p.SKU {
			return Product{}, ErrDuplicateSKU
		}
	}
	t.repo.nextID++
	p.ID = t.repo.nextID
	t.products[p.ID] = p
	return p, nil
}

func (t *memoryTx) GetForUpdate(_ context.Context, id int64) (Product, error) {
	p, ok := t.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (t *memoryTx) Update(_ context.Context, p Product) (Product, error) {
	t.products[p.ID] = p
	return p, nil
}

func (t *memoryTx) HasHistory(_ context.Context, id int64) (bool, error) {
	if t.repo.inUse[id] {
		return true, nil
	}
	for _, m := range append(slices.Clone(t.repo.movements), t.movements...) {
		if m.ProductID == id {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) Delete(_ context.Context, id int64) error {
	delete(t.products, id)
	return nil
}

type fakeImages struct {
	saved      []blob.ImageRefs
	deleted    []string
	released   []blob.ImageRefs
	failDelete bool
	next       int
}

func (f *fakeImages) Save(_ context.Context, data []byte) (blob.ImageRefs, error) {
	if string(data) == "not-an-image" {
		return blob.ImageRefs{}, blob.ErrUnsupportedImage
	}
	f.next++
	refs := blob.ImageRefs{Image: "products/" + string(rune('a'+f.next)) + ".png", Thumbnail: "products/thumbnails/" + string(rune('a'+f.next)) + ".jpg"}
	f.saved = append(f.saved, refs)
	return refs, nil
}

func (f *fakeImages) Delete(_ context.Context, refs blob.ImageRefs) ([]string, error) {
	if f.failDelete {
		return refs.Refs(), errors.New("bucket unavailable")
	}
	f.deleted = append(f.deleted, refs.Refs()...)
	return nil, nil
}

func (f *fakeImages) Release(_ context.Context, refs blob.ImageRefs) {
	f.released = append(f.released, refs)
}

func (f *fakeImages) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return "https://cdn.test/" + ref
}

type fakeCleanup struct{ refs []string }

func (f *fakeCleanup) EnqueueImageCleanup(_ context.Context, refs []string) error {
	f.refs = append(f.refs, refs...)
	return nil
}

var admin = shared.Actor{ID: 1, Role: shared.RoleAdmin}

func newTestService() (*Service, *memoryRepo, *fakeImages, *fakeCleanup) {
	repo := newMemoryRepo()
	images := &fakeImages{}
	cleanup := &fakeCleanup{}
	return NewService(repo, images, cleanup, nil, nil), repo, images, cleanup
}

func validInput() ProductInput {
	return ProductInput{
		SKU:          "SKU-001",
		Name:         "Widget",
		UnitPrice:    decimal.RequireFromString("10.00"),
		ReorderLevel: 5,
		SupplierID:   1,
	}
}

func TestCreateWithInitialStock(t *testing.T) {
	svc, repo, images, _ := newTestService()
	input := validInput()
	input.InitialStock = 12

	view, err := svc.Create(context.Background(), admin, input, []byte("png"))
	require.NoError(t, err)
	require.Equal(t, 12, view.OnHand)
	require.Equal(t, inventory.StatusInStock, view.Status)
	require.Equal(t, "https://cdn.test/"+images.saved[0].Image, view.ImageURL)

	require.Len(t, repo.movements, 1)
	m := repo.movements[0]
	require.Equal(t, inventory.MovementPurchase, m.Type)
	require.Equal(t, 12, m.Qty)
	require.Equal(t, InitialStockReference, m.Reference)
	require.Equal(t, admin.ID, m.MovedBy)
}

func TestCreateWithoutInitialStockWritesNoMovement(t *testing.T) {
	svc, repo, _, _ := newTestService()
	view, err := svc.Create(context.Background(), admin, validInput(), nil)
	require.NoError(t, err)
	require.Zero(t, view.OnHand)
	require.Equal(t, inventory.StatusOutOfStock, view.Status)
	require.Empty(t, repo.movements)
}

func TestCreateFailureReleasesImage(t *testing.T) {
	svc, repo, images, _ := newTestService()
	input := validInput()
	input.SupplierID = 42

	_, err := svc.Create(context.Background(), admin, input, []byte("png"))
	require.ErrorIs(t, err, ErrUnknownSupplier)
	require.Empty(t, repo.products)
	require.Equal(t, images.saved, images.released)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	input := validInput()
	input.SKU = "  "
	_, err := svc.Create(ctx, admin, input, nil)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = validInput()
	input.UnitPrice = decimal.NewFromInt(-1)
	_, err = svc.Create(ctx, admin, input, nil)
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = svc.Create(ctx, admin, validInput(), []byte("not-an-image"))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, shared.Actor{ID: 5, Role: shared.RoleUser}, validInput(), nil)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateDuplicateSKU(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Create(ctx, admin, validInput(), nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, admin, validInput(), nil)
	require.ErrorIs(t, err, ErrDuplicateSKU)
}

func TestUpdateReplacesImage(t *testing.T) {
	svc, _, images, _ := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, admin, validInput(), []byte("png"))
	require.NoError(t, err)
	original := images.saved[0]

	input := validInput()
	input.Name = "Widget v2"
	updated, err := svc.Update(ctx, admin, created.ID, input, []byte("png2"))
	require.NoError(t, err)
	require.Equal(t, "Widget v2", updated.Name)
	require.Equal(t, images.saved[1].Image, updated.ImageRef)
	require.ElementsMatch(t, original.Refs(), images.deleted)
}

func TestUpdateKeepsImageWithoutUpload(t *testing.T) {
	svc, _, images, _ := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, admin, validInput(), []byte("png"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, admin, created.ID, validInput(), nil)
	require.NoError(t, err)
	require.Equal(t, created.ImageRef, updated.ImageRef)
	require.Empty(t, images.deleted)
}

func TestDeleteReleasesImage(t *testing.T) {
	svc, repo, images, cleanup := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, admin, validInput(), []byte("png"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, created.ID))
	require.Empty(t, repo.products)
	require.ElementsMatch(t, created.images().Refs(), images.deleted)
	require.Empty(t, cleanup.refs)
}

func TestDeleteSucceedsWhenImageReleaseFails(t *testing.T) {
	svc, repo, images, cleanup := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, admin, validInput(), []byte("png"))
	require.NoError(t, err)

	images.failDelete = true
	require.NoError(t, svc.Delete(ctx, admin, created.ID))
	require.Empty(t, repo.products)
	require.ElementsMatch(t, created.images().Refs(), cleanup.refs)
}

func TestDeleteProductInUse(t *testing.T) {
	svc, repo, images, _ := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, admin, validInput(), []byte("png"))
	require.NoError(t, err)
	repo.inUse[created.ID] = true

	err = svc.Delete(ctx, admin, created.ID)
	require.ErrorIs(t, err, ErrProductInUse)
	require.ErrorIs(t, err, shared.ErrStateConflict)
	require.Len(t, repo.products, 1)
	require.Empty(t, images.deleted)
}

func TestDeleteProductWithLedgerHistory(t *testing.T) {
	svc, repo, images, _ := newTestService()
	ctx := context.Background()
	input := validInput()
	input.InitialStock = 5
	created, err := svc.Create(ctx, admin, input, nil)
	require.NoError(t, err)

	err = svc.Delete(ctx, admin, created.ID)
	require.ErrorIs(t, err, ErrProductInUse)
	require.Contains(t, repo.products, created.ID)
	require.Len(t, repo.movements, 1)
	require.Equal(t, created.ID, repo.movements[0].ProductID)
	require.Empty(t, images.deleted)
}

func TestOnHandNeverReportedNegative(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	input := validInput()
	input.InitialStock = 3
	created, err := svc.Create(ctx, admin, input, nil)
	require.NoError(t, err)
	repo.movements = append(repo.movements, inventory.Movement{
		ProductID: created.ID,
		Type:      inventory.MovementSale,
		Qty:       -10,
		Reference: "Order #7",
	})
	require.Equal(t, -7, repo.onHand(created.ID))

	view, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Zero(t, view.OnHand)
	require.Equal(t, inventory.StatusOutOfStock, view.Status)

	views, _, err := svc.List(ctx, mdshared.ListFilters{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Zero(t, views[0].OnHand)
}

func TestGetNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Get(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}
