package orders

import (
	"context"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/cart"
	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type product struct {
	name  string
	price decimal.Decimal
}

type state struct {
	movements []inventory.Movement
	carts     map[int64][]cart.Item
	orders    map[int64]Order
	items     map[int64][]Item
	history   map[int64][]HistoryEntry
}

func (s state) clone() state {
	c := state{
		movements: slices.Clone(s.movements),
		carts:     map[int64][]cart.Item{},
		orders:    maps.Clone(s.orders),
		items:     map[int64][]Item{},
		history:   map[int64][]HistoryEntry{},
	}
	for k, v := range s.carts {
		c.carts[k] = slices.Clone(v)
	}
	for k, v := range s.items {
		c.items[k] = slices.Clone(v)
	}
	for k, v := range s.history {
		c.history[k] = slices.Clone(v)
	}
	return c
}

type memoryRepo struct {
	products map[int64]product
	state    state
	locks    []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: map[int64]product{},
		state: state{
			carts:   map[int64][]cart.Item{},
			orders:  map[int64]Order{},
			items:   map[int64][]Item{},
			history: map[int64][]HistoryEntry{},
		},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: m, state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memoryRepo) Get(_ context.Context, orderID int64) (Order, bool, error) {
	o, ok := m.state.orders[orderID]
	return o, ok, nil
}

func (m *memoryRepo) Items(_ context.Context, orderID int64) ([]Item, error) {
	return m.state.items[orderID], nil
}

func (m *memoryRepo) History(_ context.Context, orderID int64) ([]HistoryEntry, error) {
	return m.state.history[orderID], nil
}

func (m *memoryRepo) List(_ context.Context, filter ListFilter) ([]Order, int, error) {
	var out []Order
	for _, o := range m.state.orders {
		if filter.UserID != 0 && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b Order) int { return int(b.ID - a.ID) })
	return out, len(out), nil
}

func (m *memoryRepo) onHand(productID int64) int {
	sum := 0
	for _, mv := range m.state.movements {
		if mv.ProductID == productID {
			sum += mv.Qty
		}
	}
	return sum
}

func (m *memoryRepo) addToCart(userID, productID int64, qty int) {
	p := m.products[productID]
	m.state.carts[userID] = append(m.state.carts[userID], cart.Item{
		ID:        int64(len(m.state.carts[userID]) + 1),
		ProductID: productID,
		Name:      p.name,
		UnitPrice: p.price,
		Quantity:  qty,
	})
}

func (m *memoryRepo) stock(productID int64, qty int) {
	m.state.movements = append(m.state.movements, inventory.Movement{
		ID:        int64(len(m.state.movements) + 1),
		ProductID: productID,
		Type:      inventory.MovementPurchase,
		Qty:       qty,
		Reference: "Initial stock",
	})
}

type memoryTx struct {
	repo  *memoryRepo
	state state
}

func (tx *memoryTx) InsertMovement(_ context.Context, m inventory.Movement) (inventory.Movement, error) {
	if _, ok := tx.repo.products[m.ProductID]; !ok {
		return inventory.Movement{}, inventory.ErrUnknownProduct
	}
	m.ID = int64(len(tx.state.movements) + 1)
	m.MovedAt = time.Now()
	tx.state.movements = append(tx.state.movements, m)
	return m, nil
}

func (tx *memoryTx) CartLines(_ context.Context, userID int64, lock bool) ([]cart.Item, error) {
	if lock {
		tx.repo.locks = append(tx.repo.locks, "cart")
	}
	return slices.Clone(tx.state.carts[userID]), nil
}

func (tx *memoryTx) LockProducts(_ context.Context, ids []int64) ([]int64, error) {
	tx.repo.locks = append(tx.repo.locks, "products")
	var found []int64
	for _, id := range ids {
		if _, ok := tx.repo.products[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (tx *memoryTx) OnHand(_ context.Context, productID int64) (int, error) {
	sum := 0
	for _, mv := range tx.state.movements {
		if mv.ProductID == productID {
			sum += mv.Qty
		}
	}
	return max(sum, 0), nil
}

func (tx *memoryTx) ClearCart(_ context.Context, userID int64) error {
	delete(tx.state.carts, userID)
	return nil
}

func (tx *memoryTx) InsertOrder(_ context.Context, o Order) (Order, error) {
	o.ID = int64(len(tx.state.orders) + 1)
	o.OrderDate = time.Now()
	tx.state.orders[o.ID] = o
	return o, nil
}

func (tx *memoryTx) InsertItem(_ context.Context, item Item) (Item, error) {
	item.ID = int64(len(tx.state.items[item.OrderID]) + 1)
	tx.state.items[item.OrderID] = append(tx.state.items[item.OrderID], item)
	return item, nil
}

func (tx *memoryTx) InsertHistory(_ context.Context, entry HistoryEntry) error {
	entry.Timestamp = time.Now()
	tx.state.history[entry.OrderID] = append(tx.state.history[entry.OrderID], entry)
	return nil
}

func (tx *memoryTx) LockOrder(_ context.Context, orderID int64) (Order, bool, error) {
	o, ok := tx.state.orders[orderID]
	return o, ok, nil
}

func (tx *memoryTx) Items(_ context.Context, orderID int64) ([]Item, error) {
	return tx.state.items[orderID], nil
}

func (tx *memoryTx) SetStatus(_ context.Context, orderID int64, status Status) error {
	o := tx.state.orders[orderID]
	o.Status = status
	tx.state.orders[orderID] = o
	return nil
}

type countingInvalidator struct{ bumps int }

func (c *countingInvalidator) Bump(context.Context) error {
	c.bumps++
	return nil
}

type recordingMailer struct {
	to []string
}

func (r *recordingMailer) EnqueueMail(_ context.Context, to, _, _ string) error {
	r.to = append(r.to, to)
	return nil
}

var (
	customer = shared.Actor{ID: 11, Role: shared.RoleUser}
	stranger = shared.Actor{ID: 12, Role: shared.RoleUser}
	staff    = shared.Actor{ID: 2, Role: shared.RoleStaff}
)

var checkout = CheckoutInput{
	ShippingInfo: ShippingInfo{
		FullName: "Dana Reyes",
		Email:    "dana@example.com",
		Address:  "1 Dock Road",
		City:     "Portsmouth",
		Zipcode:  "PO1 1AA",
	},
	PaymentMethod: PaymentCOD,
}

func newFixture(t *testing.T) (*Service, *memoryRepo, *recordingMailer) {
	t.Helper()
	repo := newMemoryRepo()
	repo.products[1] = product{name: "Pallet wrap", price: decimal.RequireFromString("10.00")}
	repo.stock(1, 5)
	mailer := &recordingMailer{}
	return NewService(repo, nil, mailer, nil, nil, DefaultShippingFee), repo, mailer
}

func TestPlaceOrder(t *testing.T) {
	svc, repo, mailer := newFixture(t)
	repo.addToCart(customer.ID, 1, 2)

	detail, err := svc.PlaceOrder(context.Background(), customer, checkout)
	require.NoError(t, err)
	require.Equal(t, StatusPending, detail.Status)
	require.Equal(t, "30.00", detail.TotalAmount.StringFixed(2))
	require.Equal(t, "20.00", detail.Subtotal.StringFixed(2))
	require.Len(t, detail.Items, 1)
	require.Equal(t, 2, detail.Items[0].Quantity)
	require.True(t, decimal.RequireFromString("10.00").Equal(detail.Items[0].Price))

	sales := 0
	for _, mv := range repo.state.movements {
		if mv.Type == inventory.MovementSale {
			sales++
			require.Equal(t, -2, mv.Qty)
			require.Equal(t, "Order #1", mv.Reference)
		}
	}
	require.Equal(t, 1, sales)
	require.Equal(t, 3, repo.onHand(1))
	require.Empty(t, repo.state.carts[customer.ID])
	require.Equal(t, "Order placed", repo.state.history[detail.ID][0].Notes)
	require.Equal(t, []string{"dana@example.com"}, mailer.to)
}

func TestPlaceOrderLocksProductsBeforeCartRows(t *testing.T) {
	svc, repo, _ := newFixture(t)
	repo.addToCart(customer.ID, 1, 1)

	_, err := svc.PlaceOrder(context.Background(), customer, checkout)
	require.NoError(t, err)
	require.Equal(t, []string{"products", "cart"}, repo.locks)
}

func TestLedgerWritesInvalidateReports(t *testing.T) {
	svc, repo, _ := newFixture(t)
	inv := &countingInvalidator{}
	svc.WithInvalidator(inv)
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, customer, checkout)
	require.ErrorIs(t, err, ErrEmptyCart)
	require.Zero(t, inv.bumps)

	repo.addToCart(customer.ID, 1, 1)
	detail, err := svc.PlaceOrder(ctx, customer, checkout)
	require.NoError(t, err)
	require.Equal(t, 1, inv.bumps)

	require.NoError(t, svc.CancelOrder(ctx, customer, detail.ID))
	require.Equal(t, 2, inv.bumps)
}

func TestPlaceOrderInsufficientStockRollsBack(t *testing.T) {
	svc, repo, _ := newFixture(t)
	repo.addToCart(customer.ID, 1, 6)

	_, err := svc.PlaceOrder(context.Background(), customer, checkout)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Empty(t, repo.state.orders)
	require.Len(t, repo.state.movements, 1)
	require.Len(t, repo.state.carts[customer.ID], 1)
}

func TestPlaceOrderValidation(t *testing.T) {
	svc, repo, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, customer, checkout)
	require.ErrorIs(t, err, ErrEmptyCart)

	repo.addToCart(customer.ID, 1, 1)
	missing := checkout
	missing.City = "  "
	_, err = svc.PlaceOrder(ctx, customer, missing)
	require.ErrorIs(t, err, ErrMissingFields)

	badEmail := checkout
	badEmail.Email = "dana"
	_, err = svc.PlaceOrder(ctx, customer, badEmail)
	require.ErrorIs(t, err, ErrInvalidEmail)

	badPayment := checkout
	badPayment.PaymentMethod = "BARTER"
	_, err = svc.PlaceOrder(ctx, customer, badPayment)
	require.ErrorIs(t, err, ErrInvalidPayment)

	_, err = svc.PlaceOrder(ctx, staff, checkout)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCancelOrderRestoresStock(t *testing.T) {
	svc, repo, _ := newFixture(t)
	ctx := context.Background()
	repo.addToCart(customer.ID, 1, 2)
	detail, err := svc.PlaceOrder(ctx, customer, checkout)
	require.NoError(t, err)

	require.ErrorIs(t, svc.CancelOrder(ctx, stranger, detail.ID), ErrOrderNotFound)

	require.NoError(t, svc.CancelOrder(ctx, customer, detail.ID))
	require.Equal(t, 5, repo.onHand(1))
	require.Equal(t, StatusCancelled, repo.state.orders[detail.ID].Status)

	var types []inventory.MovementType
	for _, mv := range repo.state.movements {
		types = append(types, mv.Type)
		if mv.Type == inventory.MovementAdjust {
			require.Equal(t, 2, mv.Qty)
			require.Equal(t, "Return from cancelled order #1", mv.Reference)
		}
	}
	require.Equal(t, []inventory.MovementType{inventory.MovementPurchase, inventory.MovementSale, inventory.MovementAdjust}, types)

	history := repo.state.history[detail.ID]
	require.Len(t, history, 2)
	require.Equal(t, "Cancelled by customer", history[1].Notes)

	err = svc.CancelOrder(ctx, customer, detail.ID)
	require.ErrorIs(t, err, ErrNotCancellable)
	require.ErrorIs(t, err, shared.ErrStateConflict)
}

func TestCancelShippedOrderFailsWithoutChanges(t *testing.T) {
	svc, repo, _ := newFixture(t)
	ctx := context.Background()
	repo.addToCart(customer.ID, 1, 2)
	detail, err := svc.PlaceOrder(ctx, customer, checkout)
	require.NoError(t, err)

	require.NoError(t, svc.AdvanceStatus(ctx, staff, detail.ID, StatusShipped, ""))
	before := len(repo.state.movements)

	require.ErrorIs(t, svc.CancelOrder(ctx, customer, detail.ID), ErrNotCancellable)
	require.Len(t, repo.state.movements, before)
	require.Equal(t, StatusShipped, repo.state.orders[detail.ID].Status)

	require.NoError(t, svc.AdvanceStatus(ctx, staff, detail.ID, StatusCompleted, "Delivered"))
	require.ErrorIs(t, svc.CancelOrder(ctx, customer, detail.ID), ErrNotCancellable)
	require.Equal(t, 3, repo.onHand(1))
}

func TestAdvanceStatusTransitions(t *testing.T) {
	svc, repo, _ := newFixture(t)
	ctx := context.Background()
	repo.addToCart(customer.ID, 1, 1)
	detail, err := svc.PlaceOrder(ctx, customer, checkout)
	require.NoError(t, err)

	require.ErrorIs(t, svc.AdvanceStatus(ctx, staff, detail.ID, StatusCompleted, ""), ErrInvalidTransition)
	require.ErrorIs(t, svc.AdvanceStatus(ctx, customer, detail.ID, StatusShipped, ""), shared.ErrForbidden)
	require.ErrorIs(t, svc.AdvanceStatus(ctx, staff, 99, StatusShipped, ""), ErrOrderNotFound)

	require.NoError(t, svc.AdvanceStatus(ctx, staff, detail.ID, StatusShipped, ""))
	history := repo.state.history[detail.ID]
	require.Equal(t, "Status changed to SHIPPED", history[len(history)-1].Notes)
}

func TestGetAndListAreScopedToOwner(t *testing.T) {
	svc, repo, _ := newFixture(t)
	ctx := context.Background()
	repo.addToCart(customer.ID, 1, 1)
	detail, err := svc.PlaceOrder(ctx, customer, checkout)
	require.NoError(t, err)

	got, err := svc.Get(ctx, customer, detail.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Len(t, got.History, 1)

	_, err = svc.Get(ctx, stranger, detail.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
	_, err = svc.Get(ctx, staff, detail.ID)
	require.NoError(t, err)

	mine, total, err := svc.List(ctx, customer, ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, mine, 1)

	theirs, _, err := svc.List(ctx, stranger, ListFilter{})
	require.NoError(t, err)
	require.Empty(t, theirs)
}

func TestStatusCanAdvance(t *testing.T) {
	require.True(t, StatusPending.CanAdvance(StatusShipped))
	require.True(t, StatusShipped.CanAdvance(StatusCompleted))
	require.False(t, StatusPending.CanAdvance(StatusCompleted))
	require.False(t, StatusPending.CanAdvance(StatusCancelled))
	require.False(t, StatusCompleted.CanAdvance(StatusShipped))
	require.True(t, StatusCancelled.Terminal())
}
