package reports

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

var (
	staff    = shared.Actor{ID: 2, Role: shared.RoleStaff}
	customer = shared.Actor{ID: 3, Role: shared.RoleUser}
)

type memoryRepo struct {
	inventory []InventoryRow
	movements []MovementRow
	daily     []DailyCount
	pos       []PurchaseOrderRow
	suppliers []SupplierRow

	inventoryCalls atomic.Int32
	gate           chan struct{}

	mu       sync.Mutex
	lastFrom time.Time
	lastTo   time.Time
}

func (m *memoryRepo) InventoryRows(ctx context.Context) ([]InventoryRow, error) {
	m.inventoryCalls.Add(1)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	out := make([]InventoryRow, len(m.inventory))
	copy(out, m.inventory)
	return out, nil
}

func (m *memoryRepo) Movements(_ context.Context, from, until time.Time) ([]MovementRow, error) {
	m.mu.Lock()
	m.lastFrom, m.lastTo = from, until
	m.mu.Unlock()
	return m.movements, nil
}

func (m *memoryRepo) RecentMovements(_ context.Context, limit int) ([]MovementRow, error) {
	return m.movements[:min(limit, len(m.movements))], nil
}

func (m *memoryRepo) DailyMovementCounts(context.Context, time.Time, time.Time) ([]DailyCount, error) {
	return m.daily, nil
}

func (m *memoryRepo) PurchaseOrders(_ context.Context, from, to time.Time) ([]PurchaseOrderRow, error) {
	m.mu.Lock()
	m.lastFrom, m.lastTo = from, to
	m.mu.Unlock()
	return m.pos, nil
}

func (m *memoryRepo) RecentPurchaseOrders(_ context.Context, limit int) ([]PurchaseOrderRow, error) {
	return m.pos[:min(limit, len(m.pos))], nil
}

func (m *memoryRepo) Suppliers(context.Context, time.Time, time.Time) ([]SupplierRow, error) {
	return m.suppliers, nil
}

func fixtureRepo() *memoryRepo {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	four, two := 4.0, 2.0
	return &memoryRepo{
		inventory: []InventoryRow{
			{ID: 1, SKU: "WID-1", Name: "Widget", ReorderLevel: 5, OnHand: 20, UnitPrice: decimal.RequireFromString("2.50")},
			{ID: 2, SKU: "GAD-1", Name: "Gadget", ReorderLevel: 5, OnHand: 3, UnitPrice: decimal.RequireFromString("10.00")},
			{ID: 3, SKU: "BOL-1", Name: "Bolt", ReorderLevel: 10, OnHand: 0, UnitPrice: decimal.RequireFromString("0.10")},
			{ID: 4, SKU: "ANC-1", Name: "Anchor", ReorderLevel: 1, OnHand: -2, UnitPrice: decimal.RequireFromString("7.00")},
		},
		movements: []MovementRow{
			{ID: 3, MovedAt: day.Add(3 * time.Hour), SKU: "WID-1", ProductName: "Widget", Type: string(inventory.MovementSale), Qty: -2, Reference: "Order #1"},
			{ID: 2, MovedAt: day.Add(2 * time.Hour), SKU: "WID-1", ProductName: "Widget", Type: string(inventory.MovementAdjust), Qty: -1},
			{ID: 1, MovedAt: day.Add(time.Hour), SKU: "WID-1", ProductName: "Widget", Type: string(inventory.MovementPurchase), Qty: 10, Reference: "PO#1"},
		},
		daily: []DailyCount{{Date: "2026-03-10", Type: string(inventory.MovementPurchase), Count: 1}},
		pos: []PurchaseOrderRow{
			{ID: 2, Number: "PO-2", OrderDate: day, Status: "OPEN", TotalAmount: decimal.RequireFromString("40.00"), SupplierID: 1, SupplierName: "Acme"},
			{ID: 1, Number: "PO-1", OrderDate: day, Status: "RECEIVED", TotalAmount: decimal.RequireFromString("25.50"), SupplierID: 1, SupplierName: "Acme"},
			{ID: 3, Number: "PO-3", OrderDate: day, Status: "RECEIVED", TotalAmount: decimal.RequireFromString("10.00"), SupplierID: 2, SupplierName: "Bolts & Co"},
		},
		suppliers: []SupplierRow{
			{ID: 1, Name: "Acme", OrderCount: 2, TotalSpend: decimal.RequireFromString("65.50"), DeliveredOrders: 1, AvgDeliveryDays: &four},
			{ID: 2, Name: "Bolts & Co", OrderCount: 1, TotalSpend: decimal.RequireFromString("10.00"), DeliveredOrders: 3, AvgDeliveryDays: &two},
			{ID: 3, Name: "Idle Ltd"},
		},
	}
}

func newTestService(repo RepositoryPort, cache *Cache) *Service {
	svc := NewService(repo, cache)
	svc.now = func() time.Time { return time.Date(2026, 3, 31, 15, 4, 5, 0, time.UTC) }
	return svc
}

func TestResolveRange(t *testing.T) {
	now := time.Date(2026, 3, 31, 15, 4, 5, 0, time.UTC)
	today := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		start *time.Time
		end   *time.Time
		want  Range
	}{
		{name: "", want: Range{Name: RangeMonth, Start: today.AddDate(0, 0, -30), End: today}},
		{name: RangeDay, want: Range{Name: RangeDay, Start: today, End: today}},
		{name: RangeWeek, want: Range{Name: RangeWeek, Start: today.AddDate(0, 0, -7), End: today}},
		{name: RangeQuarter, want: Range{Name: RangeQuarter, Start: today.AddDate(0, 0, -90), End: today}},
		{name: RangeYear, want: Range{Name: RangeYear, Start: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), End: today}},
		{name: RangeCustom, start: &start, end: &end, want: Range{Name: RangeCustom, Start: start, End: end}},
		{name: RangeCustom, start: &start, want: Range{Name: RangeCustom, Start: start, End: today}},
	}
	for _, tc := range cases {
		got, err := ResolveRange(tc.name, tc.start, tc.end, now)
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.want, got, tc.name)
	}

	_, err := ResolveRange(RangeCustom, &end, &start, now)
	require.ErrorIs(t, err, ErrInvertedRange)
	_, err = ResolveRange("fortnight", nil, nil, now)
	require.ErrorIs(t, err, ErrUnknownRange)

	rng, err := ResolveRange(RangeDay, nil, nil, now)
	require.NoError(t, err)
	require.Equal(t, today.AddDate(0, 0, 1), rng.Until())
}

func TestInventoryReportOrdersByUrgency(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)

	report, err := svc.Inventory(context.Background(), staff)
	require.NoError(t, err)

	names := make([]string, 0, len(report.Items))
	for _, item := range report.Items {
		names = append(names, item.Name)
	}
	require.Equal(t, []string{"Anchor", "Bolt", "Gadget", "Widget"}, names)
	require.Equal(t, LabelOutOfStock, report.Items[0].Status)
	require.Equal(t, 0, report.Items[0].OnHand)
	require.Equal(t, LabelLowStock, report.Items[2].Status)

	require.Equal(t, 4, report.Summary.TotalProducts)
	require.Equal(t, 2, report.Summary.OutOfStock)
	require.Equal(t, 1, report.Summary.LowStock)
	require.Equal(t, 23, report.Summary.TotalItems)
	require.Equal(t, "80.00", report.Summary.InventoryValue.StringFixed(2))
	require.Equal(t, []LabelCount{{LabelOutOfStock, 2}, {LabelLowStock, 1}, {LabelInStock, 1}}, report.Chart)
}

func TestReportsRequireViewReports(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	ctx := context.Background()

	_, err := svc.Inventory(ctx, customer)
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Dashboard(ctx, customer)
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.ErrorIs(t, svc.Refresh(ctx, customer), shared.ErrForbidden)
}

func TestMovementReportSummary(t *testing.T) {
	repo := fixtureRepo()
	svc := newTestService(repo, nil)
	rng, err := ResolveRange(RangeWeek, nil, nil, svc.Now())
	require.NoError(t, err)

	report, err := svc.Movements(context.Background(), staff, rng)
	require.NoError(t, err)
	require.Equal(t, MovementSummary{TotalMovements: 3, Purchases: 1, Sales: 1, ItemsIn: 10, ItemsOut: 3}, report.Summary)
	require.Len(t, report.Daily, 1)
	require.Equal(t, rng.Start, repo.lastFrom)
	require.Equal(t, rng.Until(), repo.lastTo)
}

func TestPurchaseOrderReportGroupsByStatus(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	rng, err := ResolveRange(RangeMonth, nil, nil, svc.Now())
	require.NoError(t, err)

	report, err := svc.PurchaseOrders(context.Background(), staff, rng)
	require.NoError(t, err)
	require.Equal(t, 3, report.Summary.TotalOrders)
	require.Equal(t, 2, report.Summary.SupplierCount)
	require.Equal(t, 1, report.Summary.OpenOrders)
	require.Equal(t, 2, report.Summary.ReceivedOrders)
	require.Equal(t, "75.50", report.Summary.TotalSpend.StringFixed(2))

	require.Len(t, report.ByStatus, 2)
	require.Equal(t, "OPEN", report.ByStatus[0].Status)
	require.Equal(t, "RECEIVED", report.ByStatus[1].Status)
	require.Equal(t, 2, report.ByStatus[1].Count)
	require.Equal(t, "35.50", report.ByStatus[1].Total.StringFixed(2))
}

func TestSupplierReportWeightsDeliveryDays(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	rng, err := ResolveRange(RangeYear, nil, nil, svc.Now())
	require.NoError(t, err)

	report, err := svc.Suppliers(context.Background(), staff, rng)
	require.NoError(t, err)
	require.Equal(t, 3, report.Summary.TotalSuppliers)
	require.Equal(t, 3, report.Summary.TotalOrders)
	require.Equal(t, "75.50", report.Summary.TotalSpend.StringFixed(2))
	require.NotNil(t, report.Summary.AvgDeliveryDays)
	require.InDelta(t, 2.5, *report.Summary.AvgDeliveryDays, 0.0001)
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	_, err := svc.Build(context.Background(), staff, Kind("payroll"), Range{})
	require.ErrorIs(t, err, ErrUnknownReport)

	kind, err := ParseKind("purchase-orders")
	require.NoError(t, err)
	require.Equal(t, KindPurchaseOrders, kind)
}

func newTestCache(t *testing.T) (*Cache, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), client
}

func TestDashboardCachedUntilRefresh(t *testing.T) {
	repo := fixtureRepo()
	cache, _ := newTestCache(t)
	svc := newTestService(repo, cache)
	ctx := context.Background()

	first, err := svc.Dashboard(ctx, staff)
	require.NoError(t, err)
	require.Equal(t, 4, first.ProductCount)
	require.Equal(t, 1, first.LowStockCount)
	require.Equal(t, 2, first.OutOfStockCount)
	require.Equal(t, "80.00", first.InventoryValue.StringFixed(2))
	require.Len(t, first.RecentPOs, 3)
	require.Len(t, first.RecentMovements, 3)

	_, err = svc.Dashboard(ctx, staff)
	require.NoError(t, err)
	require.EqualValues(t, 1, repo.inventoryCalls.Load())

	require.NoError(t, svc.Refresh(ctx, staff))
	_, err = svc.Dashboard(ctx, staff)
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.inventoryCalls.Load())
}

func TestDashboardRebuiltAfterWriterInvalidates(t *testing.T) {
	cache, _ := newTestCache(t)
	repo := fixtureRepo()
	svc := newTestService(repo, cache)
	ctx := context.Background()

	_, err := svc.Dashboard(ctx, staff)
	require.NoError(t, err)

	var inv shared.Invalidator = cache
	shared.Invalidate(ctx, inv)
	_, err = svc.Dashboard(ctx, staff)
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.inventoryCalls.Load())
}

func TestDashboardCollapsesConcurrentBuilds(t *testing.T) {
	repo := fixtureRepo()
	repo.gate = make(chan struct{})
	cache, _ := newTestCache(t)
	svc := newTestService(repo, cache)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Dashboard(context.Background(), staff)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return repo.inventoryCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(repo.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, repo.inventoryCalls.Load())
}

func TestCacheVersionFollowsInvalidation(t *testing.T) {
	cache, client := newTestCache(t)
	ctx := context.Background()

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, ver)

	key, err := cache.BuildKey(ctx, "dashboard")
	require.NoError(t, err)
	require.Equal(t, "wms:reports:dashboard:1", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "dashboard")
	require.NoError(t, err)
	require.Equal(t, "wms:reports:dashboard:2", key)

	require.NoError(t, client.Set(ctx, cacheVersionKey, 0, 0).Err())
	ver, err = cache.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, ver)
}

func TestWriteXLSX(t *testing.T) {
	svc := newTestService(fixtureRepo(), nil)
	report, err := svc.Inventory(context.Background(), staff)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, report.Table()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	cell := func(ref string) string {
		v, err := f.GetCellValue(sheetName, ref)
		require.NoError(t, err)
		return v
	}
	require.Equal(t, "Inventory Status Report", cell("A1"))
	require.Equal(t, "Total Products", cell("A2"))
	require.Equal(t, "4", cell("B2"))
	require.Equal(t, "SKU", cell("A8"))
	require.Equal(t, "Status", cell("G8"))
	require.Equal(t, "ANC-1", cell("A9"))
	require.Equal(t, LabelOutOfStock, cell("G9"))
}

func TestRenderHTMLEscapesAndFormats(t *testing.T) {
	html := RenderHTML(Table{
		Title:   "Supplier <Report>",
		Summary: []Field{{Label: "Total Spend", Value: decimal.RequireFromString("1234.5")}},
		Columns: []string{"Supplier", "Orders"},
		Rows:    [][]any{{"Bolts & Co", 1200}},
	})
	require.Contains(t, html, "<h1>Supplier &lt;Report&gt;</h1>")
	require.Contains(t, html, "1,234.50")
	require.Contains(t, html, "<td>Bolts &amp; Co</td><td class=\"num\">1,200</td>")
}
