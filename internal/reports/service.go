package reports

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	"github.com/odyssey-erp/odyssey-wms/internal/procurement"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

const recentLimit = 5

// RepositoryPort lists the read models reports are built from.
type RepositoryPort interface {
	InventoryRows(ctx context.Context) ([]InventoryRow, error)
	Movements(ctx context.Context, from, until time.Time) ([]MovementRow, error)
	RecentMovements(ctx context.Context, limit int) ([]MovementRow, error)
	DailyMovementCounts(ctx context.Context, from, until time.Time) ([]DailyCount, error)
	PurchaseOrders(ctx context.Context, from, to time.Time) ([]PurchaseOrderRow, error)
	RecentPurchaseOrders(ctx context.Context, limit int) ([]PurchaseOrderRow, error)
	Suppliers(ctx context.Context, from, to time.Time) ([]SupplierRow, error)
}

// Service builds read-only reports.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	group singleflight.Group
	now   func() time.Time
}

// NewService constructs the report service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Inventory reports stock status per product, out of stock first.
func (s *Service) Inventory(ctx context.Context, actor shared.Actor) (InventoryReport, error) {
	if err := shared.Authorize(actor, shared.CapViewReports); err != nil {
		return InventoryReport{}, err
	}
	rows, err := s.repo.InventoryRows(ctx)
	if err != nil {
		return InventoryReport{}, err
	}
	return buildInventory(rows), nil
}

// Movements reports ledger activity within rng.
func (s *Service) Movements(ctx context.Context, actor shared.Actor, rng Range) (MovementReport, error) {
	if err := shared.Authorize(actor, shared.CapViewReports); err != nil {
		return MovementReport{}, err
	}
	var (
		rows  []MovementRow
		daily []DailyCount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.repo.Movements(gctx, rng.Start, rng.Until())
		return err
	})
	g.Go(func() error {
		var err error
		daily, err = s.repo.DailyMovementCounts(gctx, rng.Start, rng.Until())
		return err
	})
	if err := g.Wait(); err != nil {
		return MovementReport{}, err
	}
	return MovementReport{Range: rng, Summary: summariseMovements(rows), Rows: rows, Daily: daily}, nil
}

// PurchaseOrders reports purchase orders dated within rng.
func (s *Service) PurchaseOrders(ctx context.Context, actor shared.Actor, rng Range) (PurchaseOrderReport, error) {
	if err := shared.Authorize(actor, shared.CapViewReports); err != nil {
		return PurchaseOrderReport{}, err
	}
	rows, err := s.repo.PurchaseOrders(ctx, rng.Start, rng.End)
	if err != nil {
		return PurchaseOrderReport{}, err
	}
	summary, byStatus := summarisePurchaseOrders(rows)
	return PurchaseOrderReport{Range: rng, Summary: summary, Rows: rows, ByStatus: byStatus}, nil
}

// Suppliers ranks suppliers by spend within rng.
func (s *Service) Suppliers(ctx context.Context, actor shared.Actor, rng Range) (SupplierReport, error) {
	if err := shared.Authorize(actor, shared.CapViewReports); err != nil {
		return SupplierReport{}, err
	}
	rows, err := s.repo.Suppliers(ctx, rng.Start, rng.End)
	if err != nil {
		return SupplierReport{}, err
	}
	return SupplierReport{Range: rng, Summary: summariseSuppliers(rows), Rows: rows}, nil
}

// Build produces the exportable report for kind.
func (s *Service) Build(ctx context.Context, actor shared.Actor, kind Kind, rng Range) (Exportable, error) {
	switch kind {
	case KindInventory:
		return s.Inventory(ctx, actor)
	case KindMovements:
		return s.Movements(ctx, actor, rng)
	case KindPurchaseOrders:
		return s.PurchaseOrders(ctx, actor, rng)
	case KindSuppliers:
		return s.Suppliers(ctx, actor, rng)
	}
	return nil, ErrUnknownReport
}

// Dashboard returns the overview, served from cache when available.
// Concurrent builds share one computation.
func (s *Service) Dashboard(ctx context.Context, actor shared.Actor) (Dashboard, error) {
	if err := shared.Authorize(actor, shared.CapViewReports); err != nil {
		return Dashboard{}, err
	}
	key, err := s.cache.BuildKey(ctx, "dashboard")
	if err != nil {
		return Dashboard{}, err
	}
	ch := s.group.DoChan(key, func() (any, error) {
		var out Dashboard
		err := s.cache.FetchJSON(context.WithoutCancel(ctx), key, &out, func(ctx context.Context) (any, error) {
			return s.buildDashboard(ctx)
		})
		return out, err
	})
	select {
	case <-ctx.Done():
		return Dashboard{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Dashboard{}, res.Err
		}
		return res.Val.(Dashboard), nil
	}
}

// Refresh drops every cached report.
func (s *Service) Refresh(ctx context.Context, actor shared.Actor) error {
	if err := shared.Authorize(actor, shared.CapViewReports); err != nil {
		return err
	}
	return s.cache.Bump(ctx)
}

func (s *Service) buildDashboard(ctx context.Context) (Dashboard, error) {
	var (
		stock     []InventoryRow
		pos       []PurchaseOrderRow
		movements []MovementRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stock, err = s.repo.InventoryRows(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pos, err = s.repo.RecentPurchaseOrders(gctx, recentLimit)
		return err
	})
	g.Go(func() error {
		var err error
		movements, err = s.repo.RecentMovements(gctx, recentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	summary := buildInventory(stock).Summary
	return Dashboard{
		ProductCount:    summary.TotalProducts,
		LowStockCount:   summary.LowStock,
		OutOfStockCount: summary.OutOfStock,
		InventoryValue:  summary.InventoryValue,
		RecentPOs:       pos,
		RecentMovements: movements,
		GeneratedAt:     s.Now(),
	}, nil
}

func buildInventory(rows []InventoryRow) InventoryReport {
	report := InventoryReport{Items: make([]InventoryRow, 0, len(rows))}
	report.Summary.InventoryValue = decimal.Zero
	for _, row := range rows {
		row.OnHand = max(row.OnHand, 0)
		row.Status = StockLabel(row.OnHand, row.ReorderLevel)
		report.Summary.TotalProducts++
		report.Summary.TotalItems += row.OnHand
		report.Summary.InventoryValue = report.Summary.InventoryValue.Add(row.UnitPrice.Mul(decimal.NewFromInt(int64(row.OnHand))))
		switch row.Status {
		case LabelOutOfStock:
			report.Summary.OutOfStock++
		case LabelLowStock:
			report.Summary.LowStock++
		}
		report.Items = append(report.Items, row)
	}
	slices.SortStableFunc(report.Items, func(a, b InventoryRow) int {
		if c := cmp.Compare(stockRank(a.Status), stockRank(b.Status)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	report.Summary.InventoryValue = report.Summary.InventoryValue.Round(2)
	report.Chart = []LabelCount{
		{Label: LabelOutOfStock, Count: report.Summary.OutOfStock},
		{Label: LabelLowStock, Count: report.Summary.LowStock},
		{Label: LabelInStock, Count: report.Summary.TotalProducts - report.Summary.OutOfStock - report.Summary.LowStock},
	}
	return report
}

func summariseMovements(rows []MovementRow) MovementSummary {
	var summary MovementSummary
	for _, row := range rows {
		summary.TotalMovements++
		switch inventory.MovementType(row.Type) {
		case inventory.MovementPurchase:
			summary.Purchases++
		case inventory.MovementSale:
			summary.Sales++
		}
		if row.Qty > 0 {
			summary.ItemsIn += row.Qty
		} else {
			summary.ItemsOut -= row.Qty
		}
	}
	return summary
}

func summarisePurchaseOrders(rows []PurchaseOrderRow) (PurchaseOrderSummary, []StatusTotal) {
	summary := PurchaseOrderSummary{TotalSpend: decimal.Zero}
	suppliers := make(map[int64]struct{})
	index := make(map[string]int)
	var byStatus []StatusTotal
	for _, row := range rows {
		summary.TotalOrders++
		summary.TotalSpend = summary.TotalSpend.Add(row.TotalAmount)
		suppliers[row.SupplierID] = struct{}{}
		switch row.Status {
		case string(procurement.StatusOpen):
			summary.OpenOrders++
		case string(procurement.StatusReceived):
			summary.ReceivedOrders++
		}
		i, ok := index[row.Status]
		if !ok {
			i = len(byStatus)
			index[row.Status] = i
			byStatus = append(byStatus, StatusTotal{Status: row.Status, Total: decimal.Zero})
		}
		byStatus[i].Count++
		byStatus[i].Total = byStatus[i].Total.Add(row.TotalAmount)
	}
	summary.SupplierCount = len(suppliers)
	slices.SortFunc(byStatus, func(a, b StatusTotal) int { return cmp.Compare(a.Status, b.Status) })
	return summary, byStatus
}

func summariseSuppliers(rows []SupplierRow) SupplierSummary {
	summary := SupplierSummary{TotalSuppliers: len(rows), TotalSpend: decimal.Zero}
	var (
		weighted  float64
		delivered int
	)
	for _, row := range rows {
		summary.TotalOrders += row.OrderCount
		summary.TotalSpend = summary.TotalSpend.Add(row.TotalSpend)
		if row.AvgDeliveryDays != nil && row.DeliveredOrders > 0 {
			weighted += *row.AvgDeliveryDays * float64(row.DeliveredOrders)
			delivered += row.DeliveredOrders
		}
	}
	if delivered > 0 {
		avg := weighted / float64(delivered)
		summary.AvgDeliveryDays = &avg
	}
	return summary
}
