package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/odyssey-erp/odyssey-wms/internal/jobs"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

const (
	// TaskLowStockScan scans products at or below their reorder level.
	TaskLowStockScan = "inventory:low_stock_scan"
	// LowStockCronSpec runs the scan daily at 06:00 UTC.
	LowStockCronSpec = "0 6 * * *"
)

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the low stock scan.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// LowStockItem is a product that needs reordering.
type LowStockItem struct {
	ID           int64
	SKU          string
	Name         string
	OnHand       int
	ReorderLevel int
}

// LowStockStore reads scan inputs.
type LowStockStore interface {
	LowStockProducts(ctx context.Context) ([]LowStockItem, error)
	StaffEmails(ctx context.Context) ([]string, error)
}

// MailQueue enqueues notification emails.
type MailQueue interface {
	EnqueueMail(ctx context.Context, to, subject, body string) error
}

// LowStockScanJob notifies staff about products at or below reorder level.
type LowStockScanJob struct {
	Store   LowStockStore
	Mail    MailQueue
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskLowStockScan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil || j.Mail == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return errors.Join(err, asynq.SkipRetry)
		}
	}

	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()
	logger := loggerOrDefault(j.Logger).With(slog.String("task", TaskLowStockScan))

	items, err := j.Store.LowStockProducts(ctx)
	if err != nil {
		logger.Error("load low stock products", slog.Any("error", err))
		return err
	}
	j.Metrics.SetLowStock(len(items))
	if len(items) == 0 {
		logger.Info("no products below reorder level")
		return nil
	}
	recipients, err := j.Store.StaffEmails(ctx)
	if err != nil {
		logger.Error("load staff emails", slog.Any("error", err))
		return err
	}

	subject := fmt.Sprintf("Low stock alert: %d product(s) need reordering", len(items))
	body := LowStockDigest(items)
	var errs []error
	for _, to := range recipients {
		if err := j.Mail.EnqueueMail(ctx, to, subject, body); err != nil {
			errs = append(errs, fmt.Errorf("enqueue low stock mail to %s: %w", to, err))
		}
	}
	logger.Info("low stock scan complete", slog.Int("products", len(items)), slog.Int("recipients", len(recipients)))
	return errors.Join(errs...)
}

// LowStockDigest renders the plain-text notification body.
func LowStockDigest(items []LowStockItem) string {
	var b strings.Builder
	b.WriteString("The following products are at or below their reorder level:\n\n")
	for _, item := range items {
		status := "LOW"
		if item.OnHand <= 0 {
			status = "OUT"
		}
		fmt.Fprintf(&b, "- [%s] %s (%s): %d on hand, reorder at %d\n", status, item.Name, item.SKU, item.OnHand, item.ReorderLevel)
	}
	return b.String()
}

// PGLowStockStore reads scan inputs from PostgreSQL.
type PGLowStockStore struct {
	pool *pgxpool.Pool
}

// NewPGLowStockStore constructs the store.
func NewPGLowStockStore(pool *pgxpool.Pool) *PGLowStockStore {
	return &PGLowStockStore{pool: pool}
}

// LowStockProducts lists products at or below reorder level, emptiest first.
func (s *PGLowStockStore) LowStockProducts(ctx context.Context) ([]LowStockItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT p.id, p.sku, p.name, st.on_hand, p.reorder_level
FROM products p
JOIN v_product_stock st ON st.id = p.id
WHERE st.on_hand <= p.reorder_level
ORDER BY st.on_hand, p.name`)
	if err != nil {
		return nil, shared.Persistence("jobs: low stock", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LowStockItem, error) {
		var item LowStockItem
		err := row.Scan(&item.ID, &item.SKU, &item.Name, &item.OnHand, &item.ReorderLevel)
		return item, err
	})
	if err != nil {
		return nil, shared.Persistence("jobs: low stock", err)
	}
	return items, nil
}

// StaffEmails lists the addresses of admins and staff.
func (s *PGLowStockStore) StaffEmails(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT email FROM users WHERE role IN ('admin', 'staff') ORDER BY id`)
	if err != nil {
		return nil, shared.Persistence("jobs: staff emails", err)
	}
	emails, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, shared.Persistence("jobs: staff emails", err)
	}
	return emails, nil
}
