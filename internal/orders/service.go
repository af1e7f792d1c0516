package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-wms/internal/cart"
	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// DefaultShippingFee is charged when no fee is configured.
var DefaultShippingFee = decimal.RequireFromString("10.00")

// TxRepository exposes the transactional order operations.
type TxRepository interface {
	inventory.MovementWriter
	// CartLines reads the cart; lock holds the rows FOR UPDATE.
	CartLines(ctx context.Context, userID int64, lock bool) ([]cart.Item, error)
	LockProducts(ctx context.Context, ids []int64) ([]int64, error)
	OnHand(ctx context.Context, productID int64) (int, error)
	ClearCart(ctx context.Context, userID int64) error
	InsertOrder(ctx context.Context, order Order) (Order, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	InsertHistory(ctx context.Context, entry HistoryEntry) error
	// LockOrder reads the header FOR UPDATE.
	LockOrder(ctx context.Context, orderID int64) (Order, bool, error)
	Items(ctx context.Context, orderID int64) ([]Item, error)
	SetStatus(ctx context.Context, orderID int64, status Status) error
}

// Repository abstracts order persistence.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, orderID int64) (Order, bool, error)
	Items(ctx context.Context, orderID int64) ([]Item, error)
	History(ctx context.Context, orderID int64) ([]HistoryEntry, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
}

// Locker serialises checkout with the customer's cart mutations.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// Mailer queues customer notifications.
type Mailer interface {
	EnqueueMail(ctx context.Context, to, subject, body string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the order workflow.
type Service struct {
	repo        Repository
	locker      Locker
	mailer      Mailer
	audit       AuditPort
	logger      *slog.Logger
	shippingFee decimal.Decimal
	invalidator shared.Invalidator
}

// WithInvalidator bumps inv after checkout and cancellation commit.
func (s *Service) WithInvalidator(inv shared.Invalidator) {
	s.invalidator = inv
}

// NewService builds Service. locker, mailer and audit may be nil.
func NewService(repo Repository, locker Locker, mailer Mailer, audit AuditPort, logger *slog.Logger, shippingFee decimal.Decimal) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if shippingFee.IsNegative() {
		shippingFee = DefaultShippingFee
	}
	return &Service{
		repo:        repo,
		locker:      locker,
		mailer:      mailer,
		audit:       audit,
		logger:      logger,
		shippingFee: shippingFee,
	}
}

// PlaceOrder turns the actor's cart into a PENDING order. Stock is re-checked
// under product row locks; the order, its SALE movements, the history row and
// the emptied cart commit together.
func (s *Service) PlaceOrder(ctx context.Context, actor shared.Actor, input CheckoutInput) (Detail, error) {
	if err := shared.Authorize(actor, shared.CapPlaceOrders); err != nil {
		return Detail{}, err
	}
	input, err := normalizeCheckout(input)
	if err != nil {
		return Detail{}, err
	}

	var detail Detail
	err = s.withCartLock(ctx, actor.ID, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			detail, err = s.checkout(ctx, tx, actor.ID, input)
			return err
		})
	})
	if err != nil {
		return Detail{}, err
	}

	shared.Invalidate(ctx, s.invalidator)
	s.recordAudit(ctx, actor.ID, "order:place", detail.ID, map[string]any{
		"number": detail.Number,
		"total":  detail.TotalAmount.StringFixed(2),
	})
	s.notify(ctx, detail.Order)
	return detail, nil
}

func (s *Service) checkout(ctx context.Context, tx TxRepository, userID int64, input CheckoutInput) (Detail, error) {
	lines, err := tx.CartLines(ctx, userID, false)
	if err != nil {
		return Detail{}, err
	}
	if len(lines) == 0 {
		return Detail{}, ErrEmptyCart
	}
	ids := productIDs(lines)
	locked, err := tx.LockProducts(ctx, ids)
	if err != nil {
		return Detail{}, err
	}
	// products before cart rows, the order AddItem and AdjustQuantity use
	lines, err = tx.CartLines(ctx, userID, true)
	if err != nil {
		return Detail{}, err
	}
	if len(lines) == 0 {
		return Detail{}, ErrEmptyCart
	}
	if !slices.Equal(productIDs(lines), ids) || len(locked) != len(ids) {
		return Detail{}, ErrCartChanged
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		onHand, err := tx.OnHand(ctx, line.ProductID)
		if err != nil {
			return Detail{}, err
		}
		if line.Quantity > onHand {
			return Detail{}, fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, line.Name, max(onHand, 0))
		}
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	order, err := tx.InsertOrder(ctx, Order{
		Number:        shared.DocumentNumber("ORD"),
		UserID:        userID,
		Shipping:      input.ShippingInfo,
		PaymentMethod: input.PaymentMethod,
		Subtotal:      subtotal,
		ShippingFee:   s.shippingFee,
		TotalAmount:   subtotal.Add(s.shippingFee),
		Status:        StatusPending,
		ItemCount:     len(lines),
	})
	if err != nil {
		return Detail{}, err
	}

	detail := Detail{Order: order}
	reference := fmt.Sprintf("Order #%d", order.ID)
	for _, line := range lines {
		item, err := tx.InsertItem(ctx, Item{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Quantity,
			Price:     line.UnitPrice,
		})
		if err != nil {
			return Detail{}, err
		}
		detail.Items = append(detail.Items, item)
		if _, err := inventory.Record(ctx, tx, inventory.MovementInput{
			ProductID: line.ProductID,
			Type:      inventory.MovementSale,
			Qty:       -line.Quantity,
			Reference: reference,
			ActorID:   userID,
		}); err != nil {
			return Detail{}, err
		}
	}

	entry := HistoryEntry{OrderID: order.ID, Status: StatusPending, Notes: "Order placed", ChangedBy: userID}
	if err := tx.InsertHistory(ctx, entry); err != nil {
		return Detail{}, err
	}
	detail.History = []HistoryEntry{entry}
	if err := tx.ClearCart(ctx, userID); err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// CancelOrder cancels one of the actor's PENDING orders and returns its
// stock to the ledger with ADJUST movements. SALE rows are left untouched.
func (s *Service) CancelOrder(ctx context.Context, actor shared.Actor, orderID int64) error {
	if err := shared.Authorize(actor, shared.CapPlaceOrders); err != nil {
		return err
	}
	if orderID <= 0 {
		return ErrOrderNotFound
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, ok, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !ok || order.UserID != actor.ID {
			return ErrOrderNotFound
		}
		if order.Status != StatusPending {
			return ErrNotCancellable
		}
		items, err := tx.Items(ctx, orderID)
		if err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, orderID, StatusCancelled); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, HistoryEntry{
			OrderID:   orderID,
			Status:    StatusCancelled,
			Notes:     "Cancelled by customer",
			ChangedBy: actor.ID,
		}); err != nil {
			return err
		}
		reference := fmt.Sprintf("Return from cancelled order #%d", orderID)
		for _, item := range items {
			if _, err := inventory.Record(ctx, tx, inventory.MovementInput{
				ProductID: item.ProductID,
				Type:      inventory.MovementAdjust,
				Qty:       item.Quantity,
				Reference: reference,
				ActorID:   actor.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	shared.Invalidate(ctx, s.invalidator)
	s.recordAudit(ctx, actor.ID, "order:cancel", orderID, nil)
	return nil
}

// AdvanceStatus moves an order PENDING to SHIPPED or SHIPPED to COMPLETED.
func (s *Service) AdvanceStatus(ctx context.Context, actor shared.Actor, orderID int64, next Status, note string) error {
	if err := shared.Authorize(actor, shared.CapManageInventory); err != nil {
		return err
	}
	if orderID <= 0 {
		return ErrOrderNotFound
	}
	note = strings.TrimSpace(note)
	if note == "" {
		note = fmt.Sprintf("Status changed to %s", next)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, ok, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderNotFound
		}
		if !order.Status.CanAdvance(next) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, next)
		}
		if err := tx.SetStatus(ctx, orderID, next); err != nil {
			return err
		}
		return tx.InsertHistory(ctx, HistoryEntry{OrderID: orderID, Status: next, Notes: note, ChangedBy: actor.ID})
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "order:status", orderID, map[string]any{"status": string(next)})
	return nil
}

// Get returns an order with lines and history. Customers only see their own
// orders; inventory managers see all of them.
func (s *Service) Get(ctx context.Context, actor shared.Actor, orderID int64) (Detail, error) {
	userScope, err := scope(actor)
	if err != nil {
		return Detail{}, err
	}
	order, ok, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	if !ok || (userScope != 0 && order.UserID != userScope) {
		return Detail{}, ErrOrderNotFound
	}
	items, err := s.repo.Items(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	history, err := s.repo.History(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Order: order, Items: items, History: history}, nil
}

// List returns orders newest first, scoped like Get.
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Order, int, error) {
	userScope, err := scope(actor)
	if err != nil {
		return nil, 0, err
	}
	if userScope != 0 {
		filter.UserID = userScope
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, shared.Kind(shared.ErrValidation, "unknown order status")
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 20
	}
	filter.Offset = max(filter.Offset, 0)
	return s.repo.List(ctx, filter)
}

func scope(actor shared.Actor) (int64, error) {
	if actor.Role.Can(shared.CapManageInventory) {
		return 0, nil
	}
	if err := shared.Authorize(actor, shared.CapViewOrders); err != nil {
		return 0, err
	}
	return actor.ID, nil
}

func normalizeCheckout(input CheckoutInput) (CheckoutInput, error) {
	info := &input.ShippingInfo
	for _, field := range []*string{&info.FullName, &info.Email, &info.Phone, &info.Address, &info.City, &info.State, &info.Zipcode, &input.PaymentMethod} {
		*field = strings.TrimSpace(*field)
	}
	if info.FullName == "" || info.Email == "" || info.Address == "" || info.City == "" || info.Zipcode == "" || input.PaymentMethod == "" {
		return CheckoutInput{}, ErrMissingFields
	}
	if _, err := mail.ParseAddress(info.Email); err != nil {
		return CheckoutInput{}, ErrInvalidEmail
	}
	input.PaymentMethod = strings.ToUpper(input.PaymentMethod)
	switch input.PaymentMethod {
	case PaymentCreditCard, PaymentPayPal, PaymentCOD:
	default:
		return CheckoutInput{}, ErrInvalidPayment
	}
	return input, nil
}

func productIDs(lines []cart.Item) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)
	return ids
}

func (s *Service) withCartLock(ctx context.Context, userID int64, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithLock(ctx, shared.CartLockKey(userID), fn)
	if errors.Is(err, cache.ErrLockNotObtained) {
		return cart.ErrCartBusy
	}
	return err
}

func (s *Service) notify(ctx context.Context, order Order) {
	if s.mailer == nil {
		return
	}
	subject := fmt.Sprintf("Order %s received", order.Number)
	body := fmt.Sprintf("Hi %s, we received order #%d. Total: %s. We will let you know when it ships.",
		order.Shipping.FullName, order.ID, order.TotalAmount.StringFixed(2))
	if err := s.mailer.EnqueueMail(ctx, order.Shipping.Email, subject, body); err != nil {
		s.logger.Warn("order confirmation not queued", slog.Int64("order_id", order.ID), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: fmt.Sprintf("%d", orderID),
		Meta:     meta,
	})
}
