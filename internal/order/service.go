package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-pos/internal/logger"
	"ms-pos/internal/models"
	"ms-pos/internal/order/discount"
	"ms-pos/internal/order/pricing"
	"ms-pos/internal/order/sequence"

	"github.com/google/uuid"
)

const (
	maxAllocationAttempts = 10
	maxUpdateAttempts     = 3
	defaultListLimit      = 50
	maxListLimit          = 500
)

// Delivery is the outcome of a best-effort side effect. A failed delivery never
// fails the operation that caused it.
type Delivery struct {
	Attempted bool
	Err       error
}

func (d Delivery) OK() bool {
	return d.Attempted && d.Err == nil
}

// AdmissionResult is a committed order plus what happened around it.
type AdmissionResult struct {
	Order          *models.Order
	PromoRejection *discount.Rejection
	Replayed       bool
	Published      Delivery
	Notified       Delivery
}

type Options struct {
	OrdersTopic   string
	Notifier      Notifier
	Guard         SubmissionGuard
	Policy        TransitionPolicy
	NotifyTimeout time.Duration
	// Clock defaults to time.Now in UTC.
	Clock func() time.Time
}

type OrderService struct {
	DB       DBLayer
	Sequence sequence.Allocator
	Bus      EventPublisher
	Settings SettingsSource
	Logger   *logger.Logger

	notifier      Notifier
	guard         SubmissionGuard
	policy        TransitionPolicy
	ordersTopic   string
	notifyTimeout time.Duration

	now   func() time.Time
	newID func() string
}

func NewOrderService(db DBLayer, seq sequence.Allocator, bus EventPublisher, settings SettingsSource, log *logger.Logger, opts Options) *OrderService {
	s := &OrderService{
		DB:            db,
		Sequence:      seq,
		Bus:           bus,
		Settings:      settings,
		Logger:        log,
		notifier:      opts.Notifier,
		guard:         opts.Guard,
		policy:        opts.Policy,
		ordersTopic:   opts.OrdersTopic,
		notifyTimeout: opts.NotifyTimeout,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         func() string { return uuid.New().String() },
	}
	if opts.Clock != nil {
		s.now = opts.Clock
	}
	if s.policy == nil {
		s.policy = Permissive{}
	}
	if s.ordersTopic == "" {
		s.ordersTopic = "pos:orders:new"
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = 10 * time.Second
	}
	return s
}

// ---------------- ADMISSION ----------------

// PlaceOrderOnce runs PlaceOrder behind the submission guard when the client sent
// an idempotency key. A retry of a committed submission returns the same order.
func (s *OrderService) PlaceOrderOnce(ctx context.Context, key string, req models.OrderRequest) (*AdmissionResult, error) {
	if s.guard == nil || key == "" {
		return s.PlaceOrder(ctx, req)
	}

	owner := s.newID()
	existingID, acquired, err := s.guard.Acquire(ctx, key, owner)
	if err != nil {
		s.Logger.Warn("ORDER", fmt.Sprintf("Submission guard unavailable for key %s, admitting without it: %v", key, err))
		return s.PlaceOrder(ctx, req)
	}
	if !acquired {
		if existingID == "" {
			return nil, ErrSubmissionInProgress
		}
		existing, err := s.GetOrder(ctx, existingID)
		if err != nil {
			return nil, err
		}
		s.Logger.LogOrder("REPLAY", existing.OrderNumber, fmt.Sprintf("idempotency key %s", key))
		return &AdmissionResult{Order: existing, Replayed: true}, nil
	}

	res, err := s.PlaceOrder(ctx, req)
	if err != nil {
		if relErr := s.guard.Release(context.WithoutCancel(ctx), key, owner); relErr != nil {
			s.Logger.Warn("ORDER", fmt.Sprintf("Failed to release submission key %s: %v", key, relErr))
		}
		return nil, err
	}
	if err := s.guard.Complete(context.WithoutCancel(ctx), key, owner, res.Order.ID); err != nil {
		s.Logger.Warn("ORDER", fmt.Sprintf("Failed to complete submission key %s: %v", key, err))
	}
	return res, nil
}

// PlaceOrder turns a cart into a committed order. Only validation errors, the
// delivery minimum and store failures are fatal; promo problems, bus publishing and
// notifications degrade silently into the result.
func (s *OrderService) PlaceOrder(ctx context.Context, req models.OrderRequest) (*AdmissionResult, error) {
	settings := s.Settings.Snapshot()

	orderType, items, err := validateCart(req, settings)
	if err != nil {
		return nil, err
	}

	now := s.now()
	code := models.NormalizeCode(req.PromoCode)

	var promo *models.PromoCode
	if code != "" {
		promo, err = s.DB.GetPromoCode(ctx, code)
		if errors.Is(err, ErrPromoNotFound) {
			promo, err = nil, nil
		}
		if err != nil {
			return nil, unavailable("get promo", err)
		}
	}

	quote, err := pricing.Price(items, settings.Delivery, orderType, req.DeliveryZone, promo, code != "", now)
	if err != nil {
		var below *pricing.BelowMinimumError
		if errors.As(err, &below) {
			s.Logger.Info("ORDER", fmt.Sprintf("Rejected %s order below delivery minimum %.2f (subtotal %.2f)", orderType, below.Threshold, pricing.Subtotal(items)))
			return nil, err
		}
		return nil, invalid("items", "%v", err)
	}

	o := &models.Order{
		ID:            s.newID(),
		Items:         items,
		Status:        models.StatusNew,
		PaymentStatus: models.PaymentPending,
		OrderType:     orderType,
		TableNumber:   req.TableNumber,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		DeliveryZone:  req.DeliveryZone,
		DeliveryAddr:  strings.TrimSpace(req.DeliveryAddr),
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now.Truncate(time.Microsecond),
	}

	final, err := s.commit(ctx, o, quote, now)
	if err != nil {
		return nil, err
	}

	res := &AdmissionResult{Order: o, PromoRejection: final.Promo.Rejection}
	if res.PromoRejection != nil && code != "" {
		s.Logger.Info("ORDER", fmt.Sprintf("Promo %s not applied to %s: %s", code, o.OrderNumber, res.PromoRejection.Reason))
	}
	s.Logger.LogOrder("CREATED", o.OrderNumber, fmt.Sprintf("type=%s subtotal=%.2f discount=%.2f total=%.2f", o.OrderType, o.Subtotal, o.DiscountAmount, o.Total))

	// The order is committed; the caller going away must not suppress the fan-out.
	detached := context.WithoutCancel(ctx)
	res.Published = s.publish(detached, models.NewOrderEvent{Type: models.EventNewOrder, Order: *o}, o.OrderNumber)
	res.Notified = s.notify(detached, o)

	return res, nil
}

// commit allocates a number and persists the order together with its promo use.
// Losing the race for a promo's last use re-prices the order without discount.
// The number is drawn for the same instant as created_at so both fall on one day.
func (s *OrderService) commit(ctx context.Context, o *models.Order, quote pricing.Quote, now time.Time) (pricing.Quote, error) {
	var final pricing.Quote

	for attempt := 1; ; attempt++ {
		number, err := s.Sequence.Next(ctx, now)
		if err != nil {
			return final, unavailable("allocate order number", err)
		}
		o.OrderNumber = number

		err = s.DB.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
			final = quote
			if quote.PromoCode != "" {
				redeemed, err := tx.IncrementPromoUsage(ctx, quote.PromoCode)
				if err != nil {
					return err
				}
				if !redeemed {
					final = quote.WithoutDiscount()
				}
			}
			applyQuote(o, final)
			return tx.InsertOrder(ctx, o)
		})
		if err == nil {
			return final, nil
		}

		if errors.Is(err, ErrDuplicateOrderNumber) && attempt < maxAllocationAttempts {
			s.Logger.Warn("ORDER", fmt.Sprintf("Order number %s already taken, reallocating (attempt %d)", number, attempt))
			continue
		}
		return final, unavailable("insert order", err)
	}
}

func applyQuote(o *models.Order, q pricing.Quote) {
	o.Subtotal = q.Subtotal
	o.DiscountAmount = q.DiscountAmount
	o.PromoCode = q.PromoCode
	o.Total = q.Total
}

func validateCart(req models.OrderRequest, settings *models.Settings) (models.OrderType, []models.OrderItem, error) {
	orderType, err := models.ParseOrderType(req.OrderType)
	if err != nil {
		return "", nil, invalid("order_type", "unknown order type %q", req.OrderType)
	}
	if !settings.OrderTypeEnabled(orderType) {
		return "", nil, invalid("order_type", "order type %q is disabled", orderType)
	}
	if len(req.Items) == 0 {
		return "", nil, invalid("items", "order must contain at least one item")
	}
	if req.TableNumber != nil && *req.TableNumber < 1 {
		return "", nil, invalid("table_number", "must be positive")
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	for i, it := range req.Items {
		if it.Quantity < 1 {
			return "", nil, invalid(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
		if it.Price < 0 {
			return "", nil, invalid(fmt.Sprintf("items[%d].price", i), "must not be negative")
		}
		line := models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Modifiers: it.Modifiers,
			IsCombo:   it.IsCombo,
			Children:  it.Children,
		}
		if line.UnitPrice() < 0 {
			return "", nil, invalid(fmt.Sprintf("items[%d].modifiers", i), "unit price with modifiers must not be negative")
		}
		items = append(items, line)
	}
	return orderType, items, nil
}

// ---------------- QUERIES ----------------

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := s.DB.GetOrder(ctx, id)
	if errors.Is(err, ErrOrderNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, unavailable("get order", err)
	}
	return o, nil
}

// ListOrders returns the newest orders first, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, status string, limit int) ([]models.Order, error) {
	filter := models.OrderFilter{Limit: limit}
	if status != "" {
		st, err := models.ParseOrderStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		filter.Status = st
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	orders, err := s.DB.FindOrders(ctx, filter)
	if err != nil {
		return nil, unavailable("find orders", err)
	}
	return orders, nil
}

// ---------------- STATUS ----------------

// UpdateStatus moves an order to a new status and announces it.
func (s *OrderService) UpdateStatus(ctx context.Context, id, raw string) error {
	target, err := models.ParseOrderStatus(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}

	// only a policy that looks at the current status needs compare-and-set
	_, permissive := s.policy.(Permissive)

	for attempt := 1; ; attempt++ {
		current, err := s.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Allow(current.Status, target); err != nil {
			return err
		}

		from := current.Status
		fields := OrderFields{Status: &target}
		if !permissive {
			fields.ExpectStatus = &from
		}
		err = s.DB.UpdateOrderFields(ctx, id, fields)
		if errors.Is(err, ErrOrderNotFound) && !permissive {
			if attempt < maxUpdateAttempts {
				// status moved underneath us; re-check against the new one
				continue
			}
			return fmt.Errorf("%w: concurrent status change on %s", ErrIllegalTransition, id)
		}
		if errors.Is(err, ErrOrderNotFound) {
			return err
		}
		if err != nil {
			return unavailable("update status", err)
		}

		if from.Terminal() && from != target {
			s.Logger.Warn("ORDER", fmt.Sprintf("Order %s reopened from terminal status %s to %s", current.OrderNumber, from, target))
		}
		s.Logger.LogOrder("STATUS", current.OrderNumber, fmt.Sprintf("%s -> %s", from, target))
		s.publish(context.WithoutCancel(ctx), models.OrderUpdatedEvent{
			Type:    models.EventOrderUpdated,
			OrderID: id,
			Status:  target,
		}, current.OrderNumber)
		return nil
	}
}

// UpdatePaymentStatus toggles the manual payment flag. It is independent of the
// order status.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id, raw string) error {
	target, err := models.ParsePaymentStatus(raw)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, raw)
	}

	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return err
	}

	err = s.DB.UpdateOrderFields(ctx, id, OrderFields{PaymentStatus: &target})
	if errors.Is(err, ErrOrderNotFound) {
		return err
	}
	if err != nil {
		return unavailable("update payment", err)
	}

	s.Logger.LogOrder("PAYMENT", current.OrderNumber, fmt.Sprintf("%s -> %s", current.PaymentStatus, target))
	s.publish(context.WithoutCancel(ctx), models.OrderUpdatedEvent{
		Type:          models.EventOrderUpdated,
		OrderID:       id,
		Status:        current.Status,
		PaymentStatus: target,
	}, current.OrderNumber)
	return nil
}

// ---------------- SIDE EFFECTS ----------------

func (s *OrderService) publish(ctx context.Context, event any, orderNumber string) Delivery {
	if s.Bus == nil {
		return Delivery{}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.Logger.Error("BUS", fmt.Sprintf("Failed to encode event for %s: %v", orderNumber, err))
		return Delivery{Attempted: true, Err: err}
	}

	if err := s.Bus.Publish(ctx, s.ordersTopic, payload); err != nil {
		s.Logger.Error("BUS", fmt.Sprintf("Publish to %s failed for %s: %v", s.ordersTopic, orderNumber, err))
		return Delivery{Attempted: true, Err: err}
	}
	s.Logger.LogBus("PUBLISH", s.ordersTopic, orderNumber)
	return Delivery{Attempted: true}
}

func (s *OrderService) notify(ctx context.Context, o *models.Order) Delivery {
	if s.notifier == nil {
		return Delivery{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	n := models.OrderNotification{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Kind:        models.EventNewOrder,
		Text:        FormatOrderMessage(o),
		Order:       o,
	}
	if err := s.notifier.NotifyOrder(ctx, n); err != nil {
		s.Logger.Warn("NOTIFY", fmt.Sprintf("Notification for %s failed: %v", o.OrderNumber, err))
		return Delivery{Attempted: true, Err: err}
	}
	return Delivery{Attempted: true}
}
