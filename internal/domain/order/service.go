package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/warung-pos/internal/domain/apperr"
	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/internal/domain/cancellation"
	"github.com/xenking/warung-pos/internal/domain/cart"
	"github.com/xenking/warung-pos/internal/domain/customer"
	"github.com/xenking/warung-pos/internal/domain/menu"
	"github.com/xenking/warung-pos/internal/events"
)

const (
	instrumentationName = "github.com/xenking/warung-pos/internal/domain/order"
	maxNoteLen          = 500
)

// CustomerResolver finds or registers the customer placing an order.
type CustomerResolver interface {
	Resolve(ctx context.Context, ref customer.Ref) (*customer.Customer, error)
}

// IdempotencyStore remembers which order a checkout key produced.
//
// Reserve claims an unused key and reports reserved. For a key that already
// produced an order it returns that order id. For a key another checkout
// holds it returns neither. Remember and Release are called only by the
// holder of a reservation.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (orderID string, reserved bool, err error)
	Remember(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

// How long a checkout waits for another checkout holding the same key.
const (
	claimTimeout = 3 * time.Second
	claimPoll    = 25 * time.Millisecond
)

// CartItem is a requested (item, quantity) pair from a remote cart.
type CartItem struct {
	MenuItemID string
	Quantity   int
}

// CheckoutRequest holds the input for turning a cart into an order.
type CheckoutRequest struct {
	Cart           *cart.Cart
	Customer       customer.Ref
	Note           string
	IdempotencyKey string
}

// Service runs the order lifecycle.
type Service struct {
	items     menu.Repository
	customers CustomerResolver
	orders    Repository
	idem      IdempotencyStore
	publisher events.Publisher
	now       func() time.Time

	tracer      trace.Tracer
	transitions metric.Int64Counter
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	idem      IdempotencyStore
	publisher events.Publisher
	now       func() time.Time
	tp        trace.TracerProvider
	mp        metric.MeterProvider
}

// WithIdempotency enables Idempotency-Key handling on Checkout.
func WithIdempotency(s IdempotencyStore) Option {
	return func(o *serviceOptions) { o.idem = s }
}

// WithPublisher sets where lifecycle events go.
func WithPublisher(p events.Publisher) Option {
	return func(o *serviceOptions) { o.publisher = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *serviceOptions) { o.tp = tp }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *serviceOptions) { o.mp = mp }
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	items menu.Repository,
	customers CustomerResolver,
	orders Repository,
	opts ...Option,
) *Service {
	o := serviceOptions{
		publisher: events.Nop{},
		now:       time.Now,
		tp:        tracenoop.NewTracerProvider(),
		mp:        metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	transitions, err := o.mp.Meter(instrumentationName).Int64Counter("pos.order.transitions",
		metric.WithDescription("Order lifecycle operations by outcome"),
	)
	if err != nil {
		transitions = metricnoop.Int64Counter{}
	}

	return &Service{
		items:       items,
		customers:   customers,
		orders:      orders,
		idem:        o.idem,
		publisher:   o.publisher,
		now:         o.now,
		tracer:      o.tp.Tracer(instrumentationName),
		transitions: transitions,
	}
}

func (s *Service) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "order."+op)
}

func (s *Service) finish(ctx context.Context, span trace.Span, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = outcomeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
	span.End()
}

func outcomeOf(err error) string {
	var (
		ve *apperr.ValidationError
		pe *apperr.PreconditionError
		nf *apperr.NotFoundError
		fe *auth.ForbiddenError
	)
	switch {
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &pe):
		return "precondition"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &fe):
		return "forbidden"
	default:
		return "error"
	}
}

// BuildCart turns remote (item, quantity) pairs into a cart, fetching the
// catalog in a single batch. Prices are snapshotted here.
func (s *Service) BuildCart(ctx context.Context, items []CartItem) (*cart.Cart, error) {
	if len(items) == 0 {
		return nil, apperr.Invalid("items", "cart is empty")
	}

	ids := make([]string, len(items))
	for i, it := range items {
		if it.Quantity <= 0 || it.Quantity > cart.MaxQuantity {
			return nil, apperr.Invalid("quantity", fmt.Sprintf("must be between 1 and %d for item %s", cart.MaxQuantity, it.MenuItemID))
		}
		ids[i] = it.MenuItemID
	}

	fetched, err := s.items.GetByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Persistence("get menu items", err)
	}
	byID := make(map[string]menu.Item, len(fetched))
	for _, it := range fetched {
		byID[it.ID] = it
	}

	c := cart.New()
	for _, req := range items {
		it, ok := byID[req.MenuItemID]
		if !ok {
			return nil, &apperr.NotFoundError{Entity: "menu item", ID: req.MenuItemID}
		}
		if !it.Available {
			return nil, apperr.Invalid("items", fmt.Sprintf("%s is not available", it.Name))
		}
		c.AddN(it, req.Quantity)
		if c.Quantity(it.ID) > cart.MaxQuantity {
			return nil, apperr.Invalid("quantity", fmt.Sprintf("must be between 1 and %d for item %s", cart.MaxQuantity, it.ID))
		}
	}
	return c, nil
}

// Checkout converts the cart into a pending order. On success the cart is
// cleared; on any error it is left as it was.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (o *Order, err error) {
	ctx, span := s.start(ctx, "Checkout")
	defer func() { s.finish(ctx, span, "checkout", err) }()

	if req.Cart == nil || req.Cart.IsEmpty() {
		return nil, apperr.Invalid("cart", "cart is empty")
	}
	if req.Customer.ID == "" && strings.TrimSpace(req.Customer.Name) == "" {
		return nil, apperr.Invalid("customer name", "must not be blank")
	}
	note := strings.TrimSpace(req.Note)
	if len(note) > maxNoteLen {
		return nil, apperr.Invalid("note", "too long")
	}

	reserved := false
	if req.IdempotencyKey != "" && s.idem != nil {
		id, ok, cerr := s.claim(ctx, req.IdempotencyKey)
		if cerr != nil {
			return nil, cerr
		}
		if id != "" {
			return s.Get(ctx, id)
		}
		reserved = ok
	}
	if reserved {
		key := req.IdempotencyKey
		defer func() {
			if err == nil {
				return
			}
			if rerr := s.idem.Release(context.WithoutCancel(ctx), key); rerr != nil {
				zctx.From(ctx).Warn("Idempotency release failed", zap.Error(rerr))
			}
		}()
	}

	cust, err := s.customers.Resolve(ctx, req.Customer)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cartLines := req.Cart.Lines()
	lines := make([]Line, len(cartLines))
	for i, l := range cartLines {
		lines[i] = Line{
			MenuItemID: l.ItemID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
		}
	}

	o = &Order{
		ID:           uuid.New().String(),
		CustomerID:   cust.ID,
		CustomerName: cust.Name,
		Note:         note,
		Status:       StatusPending,
		Lines:        lines,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o.Total = o.LinesTotal()

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, apperr.Persistence("create order", err)
	}
	req.Cart.Clear()

	if reserved {
		if err := s.idem.Remember(ctx, req.IdempotencyKey, o.ID); err != nil {
			zctx.From(ctx).Warn("Idempotency remember failed", zap.Error(err))
		}
	}

	s.publish(ctx, events.OrderCreated, o)
	return o, nil
}

// claim reserves key for this checkout or returns the order an earlier
// checkout with the same key created, waiting while another checkout holds
// the key. When the store fails, checkout proceeds without a reservation.
func (s *Service) claim(ctx context.Context, key string) (string, bool, error) {
	deadline := time.NewTimer(claimTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(claimPoll)
	defer tick.Stop()

	for {
		id, ok, err := s.idem.Reserve(ctx, key)
		if err != nil {
			zctx.From(ctx).Warn("Idempotency reserve failed", zap.Error(err))
			return "", false, nil
		}
		if ok || id != "" {
			return id, ok, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-deadline.C:
			return "", false, apperr.Precondition("checkout", ErrCheckoutInProgress)
		case <-tick.C:
		}
	}
}

// SelectPaymentMethod attaches a payment and receipt to a pending order.
func (s *Service) SelectPaymentMethod(ctx context.Context, orderID string, m Method) (o *Order, err error) {
	ctx, span := s.start(ctx, "SelectPaymentMethod")
	defer func() { s.finish(ctx, span, "select_payment", err) }()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("payment.method", string(m)))

	if m != MethodCash && m != MethodQRIS {
		return nil, apperr.Invalid("method", fmt.Sprintf("unknown payment method %q", m))
	}

	const op = "select payment method"
	o, err = s.load(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	from := o.Status
	if err := o.SelectPayment(m, uuid.New().String(), uuid.New().String(), s.now()); err != nil {
		return nil, apperr.Precondition(op, err)
	}
	if err := s.orders.SavePayment(ctx, o, from); err != nil {
		return nil, storeError(op, err)
	}

	if o.Status == StatusCompleted {
		s.publish(ctx, events.OrderCompleted, o)
	} else {
		s.publish(ctx, events.PaymentAwaiting, o)
	}
	return o, nil
}

// ConfirmCashPayment is the cashier acknowledging that cash was received.
func (s *Service) ConfirmCashPayment(ctx context.Context, orderID string, cashier auth.Principal) (o *Order, err error) {
	ctx, span := s.start(ctx, "ConfirmCashPayment")
	defer func() { s.finish(ctx, span, "confirm_cash", err) }()
	span.SetAttributes(attribute.String("order.id", orderID))

	if err := cashier.Require(auth.CapConfirmCash); err != nil {
		return nil, err
	}
	if cashier.UserID == "" {
		return nil, apperr.Invalid("cashier", "must be identified")
	}

	const op = "confirm cash payment"
	o, err = s.load(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	from := o.Status
	if err := o.ConfirmCash(cashier.UserID, s.now()); err != nil {
		return nil, apperr.Precondition(op, err)
	}
	if err := s.orders.ConfirmPayment(ctx, o, from); err != nil {
		return nil, storeError(op, err)
	}

	s.publish(ctx, events.OrderCompleted, o)
	return o, nil
}

// Cancel abandons a pending or awaiting order and records why.
func (s *Service) Cancel(ctx context.Context, orderID, reason string) (o *Order, err error) {
	ctx, span := s.start(ctx, "Cancel")
	defer func() { s.finish(ctx, span, "cancel", err) }()
	span.SetAttributes(attribute.String("order.id", orderID))

	rec, err := cancellation.NewRecord(orderID, reason, s.now())
	if err != nil {
		return nil, err
	}

	const op = "cancel order"
	o, err = s.load(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	from := o.Status
	if err := o.Cancel(rec); err != nil {
		return nil, apperr.Precondition(op, err)
	}
	if err := s.orders.Cancel(ctx, o, from); err != nil {
		if errors.Is(err, cancellation.ErrDuplicate) {
			return nil, apperr.Precondition(op, ErrAlreadyCancelled)
		}
		return nil, storeError(op, err)
	}

	s.publish(ctx, events.OrderCancelled, o)
	return o, nil
}

// Get returns a single order with its payment, receipt and cancellation.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.load(ctx, "get order", id)
}

// GetByReceipt finds the order a customer's receipt belongs to.
func (s *Service) GetByReceipt(ctx context.Context, receiptID string) (*Order, error) {
	o, err := s.orders.GetByReceiptID(ctx, receiptID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, &apperr.NotFoundError{Entity: "receipt", ID: receiptID}
	case err != nil:
		return nil, apperr.Persistence("get order by receipt", err)
	}
	return o, nil
}

// PendingCash is the cashier queue: cash orders waiting for confirmation.
func (s *Service) PendingCash(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.ListAwaitingCash(ctx)
	if err != nil {
		return nil, apperr.Persistence("list pending cash", err)
	}
	return orders, nil
}

func (s *Service) load(ctx context.Context, op, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, &apperr.NotFoundError{Entity: "order", ID: id}
	case err != nil:
		return nil, apperr.Persistence(op, err)
	}
	return o, nil
}

func storeError(op string, err error) error {
	if errors.Is(err, ErrConcurrentUpdate) {
		return apperr.Precondition(op, ErrConcurrentUpdate)
	}
	return apperr.Persistence(op, err)
}

func (s *Service) publish(ctx context.Context, t events.Type, o *Order) {
	e := events.Event{
		ID:           uuid.New().String(),
		Type:         t,
		OrderID:      o.ID,
		Status:       string(o.Status),
		Amount:       o.Total.IntPart(),
		CustomerName: o.CustomerName,
		At:           o.UpdatedAt,
	}
	if o.Payment != nil {
		e.Method = string(o.Payment.Method)
	}
	if o.Cancellation != nil {
		e.Reason = o.Cancellation.Reason
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish order event",
			zap.String("type", string(t)),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
