package order

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/warung-pos/internal/domain/apperr"
	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/internal/domain/cancellation"
	"github.com/xenking/warung-pos/internal/domain/cart"
	"github.com/xenking/warung-pos/internal/domain/customer"
	"github.com/xenking/warung-pos/internal/domain/menu"
	"github.com/xenking/warung-pos/internal/events"
)

// --- Mock implementations ---

type mockMenuRepo struct {
	byID map[string]menu.Item
}

func (m *mockMenuRepo) List(context.Context, menu.Filter) ([]menu.Item, error) { return nil, nil }

func (m *mockMenuRepo) GetByID(_ context.Context, id string) (*menu.Item, error) {
	it, ok := m.byID[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	return &it, nil
}

func (m *mockMenuRepo) GetByIDs(_ context.Context, ids []string) ([]menu.Item, error) {
	var out []menu.Item
	for _, id := range ids {
		if it, ok := m.byID[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockMenuRepo) Create(context.Context, *menu.Item) error { return nil }
func (m *mockMenuRepo) Update(context.Context, *menu.Item) error { return nil }
func (m *mockMenuRepo) SetAvailability(context.Context, string, bool) error { return nil }
func (m *mockMenuRepo) Delete(context.Context, string) error { return nil }

type mockResolver struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	err   error
}

func (m *mockResolver) Resolve(_ context.Context, ref customer.Ref) (*customer.Customer, error) {
	m.mu.Lock()
	m.calls++
	delay, err := m.delay, m.err
	m.mu.Unlock()

	time.Sleep(delay)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(ref.Name)
	return &customer.Customer{ID: "cust-" + strings.ToLower(name), Name: name}, nil
}

type mockOrderRepo struct {
	mu        sync.Mutex
	byID      map[string]*Order
	creates   int
	cancels   int
	createErr error
	saveErr   error
}

func newOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byID: make(map[string]*Order)}
}

func clone(o *Order) *Order {
	c := *o
	c.Lines = append([]Line(nil), o.Lines...)
	if o.Payment != nil {
		p := *o.Payment
		c.Payment = &p
	}
	if o.Receipt != nil {
		r := *o.Receipt
		c.Receipt = &r
	}
	if o.Cancellation != nil {
		rec := *o.Cancellation
		c.Cancellation = &rec
	}
	return &c
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.creates++
	m.byID[o.ID] = clone(o)
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(o), nil
}

func (m *mockOrderRepo) GetByReceiptID(_ context.Context, receiptID string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.Receipt != nil && o.Receipt.ID == receiptID {
			return clone(o), nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockOrderRepo) ListAwaitingCash(context.Context) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.byID {
		if o.Status == StatusAwaitingPayment && o.Payment != nil && o.Payment.Method == MethodCash {
			out = append(out, *clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderRepo) update(o *Order, from Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	stored, ok := m.byID[o.ID]
	if !ok || stored.Status != from {
		return ErrConcurrentUpdate
	}
	m.byID[o.ID] = clone(o)
	return nil
}

func (m *mockOrderRepo) SavePayment(_ context.Context, o *Order, from Status) error {
	return m.update(o, from)
}

func (m *mockOrderRepo) ConfirmPayment(_ context.Context, o *Order, from Status) error {
	return m.update(o, from)
}

func (m *mockOrderRepo) Cancel(_ context.Context, o *Order, from Status) error {
	if err := m.update(o, from); err != nil {
		return err
	}
	m.mu.Lock()
	m.cancels++
	m.mu.Unlock()
	return nil
}

const pendingKey = "pending"

type memIdempotency struct {
	mu       sync.Mutex
	keys     map[string]string
	releases int
	err      error
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: make(map[string]string)}
}

func (m *memIdempotency) Reserve(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	id, ok := m.keys[key]
	if !ok {
		m.keys[key] = pendingKey
		return "", true, nil
	}
	if id == pendingKey {
		return "", false, nil
	}
	return id, false, nil
}

func (m *memIdempotency) Remember(_ context.Context, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = orderID
	return nil
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] == pendingKey {
		delete(m.keys, key)
	}
	m.releases++
	return nil
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// --- Helpers ---

var (
	gudeg = menu.Item{ID: "m1", Name: "Nasi Gudeg", Category: menu.Food, Price: decimal.NewFromInt(15000), Available: true}
	esTeh = menu.Item{ID: "m2", Name: "Es Teh Manis", Category: menu.Drink, Price: decimal.NewFromInt(3000), Available: true}
	habis = menu.Item{ID: "m3", Name: "Sate Klathak", Category: menu.Food, Price: decimal.NewFromInt(25000), Available: false}

	fixedNow = time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	cashier  = auth.Principal{UserID: "u-kasir", Name: "Siti", Role: auth.RoleCashier}
)

type fixture struct {
	svc       *Service
	orders    *mockOrderRepo
	resolver  *mockResolver
	publisher *recordingPublisher
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		orders:    newOrderRepo(),
		resolver:  &mockResolver{},
		publisher: &recordingPublisher{},
	}
	items := &mockMenuRepo{byID: map[string]menu.Item{gudeg.ID: gudeg, esTeh.ID: esTeh, habis.ID: habis}}
	opts = append([]Option{WithPublisher(f.publisher), WithClock(func() time.Time { return fixedNow })}, opts...)
	f.svc = NewService(items, f.resolver, f.orders, opts...)
	return f
}

func sampleCart() *cart.Cart {
	c := cart.New()
	c.Add(gudeg)
	c.Add(gudeg)
	c.Add(esTeh)
	return c
}

func (f *fixture) checkout(t *testing.T) *Order {
	t.Helper()
	o, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		Cart:     sampleCart(),
		Customer: customer.Ref{Name: "Budi"},
	})
	require.NoError(t, err)
	return o
}

func requirePrecondition(t *testing.T, err error, sentinel error) {
	t.Helper()
	var pe *apperr.PreconditionError
	require.ErrorAs(t, err, &pe)
	require.ErrorIs(t, err, sentinel)
}

// --- Tests ---

func TestCheckout(t *testing.T) {
	f := newFixture()
	c := sampleCart()

	o, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		Cart:     c,
		Customer: customer.Ref{Name: "Budi"},
		Note:     "  tanpa sambal ",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(33000), o.Total.IntPart())
	assert.Equal(t, "Budi", o.CustomerName)
	assert.Equal(t, "tanpa sambal", o.Note)
	assert.Equal(t, fixedNow, o.CreatedAt)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, Line{MenuItemID: "m1", Name: "Nasi Gudeg", Quantity: 2, UnitPrice: decimal.NewFromInt(15000)}, o.Lines[0])
	assert.True(t, o.Total.Equal(o.LinesTotal()))
	assert.Nil(t, o.Payment)

	assert.True(t, c.IsEmpty())
	assert.Equal(t, 1, f.orders.creates)
	assert.Equal(t, []events.Type{events.OrderCreated}, f.publisher.types())
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		Cart:     cart.New(),
		Customer: customer.Ref{Name: "Budi"},
	})

	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, f.orders.creates)
	assert.Equal(t, 0, f.resolver.calls)
	assert.Empty(t, f.publisher.events)
}

func TestCheckout_BlankNameKeepsCart(t *testing.T) {
	f := newFixture()
	c := sampleCart()

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		Cart:     c,
		Customer: customer.Ref{Name: "   "},
	})

	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, f.orders.creates)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(33000), c.Total().IntPart())
}

func TestCheckout_PersistenceFailureKeepsCart(t *testing.T) {
	f := newFixture()
	f.orders.createErr = errors.New("db write failed")
	c := sampleCart()

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: c, Customer: customer.Ref{Name: "Budi"}})

	var pe *apperr.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "create order")
	assert.Equal(t, 2, c.Len())
	assert.Empty(t, f.publisher.events)
}

func TestCheckout_ResolverError(t *testing.T) {
	f := newFixture()
	f.resolver.err = &apperr.NotFoundError{Entity: "customer", ID: "c404"}

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: sampleCart(), Customer: customer.Ref{ID: "c404"}})

	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 0, f.orders.creates)
}

func TestCheckout_Idempotent(t *testing.T) {
	f := newFixture(WithIdempotency(newMemIdempotency()))

	req := func() CheckoutRequest {
		return CheckoutRequest{Cart: sampleCart(), Customer: customer.Ref{Name: "Budi"}, IdempotencyKey: "kiosk-1-0001"}
	}
	first, err := f.svc.Checkout(context.Background(), req())
	require.NoError(t, err)
	second, err := f.svc.Checkout(context.Background(), req())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.orders.creates)
}

func TestCheckout_IdempotentConcurrent(t *testing.T) {
	f := newFixture(WithIdempotency(newMemIdempotency()))
	f.resolver.delay = 100 * time.Millisecond

	const retries = 5
	ids := make([]string, retries)
	errs := make([]error, retries)
	var wg sync.WaitGroup
	for i := range retries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := f.svc.Checkout(context.Background(), CheckoutRequest{
				Cart:           sampleCart(),
				Customer:       customer.Ref{Name: "Budi"},
				IdempotencyKey: "kiosk-1-0002",
			})
			errs[i] = err
			if o != nil {
				ids[i] = o.ID
			}
		}()
	}
	wg.Wait()

	for i := range retries {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, f.orders.creates)
	assert.Equal(t, 1, f.resolver.calls)
}

func TestCheckout_IdempotencyReleasedOnFailure(t *testing.T) {
	idem := newMemIdempotency()
	f := newFixture(WithIdempotency(idem))
	req := CheckoutRequest{Cart: sampleCart(), Customer: customer.Ref{Name: "Budi"}, IdempotencyKey: "kiosk-1-0003"}

	f.orders.createErr = errors.New("connection reset")
	_, err := f.svc.Checkout(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 1, idem.releases)
	assert.NotContains(t, idem.keys, "kiosk-1-0003")

	f.orders.createErr = nil
	o, err := f.svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, o.ID, idem.keys["kiosk-1-0003"])
	assert.Equal(t, 1, f.orders.creates)
}

func TestCheckout_IdempotencyKeyHeld(t *testing.T) {
	idem := newMemIdempotency()
	idem.keys["kiosk-1-0004"] = pendingKey
	f := newFixture(WithIdempotency(idem))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := f.svc.Checkout(ctx, CheckoutRequest{Cart: sampleCart(), Customer: customer.Ref{Name: "Budi"}, IdempotencyKey: "kiosk-1-0004"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, f.orders.creates)
	assert.Equal(t, 0, idem.releases)
	assert.Equal(t, pendingKey, idem.keys["kiosk-1-0004"])
}

func TestCheckout_IdempotencyStoreDown(t *testing.T) {
	idem := newMemIdempotency()
	idem.err = errors.New("redis: connection refused")
	f := newFixture(WithIdempotency(idem))

	o, err := f.svc.Checkout(context.Background(), CheckoutRequest{Cart: sampleCart(), Customer: customer.Ref{Name: "Budi"}, IdempotencyKey: "kiosk-1-0005"})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 1, f.orders.creates)
	assert.Empty(t, idem.keys)
}

func TestBuildCart(t *testing.T) {
	f := newFixture()

	c, err := f.svc.BuildCart(context.Background(), []CartItem{
		{MenuItemID: "m1", Quantity: 2},
		{MenuItemID: "m2", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(33000), c.Total().IntPart())
	assert.Equal(t, 2, c.Quantity("m1"))
}

func TestBuildCart_MaxQuantity(t *testing.T) {
	f := newFixture()

	c, err := f.svc.BuildCart(context.Background(), []CartItem{{MenuItemID: "m1", Quantity: cart.MaxQuantity}})
	require.NoError(t, err)
	require.Len(t, c.Lines(), 1)
	assert.Equal(t, cart.MaxQuantity, c.Quantity("m1"))
	assert.Equal(t, int64(15000*cart.MaxQuantity), c.Total().IntPart())
}

func TestBuildCart_Errors(t *testing.T) {
	tests := []struct {
		name  string
		items []CartItem
		check func(t *testing.T, err error)
	}{
		{
			name:  "empty",
			items: nil,
			check: func(t *testing.T, err error) {
				var ve *apperr.ValidationError
				require.ErrorAs(t, err, &ve)
			},
		},
		{
			name:  "zero quantity",
			items: []CartItem{{MenuItemID: "m1", Quantity: 0}},
			check: func(t *testing.T, err error) {
				var ve *apperr.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "quantity", ve.Field)
			},
		},
		{
			name:  "oversized quantity",
			items: []CartItem{{MenuItemID: "m1", Quantity: 9223372036854775807}},
			check: func(t *testing.T, err error) {
				var ve *apperr.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "quantity", ve.Field)
			},
		},
		{
			name:  "repeated item over the line limit",
			items: []CartItem{{MenuItemID: "m1", Quantity: cart.MaxQuantity}, {MenuItemID: "m1", Quantity: 1}},
			check: func(t *testing.T, err error) {
				var ve *apperr.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "quantity", ve.Field)
			},
		},
		{
			name:  "unknown item",
			items: []CartItem{{MenuItemID: "missing", Quantity: 1}},
			check: func(t *testing.T, err error) {
				var nf *apperr.NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "missing", nf.ID)
			},
		},
		{
			name:  "unavailable item",
			items: []CartItem{{MenuItemID: "m3", Quantity: 1}},
			check: func(t *testing.T, err error) {
				var ve *apperr.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, ve.Reason, "Sate Klathak")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newFixture().svc.BuildCart(context.Background(), tt.items)
			tt.check(t, err)
		})
	}
}

func TestCashPath(t *testing.T) {
	f := newFixture()
	o := f.checkout(t)

	o, err := f.svc.SelectPaymentMethod(context.Background(), o.ID, MethodCash)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingPayment, o.Status)
	require.NotNil(t, o.Payment)
	assert.Equal(t, PaymentAwaitingConfirmation, o.Payment.Status)
	assert.Empty(t, o.Payment.CashierID)
	assert.Nil(t, o.Payment.PaidAt)
	require.NotNil(t, o.Receipt)
	assert.Equal(t, PaymentAwaitingConfirmation, o.Receipt.Status)
	assert.Equal(t, int64(33000), o.Receipt.Amount.IntPart())

	pending, err := f.svc.PendingCash(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, o.ID, pending[0].ID)

	byReceipt, err := f.svc.GetByReceipt(context.Background(), o.Receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, byReceipt.ID)

	o, err = f.svc.ConfirmCashPayment(context.Background(), o.ID, cashier)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, PaymentSucceeded, o.Payment.Status)
	assert.Equal(t, "u-kasir", o.Payment.CashierID)
	require.NotNil(t, o.Payment.PaidAt)
	assert.Equal(t, PaymentSucceeded, o.Receipt.Status)

	stored, err := f.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)

	pending, err = f.svc.PendingCash(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, []events.Type{events.OrderCreated, events.PaymentAwaiting, events.OrderCompleted}, f.publisher.types())
	assert.Equal(t, "cash", f.publisher.events[2].Method)
}

func TestConfirmCash_Twice(t *testing.T) {
	f := newFixture()
	o := f.checkout(t)
	_, err := f.svc.SelectPaymentMethod(context.Background(), o.ID, MethodCash)
	require.NoError(t, err)
	_, err = f.svc.ConfirmCashPayment(context.Background(), o.ID, cashier)
	require.NoError(t, err)

	_, err = f.svc.ConfirmCashPayment(context.Background(), o.ID, cashier)
	requirePrecondition(t, err, ErrAlreadyConfirmed)

	stored, err := f.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, PaymentSucceeded, stored.Payment.Status)
}

func TestQRISPath(t *testing.T) {
	f := newFixture()
	o := f.checkout(t)

	o, err := f.svc.SelectPaymentMethod(context.Background(), o.ID, MethodQRIS)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, PaymentSucceeded, o.Payment.Status)
	assert.Empty(t, o.Payment.CashierID)
	require.NotNil(t, o.Payment.PaidAt)
	assert.Equal(t, PaymentSucceeded, o.Receipt.Status)
	assert.Equal(t, int64(33000), o.Payment.Amount.IntPart())

	_, err = f.svc.ConfirmCashPayment(context.Background(), o.ID, cashier)
	requirePrecondition(t, err, ErrNotCashPayment)

	_, err = f.svc.Cancel(context.Background(), o.ID, "Salah pesan")
	requirePrecondition(t, err, ErrNotCancellable)

	assert.Equal(t, []events.Type{events.OrderCreated, events.OrderCompleted}, f.publisher.types())
}

func TestSelectPayment_NotPending(t *testing.T) {
	f := newFixture()
	o := f.checkout(t)
	_, err := f.svc.SelectPaymentMethod(context.Background(), o.ID, MethodCash)
	require.NoError(t, err)

	_, err = f.svc.SelectPaymentMethod(context.Background(), o.ID, MethodQRIS)
	requirePrecondition(t, err, ErrNotPending)
}

func TestSelectPayment_UnknownMethod(t *testing.T) {
	f := newFixture()
	o := f.checkout(t)

	_, err := f.svc.SelectPaymentMethod(context.Background(), o.ID, Method("card"))

	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestSelectPayment_OrderNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SelectPaymentMethod(context.Background(), "nope", MethodCash)

	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "order", nf.Entity)
}

func TestSelectPayment_ConcurrentTerminal(t *testing.T) {
	f := newFixture()
	o := f.checkout(t)

	// Another terminal cancels between our read and write.
	f.orders.mu.Lock()
	f.orders.byID[o.ID].Status = StatusCancelled
	f.orders.mu.Unlock()
	stale := clone(o)
	require.NoError(t, stale.SelectPayment(MethodCash, "p", "r", fixedNow))

	err := storeError("select payment method", f.orders.update(stale, StatusPending))
	requirePrecondition(t, err, ErrConcurrentUpdate)
}

func TestConfirmCash_StoreConflict(t *testing.T) {
	f := newFixture()
	o := f.checkout(t)
	_, err := f.svc.SelectPaymentMethod(context.Background(), o.ID, MethodCash)
	require.NoError(t, err)

	f.orders.saveErr = ErrConcurrentUpdate
	_, err = f.svc.ConfirmCashPayment(context.Background(), o.ID, cashier)
	requirePrecondition(t, err, ErrConcurrentUpdate)
}

func TestConfirmCash_RequiresCapability(t *testing.T) {
	f := newFixture()
	o := f.checkout(t)
	_, err := f.svc.SelectPaymentMethod(context.Background(), o.ID, MethodCash)
	require.NoError(t, err)

	_, err = f.svc.ConfirmCashPayment(context.Background(), o.ID, auth.Principal{UserID: "u-mgr", Role: auth.RoleManager})

	var fe *auth.ForbiddenError
	require.ErrorAs(t, err, &fe)

	stored, err := f.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingPayment, stored.Status)
}

func TestConfirmCash_PendingOrder(t *testing.T) {
	f := newFixture()
	o := f.checkout(t)

	_, err := f.svc.ConfirmCashPayment(context.Background(), o.ID, cashier)
	requirePrecondition(t, err, ErrNotAwaitingPayment)
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name   string
		method Method
	}{
		{name: "pending"},
		{name: "awaiting cash", method: MethodCash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			o := f.checkout(t)
			if tt.method != "" {
				_, err := f.svc.SelectPaymentMethod(context.Background(), o.ID, tt.method)
				require.NoError(t, err)
			}

			o, err := f.svc.Cancel(context.Background(), o.ID, " Terlalu mahal ")
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, o.Status)
			require.NotNil(t, o.Cancellation)
			assert.Equal(t, "Terlalu mahal", o.Cancellation.Reason)
			assert.Equal(t, o.ID, o.Cancellation.OrderID)
			assert.Equal(t, 1, f.orders.cancels)

			_, err = f.svc.Cancel(context.Background(), o.ID, "Berubah pikiran")
			requirePrecondition(t, err, ErrAlreadyCancelled)
			assert.Equal(t, 1, f.orders.cancels)

			pending, err := f.svc.PendingCash(context.Background())
			require.NoError(t, err)
			assert.Empty(t, pending)
		})
	}
}

func TestCancel_BlankReason(t *testing.T) {
	f := newFixture()
	o := f.checkout(t)

	_, err := f.svc.Cancel(context.Background(), o.ID, "  ")

	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, f.orders.cancels)
}

func TestCancel_DuplicateRecord(t *testing.T) {
	f := newFixture()
	o := f.checkout(t)
	f.orders.saveErr = errors.Wrap(cancellation.ErrDuplicate, "insert cancellation")

	_, err := f.svc.Cancel(context.Background(), o.ID, "Salah pesan")
	requirePrecondition(t, err, ErrAlreadyCancelled)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture()
	f.publisher.err = errors.New("broker down")

	o := f.checkout(t)
	o, err := f.svc.SelectPaymentMethod(context.Background(), o.ID, MethodQRIS)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)
}

func TestGetByReceipt_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.GetByReceipt(context.Background(), "r-missing")

	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "receipt", nf.Entity)
}
