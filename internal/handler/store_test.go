package handler

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/internal/domain/cancellation"
	"github.com/xenking/warung-pos/internal/domain/customer"
	"github.com/xenking/warung-pos/internal/domain/menu"
	"github.com/xenking/warung-pos/internal/domain/order"
	"github.com/xenking/warung-pos/internal/domain/report"
	"github.com/xenking/warung-pos/internal/domain/staff"
)

// memStore backs every repository the handler needs.
type memStore struct {
	mu     sync.Mutex
	items  map[string]menu.Item
	orders map[string]*order.Order
}

func newMemStore(items ...menu.Item) *memStore {
	s := &memStore{items: make(map[string]menu.Item), orders: make(map[string]*order.Order)}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

// menu.Repository

func (s *memStore) List(_ context.Context, f menu.Filter) ([]menu.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []menu.Item
	for _, it := range s.items {
		if f.Category != "" && it.Category != f.Category {
			continue
		}
		if f.OnlyAvailable && !it.Available {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*menu.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	return &it, nil
}

func (s *memStore) GetByIDs(_ context.Context, ids []string) ([]menu.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []menu.Item
	for _, id := range ids {
		if it, ok := s.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *memStore) Create(_ context.Context, it *menu.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = *it
	return nil
}

func (s *memStore) Update(_ context.Context, it *menu.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[it.ID]; !ok {
		return menu.ErrNotFound
	}
	s.items[it.ID] = *it
	return nil
}

func (s *memStore) SetAvailability(_ context.Context, id string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return menu.ErrNotFound
	}
	it.Available = available
	s.items[id] = it
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return menu.ErrNotFound
	}
	for _, o := range s.orders {
		for _, l := range o.Lines {
			if l.MenuItemID == id {
				return menu.ErrInUse
			}
		}
	}
	delete(s.items, id)
	return nil
}

// orderStore adapts memStore to order.Repository; Create clashes with the
// menu method set.
type orderStore struct{ *memStore }

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.Lines = append([]order.Line(nil), o.Lines...)
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

func (s orderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s orderStore) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s orderStore) GetByReceiptID(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.Receipt != nil && o.Receipt.ID == id {
			return cloneOrder(o), nil
		}
	}
	return nil, order.ErrNotFound
}

func (s orderStore) ListAwaitingCash(context.Context) ([]order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []order.Order
	for _, o := range s.orders {
		if o.Status == order.StatusAwaitingPayment && o.Payment != nil && o.Payment.Method == order.MethodCash {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s orderStore) update(o *order.Order, from order.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[o.ID]
	if !ok || stored.Status != from {
		return order.ErrConcurrentUpdate
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s orderStore) SavePayment(_ context.Context, o *order.Order, from order.Status) error {
	return s.update(o, from)
}

func (s orderStore) ConfirmPayment(_ context.Context, o *order.Order, from order.Status) error {
	return s.update(o, from)
}

func (s orderStore) Cancel(_ context.Context, o *order.Order, from order.Status) error {
	return s.update(o, from)
}

// cancellation.Repository

func (s *memStore) FindByOrderID(_ context.Context, id string) (*cancellation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok && o.Cancellation != nil {
		rec := *o.Cancellation
		return &rec, nil
	}
	return nil, cancellation.ErrNotFound
}

func (s *memStore) ListBetween(_ context.Context, from, to time.Time) ([]cancellation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []cancellation.Record
	for _, o := range s.orders {
		if c := o.Cancellation; c != nil && !c.CancelledAt.Before(from) && c.CancelledAt.Before(to) {
			out = append(out, *c)
		}
	}
	return out, nil
}

// report.Repository

func (s *memStore) Orders(_ context.Context, from, to time.Time) ([]report.OrderFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []report.OrderFact
	for _, o := range s.orders {
		if o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		f := report.OrderFact{
			OrderID:      o.ID,
			CustomerID:   o.CustomerID,
			CustomerName: o.CustomerName,
			Status:       o.Status,
			Total:        o.Total,
			CreatedAt:    o.CreatedAt,
		}
		if o.Payment != nil {
			f.Method = o.Payment.Method
			f.PaymentStatus = o.Payment.Status
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *memStore) Lines(context.Context, time.Time, time.Time) ([]report.LineFact, error) {
	return nil, nil
}

func (s *memStore) Cancellations(context.Context, time.Time, time.Time) ([]report.CancellationFact, error) {
	return nil, nil
}

type nameResolver struct{}

func (nameResolver) Resolve(_ context.Context, ref customer.Ref) (*customer.Customer, error) {
	name := strings.TrimSpace(ref.Name)
	return &customer.Customer{ID: "cust-" + strings.ToLower(name), Name: name}, nil
}

type keyring map[string]auth.Principal

func (k keyring) Authenticate(_ context.Context, key string) (auth.Principal, error) {
	p, ok := k[key]
	if !ok {
		return auth.Principal{}, auth.ErrUnauthorized
	}
	return p, nil
}

// authChain tries each authenticator until one accepts the key.
type authChain []Authenticator

func (c authChain) Authenticate(ctx context.Context, key string) (auth.Principal, error) {
	for _, a := range c {
		p, err := a.Authenticate(ctx, key)
		if !errors.Is(err, auth.ErrUnauthorized) {
			return p, err
		}
	}
	return auth.Principal{}, auth.ErrUnauthorized
}

// memUsers backs staff.Repository and resolves the keys it issues.
type memUsers struct {
	mu     sync.Mutex
	users  map[string]staff.User
	keys   map[string]staff.Key
	hashes map[string]string
}

var (
	_ staff.Repository = (*memUsers)(nil)
	_ auth.Repository  = (*memUsers)(nil)
)

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]staff.User{}, keys: map[string]staff.Key{}, hashes: map[string]string{}}
}

func (m *memUsers) List(_ context.Context, query string) ([]staff.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var out []staff.User
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(u.Handle, q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*staff.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, staff.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) handleTaken(u *staff.User) bool {
	for _, other := range m.users {
		if other.ID != u.ID && other.Handle == u.Handle {
			return true
		}
	}
	return false
}

func (m *memUsers) Create(_ context.Context, u *staff.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handleTaken(u) {
		return staff.ErrHandleTaken
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memUsers) Update(_ context.Context, u *staff.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return staff.ErrNotFound
	}
	if m.handleTaken(u) {
		return staff.ErrHandleTaken
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return staff.ErrNotFound
	}
	delete(m.users, id)
	for kid, k := range m.keys {
		if k.UserID == id {
			k.Active = false
			m.keys[kid] = k
		}
	}
	return nil
}

func (m *memUsers) CreateKey(_ context.Context, k *staff.Key, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[k.ID] = *k
	m.hashes[hash] = k.ID
	return nil
}

func (m *memUsers) ListKeys(_ context.Context, userID string) ([]staff.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []staff.Key
	for _, k := range m.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memUsers) RevokeKey(_ context.Context, userID, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[keyID]
	if !ok || k.UserID != userID {
		return staff.ErrKeyNotFound
	}
	k.Active = false
	m.keys[keyID] = k
	return nil
}

func (m *memUsers) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[m.hashes[hash]]
	if !ok || !k.Active {
		return nil, auth.ErrKeyNotFound
	}
	u, ok := m.users[k.UserID]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return &auth.APIKeyInfo{ID: k.ID, KeyHash: hash, Name: k.Name, UserID: u.ID, UserName: u.Name, Role: u.Role}, nil
}
