package services_test

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"checkout-service/clients"
	"checkout-service/models"
	"checkout-service/repository"
)

// ---- in-memory backend ----

type fakeBackend struct {
	mu sync.Mutex

	cart       []models.CartEntry
	cartErr    error
	products   map[string]models.Product
	productErr map[string]error
	user       *models.UserProfile
	userErr    error
	addresses  []models.ShippingAddress
	orders     map[string]*models.Order
	shipments  map[string]*models.Shipment
	similar    map[string][]string

	// fail injects an error into the named operation.
	fail map[string]error
	// applyThenFail lets the named write land, then returns the error once.
	applyThenFail map[string]error
	calls         map[string]int
	writes        int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		products:   map[string]models.Product{},
		productErr: map[string]error{},
		orders:     map[string]*models.Order{},
		shipments:  map[string]*models.Shipment{},
		similar:    map[string][]string{},
		fail:       map[string]error{},
		calls:      map[string]int{},

		applyThenFail: map[string]error{},
	}
}

func (f *fakeBackend) enter(op string, write bool) error {
	f.calls[op]++
	if write {
		f.writes++
	}
	return f.fail[op]
}

func (f *fakeBackend) afterWrite(op string) error {
	err := f.applyThenFail[op]
	delete(f.applyThenFail, op)
	return err
}

func (f *fakeBackend) GetCart(_ context.Context, _ string) ([]models.CartEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetCart", false); err != nil {
		return nil, err
	}
	if f.cartErr != nil {
		return nil, f.cartErr
	}
	return slices.Clone(f.cart), nil
}

func (f *fakeBackend) DeleteCartEntry(_ context.Context, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteCartEntry", true); err != nil {
		return err
	}
	f.cart = slices.DeleteFunc(f.cart, func(e models.CartEntry) bool { return e.ID.String() == entryID })
	return nil
}

func (f *fakeBackend) GetProduct(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetProduct"]++
	if err := f.productErr[id]; err != nil {
		return nil, err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("get product %s: %w", id, clients.ErrNotFound)
	}
	return &p, nil
}

func (f *fakeBackend) GetProducts(_ context.Context, ids []string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetProducts", false); err != nil {
		return nil, err
	}
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetUser(_ context.Context, _ string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetUser", false); err != nil {
		return nil, err
	}
	if f.userErr != nil {
		return nil, f.userErr
	}
	if f.user == nil {
		return nil, clients.ErrNotFound
	}
	u := *f.user
	u.OrderIDs = slices.Clone(f.user.OrderIDs)
	return &u, nil
}

func (f *fakeBackend) SetUserOrders(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SetUserOrders", true); err != nil {
		return err
	}
	f.user.OrderIDs = slices.Clone(ids)
	return f.afterWrite("SetUserOrders")
}

func (f *fakeBackend) ListAddresses(_ context.Context, _ string) ([]models.ShippingAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListAddresses", false); err != nil {
		return nil, err
	}
	return slices.Clone(f.addresses), nil
}

func (f *fakeBackend) CreateOrder(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateOrder", true); err != nil {
		return err
	}
	cp := *o
	f.orders[o.ID] = &cp
	return f.afterWrite("CreateOrder")
}

func (f *fakeBackend) DeleteOrder(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteOrder", true); err != nil {
		return err
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeBackend) GetOrder(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetOrder", false); err != nil {
		return nil, err
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, clients.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeBackend) ListOrders(_ context.Context, userID string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListOrders", false); err != nil {
		return nil, err
	}
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeBackend) UpdateOrderStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateOrderStatus", true); err != nil {
		return err
	}
	if o, ok := f.orders[id]; ok {
		o.Status = status
	}
	return nil
}

func (f *fakeBackend) CreateShipment(_ context.Context, s *models.Shipment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateShipment", true); err != nil {
		return err
	}
	cp := *s
	f.shipments[s.ID] = &cp
	return f.afterWrite("CreateShipment")
}

func (f *fakeBackend) DeleteShipment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteShipment", true); err != nil {
		return err
	}
	delete(f.shipments, id)
	return nil
}

func (f *fakeBackend) ListShipments(_ context.Context, userID string) ([]models.Shipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListShipments", false); err != nil {
		return nil, err
	}
	var out []models.Shipment
	for _, s := range f.shipments {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetSimilarIDs(_ context.Context, productID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetSimilarIDs", false); err != nil {
		return nil, err
	}
	return f.similar[productID], nil
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// ---- repositories ----

type memSessions struct {
	mu      sync.Mutex
	data    map[string]models.CheckoutSession
	saves   int
	locked  map[string]bool
	saveErr error
}

func newMemSessions() *memSessions {
	return &memSessions{data: map[string]models.CheckoutSession{}, locked: map[string]bool{}}
}

func (m *memSessions) Save(_ context.Context, s *models.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	cp := *s
	m.data[s.ID] = cp
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*models.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &s, nil
}

func (m *memSessions) Lock(_ context.Context, id string, _ time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked[id] {
		return nil, repository.ErrLocked
	}
	m.locked[id] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.locked, id)
	}, nil
}

func (m *memSessions) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type memSelections struct {
	mu   sync.Mutex
	data map[string]models.ShippingAddress
	err  error
}

func newMemSelections() *memSelections {
	return &memSelections{data: map[string]models.ShippingAddress{}}
}

func (m *memSelections) Put(_ context.Context, userID string, addr *models.ShippingAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = *addr
	return nil
}

func (m *memSelections) Consume(_ context.Context, userID string) (*models.ShippingAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	addr, ok := m.data[userID]
	if !ok {
		return nil, nil
	}
	delete(m.data, userID)
	return &addr, nil
}

type memStepLog struct {
	mu      sync.Mutex
	entries []models.CommitStep
}

func (m *memStepLog) Record(_ context.Context, e *models.CommitStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memStepLog) outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Step+":"+e.Outcome)
	}
	return out
}

// ---- events and metrics ----

type publishedEvent struct {
	eventType string
	key       string
	payload   interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, key string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{eventType, key, payload})
	return p.err
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counts: map[string]int{}}
}

func (m *countingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	return nil
}

func (m *countingMetrics) RecordLatency(_ context.Context, name string, _ time.Duration, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	return nil
}

func (m *countingMetrics) get(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

// ---- fixtures ----

func product(id string, price int64) models.Product {
	return models.Product{ID: models.FlexID(id), Title: "Product " + id, Price: price}
}

func ref(id string, qty int) models.ProductRef {
	return models.ProductRef{ProductID: models.FlexID(id), Quantity: models.NewQuantity(qty)}
}

func hanoiAddress() *models.ProfileAddress {
	return &models.ProfileAddress{Street: "1 Trang Tien", District: "Hoan Kiem", City: "Hanoi", Country: "Vietnam", Zipcode: "100000"}
}
