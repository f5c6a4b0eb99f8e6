package checkout

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/catalog"
	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/events"
)

// MockBackend implements Backend for testing. Prices come from Prices; the
// preview total is the sum of price*quantity unless PreviewFn is set.
type MockBackend struct {
	mu sync.Mutex

	Prices    map[int64]decimal.Decimal
	PreviewFn func(call int, req domain.SaleRequest) (decimal.Decimal, error)
	CreateErr error
	PayErr    error

	PreviewCalls int
	CreateCalls  int
	PayCalls     int
	LastRequest  domain.SaleRequest
	LastKey      string
	PaidAmount   decimal.Decimal
	PaidProvider string
}

func (m *MockBackend) price(req domain.SaleRequest) decimal.Decimal {
	total := decimal.Zero
	for _, it := range req.Items {
		total = total.Add(m.Prices[it.ProductID].Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func (m *MockBackend) PreviewSale(_ context.Context, req domain.SaleRequest) (decimal.Decimal, error) {
	m.mu.Lock()
	m.PreviewCalls++
	call := m.PreviewCalls
	fn := m.PreviewFn
	m.mu.Unlock()

	if fn != nil {
		return fn(call, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.price(req), nil
}

func (m *MockBackend) CreateSale(_ context.Context, req domain.SaleRequest, key string) (domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	m.LastRequest = req
	m.LastKey = key
	if m.CreateErr != nil {
		return domain.Sale{}, m.CreateErr
	}
	return domain.Sale{ID: 100, SaleNumber: "F-0100", Total: m.price(req), Status: "PENDING"}, nil
}

func (m *MockBackend) PayCash(_ context.Context, _ int64, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PayCalls++
	m.PaidAmount = amount
	return m.PayErr
}

func (m *MockBackend) PayElectronic(_ context.Context, _ int64, amount decimal.Decimal, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PayCalls++
	m.PaidAmount = amount
	m.PaidProvider = provider
	return m.PayErr
}

// MockCatalog implements Catalog for testing
type MockCatalog struct {
	mu          sync.Mutex
	Products    map[int64]domain.Product
	ReloadCalls int
}

func (m *MockCatalog) Product(_ context.Context, id int64) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Products[id]
	if !ok {
		return domain.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *MockCatalog) Reload(context.Context) (*catalog.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReloadCalls++
	return &catalog.Snapshot{}, nil
}

// MockPrinter records printed receipts
type MockPrinter struct {
	mu      sync.Mutex
	Printed []domain.Receipt
	Err     error
}

func (m *MockPrinter) Print(_ context.Context, r domain.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Printed = append(m.Printed, r)
	return m.Err
}

// MockPublisher records published events
type MockPublisher struct {
	Events []events.Event
}

func (m *MockPublisher) Publish(_ context.Context, e events.Event) error {
	m.Events = append(m.Events, e)
	return nil
}

type fixture struct {
	engine    *Engine
	backend   *MockBackend
	catalog   *MockCatalog
	printer   *MockPrinter
	publisher *MockPublisher
}

func newFixture() *fixture {
	backend := &MockBackend{Prices: map[int64]decimal.Decimal{
		1: decimal.NewFromInt(10000),
		2: decimal.NewFromInt(2500),
	}}
	cat := &MockCatalog{Products: map[int64]domain.Product{
		1: {ID: 1, Name: "Arroz", SalePrice: decimal.NewFromInt(10000), CurrentStock: 5},
		2: {ID: 2, Name: "Pan", SalePrice: decimal.NewFromInt(2500), CurrentStock: 1},
		3: {ID: 3, Name: "Agotado", SalePrice: decimal.NewFromInt(1000), CurrentStock: 0},
	}}
	printer := &MockPrinter{}
	pub := &MockPublisher{}

	e := NewEngine(backend, cat, printer, pub, Options{StoreName: "DYNATOS", QRProvider: "NEQUI"})
	e.Bind(7, "Ana")
	return &fixture{engine: e, backend: backend, catalog: cat, printer: printer, publisher: pub}
}
