package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/catalog"
	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/events"
	"github.com/dynatos/pos-terminal/internal/receipt"
)

type Backend interface {
	PreviewSale(ctx context.Context, req domain.SaleRequest) (decimal.Decimal, error)
	CreateSale(ctx context.Context, req domain.SaleRequest, idempotencyKey string) (domain.Sale, error)
	PayCash(ctx context.Context, saleID int64, amount decimal.Decimal) error
	PayElectronic(ctx context.Context, saleID int64, amount decimal.Decimal, provider string) error
}

type Catalog interface {
	Product(ctx context.Context, id int64) (domain.Product, error)
	Reload(ctx context.Context) (*catalog.Snapshot, error)
}

type Phase string

const (
	PhaseEditing Phase = "EDITING"
	PhasePayment Phase = "PAYMENT"
)

type Options struct {
	StoreName      string
	StoreTaxID     string
	QRProvider     string
	PreviewTimeout time.Duration
}

// Engine owns the in-progress sale of one terminal: its cart, the latest
// server-priced preview, and the committed sale while payment is collected.
type Engine struct {
	backend   Backend
	catalog   Catalog
	printer   receipt.Printer
	publisher events.Publisher
	opts      Options

	op sync.Mutex // serializes cart edits and backend round trips

	mu       sync.Mutex
	drawerID int64
	cashier  string
	lines    []domain.CartLine
	customer string
	phase    Phase
	sale     *domain.Sale
	last     *domain.Receipt

	version uint64 // last preview version issued
	preview previewResult
	pending sync.WaitGroup
}

func NewEngine(backend Backend, cat Catalog, printer receipt.Printer, publisher events.Publisher, opts Options) *Engine {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if opts.QRProvider == "" {
		opts.QRProvider = "QR"
	}
	if opts.PreviewTimeout <= 0 {
		opts.PreviewTimeout = 15 * time.Second
	}
	return &Engine{
		backend:   backend,
		catalog:   cat,
		printer:   printer,
		publisher: publisher,
		opts:      opts,
		phase:     PhaseEditing,
	}
}

// Bind scopes the engine to a drawer and cashier. Switching to a different
// drawer discards the cart; binding drawer 0 detaches the engine.
func (e *Engine) Bind(drawerID int64, cashier string) {
	e.op.Lock()
	defer e.op.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if drawerID != e.drawerID {
		e.resetLocked()
	}
	e.drawerID = drawerID
	e.cashier = cashier
}

// Reset drops the cart, any committed sale, the customer and the last receipt.
func (e *Engine) Reset() {
	e.op.Lock()
	defer e.op.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
	e.last = nil
}

func (e *Engine) resetLocked() {
	e.lines = nil
	e.customer = ""
	e.sale = nil
	e.phase = PhaseEditing
	e.version++ // in-flight previews become stale
	e.preview = previewResult{version: e.version}
}

type View struct {
	DrawerID       int64               `json:"cash_drawer_id"`
	Phase          Phase               `json:"phase"`
	Lines          []domain.CartLine   `json:"lines"`
	Customer       string              `json:"customer"`
	LocalTotal     decimal.Decimal     `json:"local_total"`
	Total          decimal.Decimal     `json:"total"`
	Tax            domain.TaxBreakdown `json:"tax"`
	PreviewVersion uint64              `json:"preview_version"`
	PreviewPending bool                `json:"preview_pending"`
	PreviewError   string              `json:"preview_error,omitempty"`
	Sale           *domain.Sale        `json:"sale,omitempty"`
	CanCommit      bool                `json:"can_commit"`
}

// View is a copy of the engine state. Total is the committed sale total while
// collecting payment, otherwise the latest preview when it matches the cart,
// otherwise the local sum of line subtotals.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		DrawerID:       e.drawerID,
		Phase:          e.phase,
		Lines:          append([]domain.CartLine{}, e.lines...),
		Customer:       e.customerName(),
		LocalTotal:     e.localTotal(),
		PreviewVersion: e.preview.version,
		CanCommit:      e.phase == PhaseEditing && len(e.lines) > 0 && e.drawerID != 0,
	}

	current := e.preview.version == e.version
	switch {
	case e.sale != nil:
		s := *e.sale
		v.Sale = &s
		v.Total = s.Total
	case current && e.preview.err == nil && len(e.lines) > 0:
		v.Total = e.preview.total
	default:
		v.Total = v.LocalTotal
	}
	v.PreviewPending = !current && len(e.lines) > 0
	if current && e.preview.err != nil {
		v.PreviewError = e.preview.err.Error()
	}
	v.Tax = domain.SplitTax(v.Total)
	return v
}

// LastReceipt returns the receipt of the most recently finalized sale, kept
// for reprinting until the engine is reset.
func (e *Engine) LastReceipt() (domain.Receipt, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return domain.Receipt{}, false
	}
	return *e.last, true
}

// Reprint sends the last receipt to the printer again.
func (e *Engine) Reprint(ctx context.Context) (domain.Receipt, error) {
	r, ok := e.LastReceipt()
	if !ok {
		return domain.Receipt{}, ErrNoSale
	}
	return r, e.printer.Print(ctx, r)
}

func (e *Engine) localTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (e *Engine) customerName() string {
	if e.customer == "" {
		return domain.GenericCustomer
	}
	return e.customer
}

func (e *Engine) saleRequest() domain.SaleRequest {
	items := make([]domain.SaleItem, 0, len(e.lines))
	for _, l := range e.lines {
		items = append(items, domain.SaleItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return domain.SaleRequest{
		CashDrawerID: e.drawerID,
		CustomerName: e.customerName(),
		Items:        items,
	}
}
