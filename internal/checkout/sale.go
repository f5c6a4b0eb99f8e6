package checkout

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/events"
	"github.com/dynatos/pos-terminal/internal/metrics"
)

// CommitSale sends the cart (ids and quantities only) to create a sale and
// moves the engine to payment collection. On failure the cart is untouched
// and no sale is kept.
func (e *Engine) CommitSale(ctx context.Context) (domain.Sale, error) {
	e.op.Lock()
	defer e.op.Unlock()

	if err := e.editable(); err != nil {
		return domain.Sale{}, err
	}

	e.mu.Lock()
	if len(e.lines) == 0 {
		e.mu.Unlock()
		return domain.Sale{}, ErrEmptyCart
	}
	req := e.saleRequest()
	e.mu.Unlock()

	key := uuid.NewString()
	sale, err := e.backend.CreateSale(ctx, req, key)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("failed to create sale: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sale = &sale
	e.phase = PhasePayment
	log.Printf("sale %s created for drawer %d, total %s", sale.SaleNumber, req.CashDrawerID, sale.Total.StringFixed(2))
	return sale, nil
}

// CancelPayment returns to cart editing and forgets the committed sale. The
// cart is kept. Nothing is sent to the backend.
func (e *Engine) CancelPayment() error {
	e.op.Lock()
	defer e.op.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhasePayment || e.sale == nil {
		return ErrNoSale
	}
	log.Printf("payment for sale %s cancelled, sale abandoned", e.sale.SaleNumber)
	e.sale = nil
	e.phase = PhaseEditing
	return nil
}

// PayCash rejects amounts below the total without contacting the backend.
func (e *Engine) PayCash(ctx context.Context, received decimal.Decimal) (domain.Receipt, error) {
	e.op.Lock()
	defer e.op.Unlock()

	sale, err := e.awaitingPayment()
	if err != nil {
		return domain.Receipt{}, err
	}
	if received.LessThan(sale.Total) {
		return domain.Receipt{}, ErrInsufficientPayment
	}

	if err := e.backend.PayCash(ctx, sale.ID, sale.Total); err != nil {
		return domain.Receipt{}, fmt.Errorf("failed to register cash payment: %w", err)
	}
	return e.finalize(ctx, sale, domain.PaymentCash, received, received.Sub(sale.Total)), nil
}

// PayElectronic requires the operator to have confirmed the transfer arrived.
func (e *Engine) PayElectronic(ctx context.Context, confirmed bool) (domain.Receipt, error) {
	e.op.Lock()
	defer e.op.Unlock()

	sale, err := e.awaitingPayment()
	if err != nil {
		return domain.Receipt{}, err
	}
	if !confirmed {
		return domain.Receipt{}, ErrTransferNotConfirmed
	}

	if err := e.backend.PayElectronic(ctx, sale.ID, sale.Total, e.opts.QRProvider); err != nil {
		return domain.Receipt{}, fmt.Errorf("failed to register electronic payment: %w", err)
	}
	return e.finalize(ctx, sale, domain.PaymentElectronic, sale.Total, decimal.Zero), nil
}

func (e *Engine) awaitingPayment() (domain.Sale, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhasePayment || e.sale == nil {
		return domain.Sale{}, ErrNoSale
	}
	return *e.sale, nil
}

// finalize runs once the backend accepted the payment: build the receipt,
// print it and wait, publish, clear the cart and reload the catalog so the
// stock the backend decremented is visible. Failures past this point are
// logged; the sale is already paid.
func (e *Engine) finalize(ctx context.Context, sale domain.Sale, method domain.PaymentMethod, received, change decimal.Decimal) domain.Receipt {
	e.mu.Lock()
	r := domain.Receipt{
		StoreName:  e.opts.StoreName,
		StoreTaxID: e.opts.StoreTaxID,
		IssuedAt:   time.Now(),
		SaleNumber: sale.SaleNumber,
		Cashier:    e.cashier,
		Customer:   e.customer,
		Lines:      append([]domain.CartLine{}, e.lines...),
		Tax:        domain.SplitTax(sale.Total),
		Method:     method,
		Received:   received,
		Change:     change,
	}
	drawerID := e.drawerID
	e.mu.Unlock()

	if err := e.printer.Print(ctx, r); err != nil {
		log.Printf("failed to print receipt %s: %v", r.SaleNumber, err)
	}

	if err := e.publisher.Publish(ctx, events.Event{
		Type:        events.TypeSaleCompleted,
		AggregateID: strconv.FormatInt(sale.ID, 10),
		Payload: map[string]any{
			"sale_id":        sale.ID,
			"sale_number":    sale.SaleNumber,
			"cash_drawer_id": drawerID,
			"method":         method,
			"total":          sale.Total,
			"items":          len(r.Lines),
		},
	}); err != nil {
		log.Printf("failed to publish sale %s: %v", sale.SaleNumber, err)
	}
	metrics.SalesCompleted.WithLabelValues(string(method)).Inc()

	e.mu.Lock()
	e.resetLocked()
	e.last = &r
	e.mu.Unlock()

	if _, err := e.catalog.Reload(ctx); err != nil {
		log.Printf("failed to reload catalog after sale %s: %v", sale.SaleNumber, err)
	}
	return r
}
