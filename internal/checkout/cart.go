package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/dynatos/pos-terminal/internal/domain"
)

// AddProduct puts one unit of the product in the cart. When nothing of it is
// left to sell (catalog stock minus what the cart already holds) the call is
// a no-op and added is false.
func (e *Engine) AddProduct(ctx context.Context, productID int64) (added bool, err error) {
	e.op.Lock()
	defer e.op.Unlock()

	if err := e.editable(); err != nil {
		return false, err
	}

	product, err := e.catalog.Product(ctx, productID)
	if err != nil {
		return false, fmt.Errorf("failed to look up product: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.lineIndex(productID)
	inCart := 0
	if i >= 0 {
		inCart = e.lines[i].Quantity
	}
	if product.CurrentStock-inCart <= 0 {
		return false, nil
	}

	if i >= 0 {
		e.lines[i].Quantity++
	} else {
		e.lines = append(e.lines, domain.CartLine{
			ProductID:  product.ID,
			Name:       product.Name,
			UnitPrice:  product.SalePrice,
			Quantity:   1,
			StockAtAdd: product.CurrentStock,
		})
	}
	e.schedulePreview()
	return true, nil
}

// Increment adds one unit to an existing line, bounded by the stock seen when
// the product was first added. Stock is not re-read from the backend.
func (e *Engine) Increment(productID int64) error {
	e.op.Lock()
	defer e.op.Unlock()

	if err := e.editable(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.lineIndex(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	if e.lines[i].Quantity >= e.lines[i].StockAtAdd {
		return ErrStockExceeded
	}
	e.lines[i].Quantity++
	e.schedulePreview()
	return nil
}

// Decrement removes one unit; the line disappears when it reaches zero.
func (e *Engine) Decrement(productID int64) error {
	e.op.Lock()
	defer e.op.Unlock()

	if err := e.editable(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.lineIndex(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	e.lines[i].Quantity--
	if e.lines[i].Quantity <= 0 {
		e.lines = append(e.lines[:i], e.lines[i+1:]...)
	}
	e.schedulePreview()
	return nil
}

// Available is how many more units of p the cart could take.
func (e *Engine) Available(p domain.Product) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	available := p.CurrentStock
	if i := e.lineIndex(p.ID); i >= 0 {
		available -= e.lines[i].Quantity
	}
	if available < 0 {
		return 0
	}
	return available
}

// SetCustomer attaches a named customer to the sale; the document id, when
// given, is appended after the name.
func (e *Engine) SetCustomer(name, document string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidCustomer
	}

	e.op.Lock()
	defer e.op.Unlock()
	if err := e.editable(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if doc := strings.TrimSpace(document); doc != "" {
		name = name + " - " + doc
	}
	e.customer = name
	return nil
}

func (e *Engine) ClearCustomer() error {
	e.op.Lock()
	defer e.op.Unlock()
	if err := e.editable(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.customer = ""
	return nil
}

func (e *Engine) editable() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drawerID == 0 {
		return ErrNoDrawer
	}
	if e.phase != PhaseEditing {
		return ErrPaymentInProgress
	}
	return nil
}

func (e *Engine) lineIndex(productID int64) int {
	for i, l := range e.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}
