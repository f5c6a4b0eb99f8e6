package checkout

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/metrics"
)

type previewResult struct {
	version uint64
	total   decimal.Decimal
	err     error
}

// schedulePreview must be called with mu held after every cart mutation. It
// issues a new version and prices the cart in the background; a response is
// applied only if its version is still the latest issued.
func (e *Engine) schedulePreview() {
	e.version++
	v := e.version

	if len(e.lines) == 0 {
		e.preview = previewResult{version: v}
		return
	}

	req := e.saleRequest()
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.opts.PreviewTimeout)
		defer cancel()
		total, err := e.backend.PreviewSale(ctx, req)
		e.applyPreview(v, total, err)
	}()
}

func (e *Engine) applyPreview(v uint64, total decimal.Decimal, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v != e.version {
		metrics.PreviewDiscarded.Inc()
		return
	}
	if err != nil {
		log.Printf("preview of cart version %d failed: %v", v, err)
	}
	e.preview = previewResult{version: v, total: total, err: err}
}

// Preview returns the latest applied preview and whether it describes the
// current cart.
func (e *Engine) Preview() (domain.SalePreview, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := domain.SalePreview{Version: e.preview.version, Total: e.preview.total}
	return p, e.preview.version == e.version && e.preview.err == nil
}

// WaitPreviews blocks until every preview request issued so far has returned.
func (e *Engine) WaitPreviews() {
	e.pending.Wait()
}
