package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/domain"
)

// PreviewSale asks the backend to price a cart without creating a sale, so
// server-side promotions are reflected.
func (c *Client) PreviewSale(ctx context.Context, req domain.SaleRequest) (decimal.Decimal, error) {
	req.Preview = true
	sale, err := c.postSale(ctx, req)
	if err != nil {
		return decimal.Zero, err
	}
	return sale.Total, nil
}

// CreateSale commits the cart as a sale awaiting payment.
func (c *Client) CreateSale(ctx context.Context, req domain.SaleRequest, idempotencyKey string) (domain.Sale, error) {
	req.Preview = false
	var opts []requestOption
	if idempotencyKey != "" {
		opts = append(opts, withHeader("Idempotency-Key", idempotencyKey))
	}
	return c.postSale(ctx, req, opts...)
}

func (c *Client) postSale(ctx context.Context, req domain.SaleRequest, opts ...requestOption) (domain.Sale, error) {
	body, _, err := c.do(ctx, http.MethodPost, "/sales", req, opts...)
	if err != nil {
		return domain.Sale{}, err
	}

	var env saleEnvelope
	if _, err := decodeObject(body, &env); err != nil {
		return domain.Sale{}, err
	}
	if env.Sale == nil {
		return domain.Sale{}, fmt.Errorf("%w: response without sale", ErrUnexpectedShape)
	}
	return domain.Sale{
		ID:         env.Sale.ID,
		SaleNumber: string(env.Sale.SaleNumber),
		Total:      env.Sale.Total,
		Status:     env.Sale.Status,
	}, nil
}

type paymentRequest struct {
	SaleID   int64  `json:"sale_id"`
	Amount   any    `json:"amount"`
	Provider string `json:"provider,omitempty"`
}

func (c *Client) PayCash(ctx context.Context, saleID int64, amount decimal.Decimal) error {
	_, _, err := c.do(ctx, http.MethodPost, "/payments/cash", paymentRequest{
		SaleID: saleID,
		Amount: money(amount),
	})
	return err
}

func (c *Client) PayElectronic(ctx context.Context, saleID int64, amount decimal.Decimal, provider string) error {
	_, _, err := c.do(ctx, http.MethodPost, "/payments/qr", paymentRequest{
		SaleID:   saleID,
		Amount:   money(amount),
		Provider: provider,
	})
	return err
}
