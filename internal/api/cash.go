package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/domain"
)

// CurrentDrawer returns the open drawer for this terminal's context, or nil
// when there is none.
func (c *Client) CurrentDrawer(ctx context.Context) (*domain.CashDrawer, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/cash/current", nil)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}

	var dto drawerDTO
	empty, err := decodeObject(body, &dto)
	if err != nil {
		return nil, err
	}
	if empty || dto.ID == 0 {
		return nil, nil
	}
	drawer := dto.toDomain()
	return &drawer, nil
}

func (c *Client) OpenDrawer(ctx context.Context, openingAmount decimal.Decimal) (domain.CashDrawer, error) {
	payload := struct {
		OpeningAmount any `json:"opening_amount"`
	}{money(openingAmount)}

	body, _, err := c.do(ctx, http.MethodPost, "/cash/open", payload)
	if err != nil {
		return domain.CashDrawer{}, err
	}

	var dto drawerDTO
	if _, err := decodeObject(body, &dto); err != nil {
		return domain.CashDrawer{}, err
	}
	return dto.toDomain(), nil
}

func (c *Client) DrawerSummary(ctx context.Context, drawerID int64) (domain.DrawerSummary, error) {
	body, _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/cash/%d/summary", drawerID), nil)
	if err != nil {
		return domain.DrawerSummary{}, err
	}

	var dto summaryDTO
	empty, err := decodeObject(body, &dto)
	if err != nil {
		return domain.DrawerSummary{}, err
	}
	if empty {
		return domain.DrawerSummary{}, fmt.Errorf("%w: empty summary", ErrUnexpectedShape)
	}
	return domain.DrawerSummary{
		DrawerID:      drawerID,
		OpeningAmount: dto.OpeningAmount,
		TotalSales:    dto.TotalSales,
		CashTotal:     dto.CashTotal,
		QRTotal:       dto.QRTotal,
		FinalTotal:    dto.FinalTotal,
	}, nil
}

func (c *Client) CloseDrawer(ctx context.Context, drawerID int64) error {
	_, _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/cash/%d/close", drawerID), nil)
	return err
}
