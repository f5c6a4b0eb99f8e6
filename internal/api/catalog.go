package api

import (
	"context"
	"net/http"

	"github.com/dynatos/pos-terminal/internal/domain"
)

func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/products", nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList[productDTO](body)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, len(items))
	for i, p := range items {
		products[i] = domain.Product{
			ID:           p.ID,
			Name:         p.Name,
			SalePrice:    p.SalePrice,
			CurrentStock: p.CurrentStock,
			CategoryID:   p.CategoryID,
		}
	}
	return products, nil
}

func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/categories", nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList[categoryDTO](body)
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, len(items))
	for i, cat := range items {
		categories[i] = domain.Category{ID: cat.ID, Name: cat.Name}
	}
	return categories, nil
}
