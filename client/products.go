package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gocart/gocart/core/cart"
	"github.com/shopspring/decimal"
)

// Products looks item data up in the products service.
type Products struct {
	url string
	hc  *http.Client
}

func NewProducts(cfg Config) *Products {
	return &Products{url: cfg.URL, hc: httpClient(cfg)}
}

func (p *Products) Product(ctx context.Context, itemID int64) (cart.ProductInfo, error) {
	var body struct {
		Title    string          `json:"title"`
		Price    decimal.Decimal `json:"price"`
		IsWeight bool            `json:"is_weight"`
	}

	url := fmt.Sprintf("%s/products/%d", p.url, itemID)
	if err := getJSON(ctx, p.hc, "products", url, &body); err != nil {
		if errors.Is(err, errNotFound) {
			return cart.ProductInfo{}, cart.ErrItemDoesNotExist
		}
		return cart.ProductInfo{}, err
	}

	return cart.ProductInfo{
		Title:    body.Title,
		Price:    body.Price,
		IsWeight: body.IsWeight,
	}, nil
}
