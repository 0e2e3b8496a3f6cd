package service

import (
	"context"
	"fmt"
	"net/url"

	"bybit_bot/internal/models"
)

// GetPosition — позиция по символу. Пустая позиция (size=0) — не ошибка.
func (c *Client) GetPosition(ctx context.Context, symbol string) (models.Position, error) {
	q := url.Values{}
	q.Set("category", categoryLinear)
	q.Set("symbol", symbol)

	var r struct {
		List []wirePosition `json:"list"`
	}
	if err := c.doGet(ctx, "/v5/position/list", q.Encode(), &r); err != nil {
		return models.Position{}, fmt.Errorf("GetPosition: %w", err)
	}

	for _, w := range r.List {
		if w.Symbol == symbol {
			return w.toModel(c.account), nil
		}
	}
	return models.Position{Symbol: symbol, Account: c.account}, nil
}

// GetPositions — все открытые USDT-перпы аккаунта. Нужен свипу при старте.
func (c *Client) GetPositions(ctx context.Context) ([]models.Position, error) {
	q := url.Values{}
	q.Set("category", categoryLinear)
	q.Set("settleCoin", "USDT")

	var r struct {
		List []wirePosition `json:"list"`
	}
	if err := c.doGet(ctx, "/v5/position/list", q.Encode(), &r); err != nil {
		return nil, fmt.Errorf("GetPositions: %w", err)
	}

	out := make([]models.Position, 0, len(r.List))
	for _, w := range r.List {
		p := w.toModel(c.account)
		if p.Size > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}
