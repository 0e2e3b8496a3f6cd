package service

import (
	"context"
	"fmt"
	"net/url"

	"bybit_bot/internal/models"
)

// GetOpenOrders — живые ордера по символу, лимитки и условные вместе.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]models.OrderRecord, error) {
	q := url.Values{}
	q.Set("category", categoryLinear)
	q.Set("symbol", symbol)
	q.Set("openOnly", "0")
	q.Set("limit", "50")

	var r struct {
		List []wireOrder `json:"list"`
	}
	if err := c.doGet(ctx, "/v5/order/realtime", q.Encode(), &r); err != nil {
		return nil, fmt.Errorf("GetOpenOrders: %w", err)
	}

	out := make([]models.OrderRecord, 0, len(r.List))
	for _, w := range r.List {
		rec := w.toModel()
		if rec.Status.IsLive() {
			out = append(out, rec)
		}
	}
	return out, nil
}

// GetOrder — точечный статус ордера; им подтверждаем отмену перед заменой.
func (c *Client) GetOrder(ctx context.Context, symbol, orderID string) (models.OrderRecord, error) {
	q := url.Values{}
	q.Set("category", categoryLinear)
	q.Set("symbol", symbol)
	q.Set("orderId", orderID)

	var r struct {
		List []wireOrder `json:"list"`
	}
	if err := c.doGet(ctx, "/v5/order/realtime", q.Encode(), &r); err != nil {
		return models.OrderRecord{}, fmt.Errorf("GetOrder: %w", err)
	}
	if len(r.List) == 0 {
		// realtime уже не отдаёт — ордер в истории, для нас он снят
		return models.OrderRecord{OrderID: orderID, Symbol: symbol, Status: models.OrderStatusCancelled}, nil
	}
	return r.List[0].toModel(), nil
}
