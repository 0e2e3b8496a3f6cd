package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// CancelOrder снимает ордер. Возвращает gone=true, только если биржа сама
// ответила «ордера уже нет» (исполнился или снят параллельно); обычный
// успех — gone=false, факт отмены вызывающий подтверждает опросом ордера.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	body := map[string]string{
		"category": categoryLinear,
		"symbol":   symbol,
		"orderId":  orderID,
	}
	payload, _ := sonic.Marshal(body)

	err := c.doPost(ctx, "/v5/order/cancel", payload, nil)
	if err != nil {
		if errors.Is(err, ErrOrderGone) {
			return true, nil
		}
		return false, fmt.Errorf("CancelOrder: %w", err)
	}
	return false, nil
}
