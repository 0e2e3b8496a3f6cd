package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
)

// SetLeverage выставляет плечо. «Плечо уже такое» (110043) — no-op, не ошибка.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		return fmt.Errorf("SetLeverage: leverage < 1")
	}

	lv := strconv.Itoa(leverage)
	body := map[string]string{
		"category":     categoryLinear,
		"symbol":       symbol,
		"buyLeverage":  lv,
		"sellLeverage": lv,
	}
	payload, _ := sonic.Marshal(body)

	err := c.doPost(ctx, "/v5/position/set-leverage", payload, nil)
	if err != nil {
		if errors.Is(err, ErrLeverageNotModified) {
			return nil
		}
		return fmt.Errorf("SetLeverage: %w", err)
	}
	return nil
}
