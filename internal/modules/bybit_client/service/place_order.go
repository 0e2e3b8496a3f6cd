package service

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
)

// PlaceOrder размещает ордер по спеке. Для условных (TP/SL) ордеров
// выставляется triggerPrice + triggerDirection, исполняются маркетом.
func (c *Client) PlaceOrder(ctx context.Context, spec models.OrderSpec) (models.OrderRecord, error) {
	if spec.Qty <= 0 {
		return models.OrderRecord{}, fmt.Errorf("PlaceOrder: qty <= 0")
	}

	side := "Buy"
	if spec.Side == models.SideShort {
		side = "Sell"
	}

	body := map[string]any{
		"category":  categoryLinear,
		"symbol":    spec.Symbol,
		"side":      side,
		"orderType": spec.OrderType,
		"qty":       helper.FormatQty(spec.Qty),
	}
	if spec.Price > 0 && spec.OrderType == "Limit" {
		body["price"] = helper.FormatPrice(spec.Price)
	}
	if spec.TriggerPrice > 0 {
		body["triggerPrice"] = helper.FormatPrice(spec.TriggerPrice)
		body["triggerDirection"] = triggerDirection(spec)
		body["triggerBy"] = "LastPrice"
	}
	if spec.ReduceOnly {
		body["reduceOnly"] = true
	}
	if spec.LinkID != "" {
		body["orderLinkId"] = spec.LinkID
	}

	payload, err := sonic.Marshal(body)
	if err != nil {
		return models.OrderRecord{}, fmt.Errorf("PlaceOrder marshal: %w", err)
	}

	var r struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := c.doPost(ctx, "/v5/order/create", payload, &r); err != nil {
		return models.OrderRecord{}, fmt.Errorf("PlaceOrder: %w", err)
	}
	if r.OrderID == "" {
		return models.OrderRecord{}, fmt.Errorf("PlaceOrder: empty orderId")
	}

	rec := models.OrderRecord{
		OrderID:      r.OrderID,
		LinkID:       spec.LinkID,
		Symbol:       spec.Symbol,
		Side:         spec.Side,
		Type:         spec.OrderType,
		ReduceOnly:   spec.ReduceOnly,
		Qty:          spec.Qty,
		Price:        spec.Price,
		TriggerPrice: spec.TriggerPrice,
		Status:       models.OrderStatusNew,
		Role:         spec.Role,
	}
	return rec, nil
}

// triggerDirection: 1 — сработать при росте цены, 2 — при падении.
// Для закрывающего ордера лонга TP срабатывает сверху, SL — снизу; у шорта зеркально.
func triggerDirection(spec models.OrderSpec) int {
	rising := 1
	falling := 2

	closesLong := spec.Side == models.SideShort // sell закрывает лонг
	isTP := spec.Role.IsTP()

	switch {
	case closesLong && isTP:
		return rising
	case closesLong && !isTP:
		return falling
	case !closesLong && isTP:
		return falling
	default:
		return rising
	}
}
