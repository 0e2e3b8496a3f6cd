package service

import (
	"fmt"

	"encoding/json"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
)

// retCode-ы Bybit V5, которые ядро трактует как no-op, а не ошибку.
const (
	retCodeOK                 = 0
	retCodeOrderNotExists     = 110001
	retCodeLeverageNotChanged = 110043
)

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// decodeEnvelope разбирает общий конверт ответа и раскладывает result в out.
// retCode != 0 превращается либо в сентинел (штатные no-op), либо в ошибку.
func decodeEnvelope(data []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decodeEnvelope: %w; body=%s", err, string(data))
	}

	switch env.RetCode {
	case retCodeOK:
	case retCodeLeverageNotChanged:
		return ErrLeverageNotModified
	case retCodeOrderNotExists:
		return ErrOrderGone
	default:
		return fmt.Errorf("bybit error: retCode=%d retMsg=%s", env.RetCode, env.RetMsg)
	}

	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decodeEnvelope result: %w; body=%s", err, string(data))
	}
	return nil
}

type wirePosition struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"` // Buy | Sell | ""
	Size      string `json:"size"`
	AvgPrice  string `json:"avgPrice"`
	MarkPrice string `json:"markPrice"`
	Leverage  string `json:"leverage"`
}

func (w wirePosition) toModel(account models.Account) models.Position {
	side := models.SideLong
	if w.Side == "Sell" {
		side = models.SideShort
	}
	return models.Position{
		Symbol:    w.Symbol,
		Side:      side,
		Account:   account,
		Size:      helper.ParseFloat(w.Size),
		AvgEntry:  helper.ParseFloat(w.AvgPrice),
		MarkPrice: helper.ParseFloat(w.MarkPrice),
		Leverage:  int(helper.ParseFloat(w.Leverage)),
	}
}

type wireOrder struct {
	OrderID       string `json:"orderId"`
	OrderLinkID   string `json:"orderLinkId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	OrderType     string `json:"orderType"`
	StopOrderType string `json:"stopOrderType"`
	ReduceOnly    bool   `json:"reduceOnly"`
	Qty           string `json:"qty"`
	Price         string `json:"price"`
	TriggerPrice  string `json:"triggerPrice"`
	OrderStatus   string `json:"orderStatus"`
}

func (w wireOrder) toModel() models.OrderRecord {
	side := models.SideLong
	if w.Side == "Sell" {
		side = models.SideShort
	}
	return models.OrderRecord{
		OrderID:       w.OrderID,
		LinkID:        w.OrderLinkID,
		Symbol:        w.Symbol,
		Side:          side,
		Type:          w.OrderType,
		StopOrderType: w.StopOrderType,
		ReduceOnly:    w.ReduceOnly,
		Qty:           helper.ParseFloat(w.Qty),
		Price:         helper.ParseFloat(w.Price),
		TriggerPrice:  helper.ParseFloat(w.TriggerPrice),
		Status:        models.OrderStatus(w.OrderStatus),
		Role:          models.RoleUnknown,
	}
}
