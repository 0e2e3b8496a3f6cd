package service

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
)

var (
	metaMu    sync.RWMutex
	metaCache = map[string]models.InstrumentMeta{}
)

// GetInstrumentMeta — tickSize/qtyStep/minQty инструмента. Меняются редко,
// поэтому кэшируются на процесс.
func (c *Client) GetInstrumentMeta(ctx context.Context, symbol string) (models.InstrumentMeta, error) {
	metaMu.RLock()
	if m, ok := metaCache[symbol]; ok {
		metaMu.RUnlock()
		return m, nil
	}
	metaMu.RUnlock()

	q := url.Values{}
	q.Set("category", categoryLinear)
	q.Set("symbol", symbol)

	var r struct {
		List []struct {
			Symbol      string `json:"symbol"`
			PriceFilter struct {
				TickSize string `json:"tickSize"`
			} `json:"priceFilter"`
			LotSizeFilter struct {
				QtyStep     string `json:"qtyStep"`
				MinOrderQty string `json:"minOrderQty"`
			} `json:"lotSizeFilter"`
		} `json:"list"`
	}
	if err := c.doGet(ctx, "/v5/market/instruments-info", q.Encode(), &r); err != nil {
		return models.InstrumentMeta{}, fmt.Errorf("GetInstrumentMeta: %w", err)
	}
	if len(r.List) == 0 {
		return models.InstrumentMeta{}, fmt.Errorf("GetInstrumentMeta: unknown symbol %s", symbol)
	}

	m := models.InstrumentMeta{
		TickSize: helper.ParseFloat(r.List[0].PriceFilter.TickSize),
		QtyStep:  helper.ParseFloat(r.List[0].LotSizeFilter.QtyStep),
		MinQty:   helper.ParseFloat(r.List[0].LotSizeFilter.MinOrderQty),
	}
	if m.TickSize <= 0 || m.QtyStep <= 0 {
		return models.InstrumentMeta{}, fmt.Errorf("GetInstrumentMeta: bad filters for %s", symbol)
	}

	metaMu.Lock()
	metaCache[symbol] = m
	metaMu.Unlock()

	return m, nil
}
