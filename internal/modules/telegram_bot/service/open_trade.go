package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
)

const confirmTimeout = 2 * time.Minute

// handleTradeForm — путь заявки: разбор, превью, подтверждение кнопками,
// исполнение. Исполнение идёт в executor, дальше символ живёт у монитора.
func (t *Telegram) handleTradeForm(ctx context.Context, chatID int64, text string) {
	req, err := parseTradeForm(text)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ Не разобрал заявку: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ Заявка не прошла проверку: "+err.Error())
		return
	}

	if !t.Confirm(ctx, chatID, formatRequest(req), confirmTimeout) {
		return
	}

	results, err := t.executor.Execute(ctx, chatID, req)
	if err != nil {
		_, _ = t.Send(ctx, chatID, "❗️ Заявка не исполнилась: "+err.Error())
		return
	}

	for _, res := range results {
		if res.Account != models.AccountPrimary {
			continue
		}
		if res.Merged {
			_ = t.SendF(ctx, chatID, "➕ %s: позиция уже была открыта, заявка влита (%d новых ордеров)",
				req.Symbol, len(res.Placed))
			continue
		}
		_ = t.SendF(ctx, chatID, "🚀 %s %s %s: размещено %d ордеров, беру под наблюдение",
			req.Symbol, req.Side, req.Approach, len(res.Placed))
	}
}

// parseTradeForm разбирает строку вида
//
//	TRADE: BTCUSDT; long; conservative; 10; 100; 42000,41500; 43000,43500,44000,44500; 40000
//
// Поля: символ; сторона; подход; плечо; маржа USDT; входы; тейки; стоп.
func parseTradeForm(text string) (*models.TradeRequest, error) {
	body := strings.TrimSpace(text)
	if i := strings.Index(body, ":"); i >= 0 {
		body = body[i+1:]
	}

	parts := strings.Split(body, ";")
	if len(parts) != 8 {
		return nil, fmt.Errorf("нужно 8 полей через «;», получено %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	side, err := models.ParseSide(parts[1])
	if err != nil {
		return nil, err
	}
	approach, err := models.ParseApproach(parts[2])
	if err != nil {
		return nil, err
	}
	leverage, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, fmt.Errorf("плечо: %w", err)
	}
	margin, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return nil, fmt.Errorf("маржа: %w", err)
	}
	entries, err := parsePrices(parts[5])
	if err != nil {
		return nil, fmt.Errorf("входы: %w", err)
	}
	tps, err := parsePrices(parts[6])
	if err != nil {
		return nil, fmt.Errorf("тейки: %w", err)
	}
	sl, err := strconv.ParseFloat(parts[7], 64)
	if err != nil {
		return nil, fmt.Errorf("стоп: %w", err)
	}

	return &models.TradeRequest{
		Symbol:      strings.ToUpper(parts[0]),
		Side:        side,
		Approach:    approach,
		Leverage:    leverage,
		MarginUSDT:  margin,
		Entries:     entries,
		TakeProfits: tps,
		StopLoss:    sl,
		Source:      "telegram",
	}, nil
}

func parsePrices(raw string) ([]float64, error) {
	var out []float64
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("цена %q", p)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("пустой список цен")
	}
	return out, nil
}

func formatRequest(req *models.TradeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 %s %s, подход %s\n", req.Symbol, strings.ToUpper(string(req.Side)), req.Approach)
	fmt.Fprintf(&b, "Плечо %dx, маржа %s USDT\n", req.Leverage, helper.FormatQty(req.MarginUSDT))
	fmt.Fprintf(&b, "Входы: %s\n", joinPrices(req.Entries))
	fmt.Fprintf(&b, "Тейки: %s\n", joinPrices(req.TakeProfits))
	fmt.Fprintf(&b, "Стоп: %s\n\nИсполнить?", helper.FormatPrice(req.StopLoss))
	return b.String()
}

func joinPrices(prices []float64) string {
	strs := make([]string, 0, len(prices))
	for _, p := range prices {
		strs = append(strs, helper.FormatPrice(p))
	}
	return strings.Join(strs, ", ")
}
