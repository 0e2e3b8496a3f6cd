package models

import (
	"fmt"
	"strings"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

func (s Side) Valid() bool { return s == SideLong || s == SideShort }

// Opposite — сторона закрывающего ордера.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return SideLong, nil
	case "short", "sell":
		return SideShort, nil
	}
	return "", fmt.Errorf("ParseSide: unknown side %q", raw)
}

type Approach string

const (
	// ApproachFast — 1 вход, 1 тейк (100%), 1 стоп (100%).
	ApproachFast Approach = "fast"
	// ApproachConservative — до 3 лимитных входов, 4 тейка (85/5/5/5), 1 стоп.
	ApproachConservative Approach = "conservative"
)

func (a Approach) Valid() bool { return a == ApproachFast || a == ApproachConservative }

func ParseApproach(raw string) (Approach, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fast", "f":
		return ApproachFast, nil
	case "conservative", "cons", "c":
		return ApproachConservative, nil
	}
	return "", fmt.Errorf("ParseApproach: unknown approach %q", raw)
}

type Account string

const (
	AccountPrimary Account = "primary"
	AccountMirror  Account = "mirror"
)

// TradeRequest — структурированные параметры сделки.
// Приходит либо из Telegram-формы, либо из пайплайна распознавания скриншотов —
// схема одна и та же. После передачи в экзекьютор не мутируется.
type TradeRequest struct {
	Symbol     string   `json:"symbol"`
	Side       Side     `json:"side"`
	Approach   Approach `json:"approach"`
	Leverage   int      `json:"leverage"`
	MarginUSDT float64  `json:"margin_usdt"`

	Entries     []float64 `json:"entries"`      // 1..3, от ближней к дальней
	TakeProfits []float64 `json:"take_profits"` // 1..4, от ближней к дальней
	StopLoss    float64   `json:"stop_loss"`

	Source string `json:"source"` // telegram | screenshot
}

// Validate проверяет инварианты заявки:
// входы упорядочены против направления сделки, тейки — по направлению,
// стоп — за всеми входами с убыточной стороны.
func (r *TradeRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("validate: empty symbol")
	}
	if !r.Side.Valid() {
		return fmt.Errorf("validate: bad side %q", r.Side)
	}
	if !r.Approach.Valid() {
		return fmt.Errorf("validate: bad approach %q", r.Approach)
	}
	if r.Leverage < 1 || r.Leverage > 100 {
		return fmt.Errorf("validate: leverage %d out of range", r.Leverage)
	}
	if r.MarginUSDT <= 0 {
		return fmt.Errorf("validate: margin <= 0")
	}

	maxEntries, maxTPs := 1, 1
	if r.Approach == ApproachConservative {
		maxEntries, maxTPs = 3, 4
	}
	if len(r.Entries) < 1 || len(r.Entries) > maxEntries {
		return fmt.Errorf("validate: %d entries for %s approach", len(r.Entries), r.Approach)
	}
	if len(r.TakeProfits) < 1 || len(r.TakeProfits) > maxTPs {
		return fmt.Errorf("validate: %d take-profits for %s approach", len(r.TakeProfits), r.Approach)
	}
	if r.StopLoss <= 0 {
		return fmt.Errorf("validate: stop-loss <= 0")
	}
	for i, px := range append(append([]float64{}, r.Entries...), r.TakeProfits...) {
		if px <= 0 {
			return fmt.Errorf("validate: price #%d <= 0", i)
		}
	}

	// long: входы по убыванию, тейки по возрастанию, SL ниже всех входов.
	// short — зеркально.
	dir := 1.0
	if r.Side == SideShort {
		dir = -1.0
	}
	for i := 1; i < len(r.Entries); i++ {
		if dir*(r.Entries[i]-r.Entries[i-1]) >= 0 {
			return fmt.Errorf("validate: entries not ordered away from price")
		}
	}
	for i := 1; i < len(r.TakeProfits); i++ {
		if dir*(r.TakeProfits[i]-r.TakeProfits[i-1]) <= 0 {
			return fmt.Errorf("validate: take-profits not ordered in profit direction")
		}
	}
	for _, e := range r.Entries {
		if dir*(r.TakeProfits[0]-e) <= 0 {
			return fmt.Errorf("validate: tp1 %.8f not beyond entry %.8f", r.TakeProfits[0], e)
		}
		if dir*(e-r.StopLoss) <= 0 {
			return fmt.Errorf("validate: stop-loss %.8f not on loss side of entry %.8f", r.StopLoss, e)
		}
	}
	return nil
}
