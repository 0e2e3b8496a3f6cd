package models

import (
	"fmt"
	"time"
)

// MonitorKey — ключ монитора: (аккаунт, символ, подход).
type MonitorKey struct {
	Account  Account  `json:"account"`
	Symbol   string   `json:"symbol"`
	Approach Approach `json:"approach"`
}

func (k MonitorKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Account, k.Symbol, k.Approach)
}

// MonitorState — единственное состояние, переживающее рестарт (в приближённом
// виде, через снапшоты). Потерять его не страшно: всё выводится заново из
// биржевых снимков, ценой повторной отправки части уже виденных событий.
type MonitorState struct {
	Key    MonitorKey `json:"key"`
	ChatID int64      `json:"chat_id"`
	Side   Side       `json:"side"`

	FilledSize float64 `json:"filled_size"`
	// Последняя ненулевая средняя цена входа: после закрытия позиции биржа
	// её уже не отдаёт, а для оценки исхода она нужна.
	AvgEntry   float64         `json:"avg_entry"`
	SeenEvents map[string]bool `json:"seen_events"` // "entry:1", "tp:1", "sl_breakeven", ...

	// Целевые цены выходов из заявки; для мониторов, восстановленных свипом,
	// заполняются из классифицированных ордеров.
	TakeProfits []float64 `json:"take_profits"`
	StopLoss    float64   `json:"stop_loss"`

	// Снимок прошлого цикла: какие уровни тейков были живы и стоял ли стоп.
	// Исчезновение уровня при уменьшившейся позиции трактуется как его срабатывание.
	OpenTiers  []int `json:"open_tiers"`
	HadSL      bool  `json:"had_sl"`
	EntryFills int   `json:"entry_fills"`

	Cycles    int       `json:"cycles"`
	StartedAt time.Time `json:"started_at"`
	Deadline  time.Time `json:"deadline"`
}

func (s *MonitorState) Seen(event string) bool {
	return s.SeenEvents[event]
}

func (s *MonitorState) MarkSeen(event string) bool {
	if s.SeenEvents == nil {
		s.SeenEvents = make(map[string]bool)
	}
	if s.SeenEvents[event] {
		return false
	}
	s.SeenEvents[event] = true
	return true
}

func EventTP(tier int) string { return fmt.Sprintf("tp:%d", tier) }
func EventEntry(n int) string { return fmt.Sprintf("entry:%d", n) }

const (
	EventSLBreakeven  = "sl_breakeven"
	EventSLHit        = "sl_hit"
	EventPositionFlat = "position_flat"
	EventLadderPlaced = "ladder_placed"
)

// TradeStats — агрегатные счётчики по чату.
type TradeStats struct {
	Wins   int     `json:"wins"`
	Losses int     `json:"losses"`
	PnL    float64 `json:"pnl_usdt"`
}
