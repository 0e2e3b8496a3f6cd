package service

import (
	"fmt"
	"strings"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
	historysvc "bybit_bot/internal/modules/history/service"
)

func formatPositions(states []models.MonitorState, positions []models.Position) string {
	if len(states) == 0 && len(positions) == 0 {
		return "📭 Открытых позиций и мониторов нет"
	}

	posBySymbol := map[string]models.Position{}
	for _, p := range positions {
		posBySymbol[p.Symbol] = p
	}

	var b strings.Builder
	b.WriteString("📊 Наблюдение:\n")
	for _, st := range states {
		fmt.Fprintf(&b, "- %s [%s/%s]", st.Key.Symbol, st.Key.Account, st.Key.Approach)
		if p, ok := posBySymbol[st.Key.Symbol]; ok && st.Key.Account == models.AccountPrimary && p.IsOpen() {
			fmt.Fprintf(&b, " %s %s @ %s, плечо %dx",
				strings.ToUpper(string(p.Side)), helper.FormatQty(p.Size),
				helper.FormatPrice(p.AvgEntry), p.Leverage)
			delete(posBySymbol, p.Symbol)
		} else if st.FilledSize <= 0 {
			b.WriteString(" ждёт входа")
		}
		fmt.Fprintf(&b, ", циклов %d\n", st.Cycles)
	}

	// Позиции без монитора: такого быть не должно, свип их подбирает.
	for _, p := range posBySymbol {
		if !p.IsOpen() {
			continue
		}
		fmt.Fprintf(&b, "- %s %s %s @ %s ⚠️ без монитора\n",
			p.Symbol, strings.ToUpper(string(p.Side)),
			helper.FormatQty(p.Size), helper.FormatPrice(p.AvgEntry))
	}
	return b.String()
}

func formatStats(stats models.TradeStats, recent []historysvc.Outcome) string {
	var b strings.Builder
	total := stats.Wins + stats.Losses
	b.WriteString("📈 Статистика\n")
	fmt.Fprintf(&b, "Сделок: %d, побед: %d, поражений: %d\n", total, stats.Wins, stats.Losses)
	if total > 0 {
		fmt.Fprintf(&b, "Winrate: %.0f%%\n", 100*float64(stats.Wins)/float64(total))
	}
	fmt.Fprintf(&b, "PnL: %+.2f USDT\n", stats.PnL)

	if len(recent) > 0 {
		b.WriteString("\nПоследние:\n")
		for _, o := range recent {
			mark := "✅"
			if !o.Win {
				mark = "🛑"
			}
			fmt.Fprintf(&b, "%s %s [%s] %+.2f USDT %s\n",
				mark, o.Symbol, o.Approach, o.PnL, o.ClosedAt.Format("02.01 15:04"))
		}
	}
	return b.String()
}
