package monitors

import (
	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
)

// BreakevenPrice — цена стопа после снятия основного тейка: средняя цена
// входа, сдвинутая в прибыльную сторону на круговую комиссию и пару тиков
// запаса. Округление — тоже в прибыльную сторону, чтобы реальный безубыток
// не оказался за стопом.
func BreakevenPrice(pos models.Position, feeRate float64, extraTicks int, tick float64) float64 {
	shift := pos.AvgEntry*feeRate + float64(extraTicks)*tick
	if pos.Side == models.SideLong {
		return helper.RoundUpToTick(pos.AvgEntry+shift, tick)
	}
	return helper.RoundDownToTick(pos.AvgEntry-shift, tick)
}

// BreakevenImproves — true, если новый стоп строго лучше текущего
// (ближе к прибыли). Стоп двигается только в одну сторону: откатывать
// безубыток назад к исходному стопу нельзя.
func BreakevenImproves(side models.Side, current, proposed float64) bool {
	if current <= 0 {
		return proposed > 0
	}
	if side == models.SideLong {
		return proposed > current
	}
	return proposed < current
}
