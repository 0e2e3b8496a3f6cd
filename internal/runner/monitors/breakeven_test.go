package monitors

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bybit_bot/internal/models"
)

func TestBreakevenPriceLong(t *testing.T) {
	pos := models.Position{
		Symbol:   "BTCUSDT",
		Side:     models.SideLong,
		Size:     1,
		AvgEntry: 42000,
	}

	// 42000 * 0.0012 = 50.4 комиссии + 2 тика по 0.5, округление вверх
	be := BreakevenPrice(pos, 0.0012, 2, 0.5)
	assert.Equal(t, 42051.5, be)
	assert.Greater(t, be, pos.AvgEntry)
}

func TestBreakevenPriceShort(t *testing.T) {
	pos := models.Position{
		Symbol:   "BTCUSDT",
		Side:     models.SideShort,
		Size:     1,
		AvgEntry: 42000,
	}

	be := BreakevenPrice(pos, 0.0012, 2, 0.5)
	assert.Equal(t, 41948.5, be)
	assert.Less(t, be, pos.AvgEntry)
}

func TestBreakevenImprovesIsOneWay(t *testing.T) {
	// лонг: стоп двигается только вверх
	assert.True(t, BreakevenImproves(models.SideLong, 40000, 42050))
	assert.False(t, BreakevenImproves(models.SideLong, 42050, 40000))
	assert.False(t, BreakevenImproves(models.SideLong, 42050, 42050))

	// шорт: только вниз
	assert.True(t, BreakevenImproves(models.SideShort, 44000, 41950))
	assert.False(t, BreakevenImproves(models.SideShort, 41950, 44000))

	// нет текущего стопа — любой валидный лучше
	assert.True(t, BreakevenImproves(models.SideLong, 0, 42050))
}
