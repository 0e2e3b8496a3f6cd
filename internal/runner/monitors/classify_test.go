package monitors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bybit_bot/internal/models"
)

func longPosition(size, avg float64) models.Position {
	return models.Position{
		Symbol:   "BTCUSDT",
		Side:     models.SideLong,
		Account:  models.AccountPrimary,
		Size:     size,
		AvgEntry: avg,
	}
}

func liveOrder(id, link string, side models.Side, mod func(*models.OrderRecord)) models.OrderRecord {
	o := models.OrderRecord{
		OrderID: id,
		LinkID:  link,
		Symbol:  "BTCUSDT",
		Side:    side,
		Type:    "Market",
		Status:  models.OrderStatusUntriggered,
	}
	if mod != nil {
		mod(&o)
	}
	return o
}

func TestClassifyByLabel(t *testing.T) {
	pos := longPosition(1, 42000)

	cases := []struct {
		name string
		link string
		want models.OrderRole
	}{
		{"new scheme tp2", "bb-BTCUSDT-tp2-184467", models.RoleTP2},
		{"new scheme sl", "bb-BTCUSDT-sl-184467", models.RoleSL},
		{"new scheme entry", "bb-BTCUSDT-entry-184467", models.RoleEntry},
		{"legacy tp underscore", "TP_3_BTCUSDT_1699999", models.RoleTP3},
		{"legacy take profit", "TAKE_PROFIT_1_BTCUSDT", models.RoleTP1},
		{"legacy stoploss", "STOPLOSS_BTCUSDT_1699999", models.RoleSL},
		{"legacy stop loss split", "STOP_LOSS_BTCUSDT", models.RoleSL},
		{"legacy entry index", "E2_BTCUSDT_1699999", models.RoleEntry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := liveOrder("1", tc.link, models.SideShort, func(o *models.OrderRecord) {
				o.ReduceOnly = true
				o.TriggerPrice = 43000
			})
			c := Classify(o, pos)
			assert.Equal(t, tc.want, c.Role)
			assert.GreaterOrEqual(t, c.Confidence, confThreshold)
		})
	}
}

func TestClassifyByStopType(t *testing.T) {
	pos := longPosition(1, 42000)

	sl := liveOrder("1", "random-client-id", models.SideShort, func(o *models.OrderRecord) {
		o.StopOrderType = "StopLoss"
		o.TriggerPrice = 40000
		o.Qty = 1
	})
	assert.Equal(t, models.RoleSL, Classify(sl, pos).Role)

	tp := liveOrder("2", "random-client-id", models.SideShort, func(o *models.OrderRecord) {
		o.StopOrderType = "PartialTakeProfit"
		o.TriggerPrice = 43000
		o.Qty = 0.85
	})
	c := Classify(tp, pos)
	assert.True(t, c.Role.IsTP())
}

func TestClassifyStructural(t *testing.T) {
	pos := longPosition(1, 42000)

	// легаси "Stop" на весь размер в убыточной стороне — стоп
	sl := liveOrder("1", "", models.SideShort, func(o *models.OrderRecord) {
		o.StopOrderType = "Stop"
		o.TriggerPrice = 40000
		o.Qty = 1
	})
	c := Classify(sl, pos)
	assert.Equal(t, models.RoleSL, c.Role)
	assert.Equal(t, confStructSL, c.Confidence)

	// закрывающий ордер в прибыльной стороне — тейк
	tp := liveOrder("2", "", models.SideShort, func(o *models.OrderRecord) {
		o.ReduceOnly = true
		o.TriggerPrice = 44000
		o.Qty = 0.1
	})
	assert.True(t, Classify(tp, pos).Role.IsTP())

	// лимитка в сторону позиции — вход
	entry := liveOrder("3", "", models.SideLong, func(o *models.OrderRecord) {
		o.Type = "Limit"
		o.Price = 41000
		o.Qty = 0.5
	})
	c = Classify(entry, pos)
	assert.Equal(t, models.RoleEntry, c.Role)
	assert.Equal(t, confEntryGuess, c.Confidence)

	// частичный закрывающий в убыточной стороне не похож ни на что
	odd := liveOrder("4", "", models.SideShort, func(o *models.OrderRecord) {
		o.StopOrderType = "Stop"
		o.TriggerPrice = 40000
		o.Qty = 0.2
	})
	assert.Equal(t, models.RoleUnknown, Classify(odd, pos).Role)
}

func TestClassifyOrdersAssignsTiersByDistance(t *testing.T) {
	pos := longPosition(1, 42000)

	// четыре безымянных тейка вразнобой: ближний к средней должен стать tp1
	orders := []models.OrderRecord{
		liveOrder("a", "", models.SideShort, func(o *models.OrderRecord) {
			o.StopOrderType = "PartialTakeProfit"
			o.TriggerPrice = 44500
			o.Qty = 0.05
		}),
		liveOrder("b", "", models.SideShort, func(o *models.OrderRecord) {
			o.StopOrderType = "PartialTakeProfit"
			o.TriggerPrice = 43000
			o.Qty = 0.85
		}),
		liveOrder("c", "", models.SideShort, func(o *models.OrderRecord) {
			o.StopOrderType = "PartialTakeProfit"
			o.TriggerPrice = 44000
			o.Qty = 0.05
		}),
		liveOrder("d", "", models.SideShort, func(o *models.OrderRecord) {
			o.StopOrderType = "PartialTakeProfit"
			o.TriggerPrice = 43500
			o.Qty = 0.05
		}),
	}

	classified := ClassifyOrders(orders, pos)
	byID := map[string]models.OrderRole{}
	for _, o := range classified {
		byID[o.OrderID] = o.Role
	}
	assert.Equal(t, models.RoleTP1, byID["b"])
	assert.Equal(t, models.RoleTP2, byID["d"])
	assert.Equal(t, models.RoleTP3, byID["c"])
	assert.Equal(t, models.RoleTP4, byID["a"])
}

func TestClassifyOrdersRespectsLabeledTiers(t *testing.T) {
	pos := longPosition(1, 42000)

	// помеченный tp1 держит уровень, безымянный ближний получает следующий
	orders := []models.OrderRecord{
		liveOrder("far", "bb-BTCUSDT-tp1-42", models.SideShort, func(o *models.OrderRecord) {
			o.ReduceOnly = true
			o.TriggerPrice = 45000
			o.Qty = 0.85
		}),
		liveOrder("near", "", models.SideShort, func(o *models.OrderRecord) {
			o.ReduceOnly = true
			o.TriggerPrice = 43000
			o.Qty = 0.15
		}),
	}

	classified := ClassifyOrders(orders, pos)
	byID := map[string]models.OrderRole{}
	for _, o := range classified {
		byID[o.OrderID] = o.Role
	}
	assert.Equal(t, models.RoleTP1, byID["far"])
	assert.Equal(t, models.RoleTP2, byID["near"])
}

func TestClassifyDeterministic(t *testing.T) {
	pos := longPosition(2, 30000)
	orders := []models.OrderRecord{
		liveOrder("1", "bb-BTCUSDT-sl-7", models.SideShort, func(o *models.OrderRecord) {
			o.TriggerPrice = 29000
			o.Qty = 2
		}),
		liveOrder("2", "", models.SideShort, func(o *models.OrderRecord) {
			o.ReduceOnly = true
			o.TriggerPrice = 31000
			o.Qty = 1.7
		}),
		liveOrder("3", "", models.SideLong, func(o *models.OrderRecord) {
			o.Type = "Limit"
			o.Price = 29500
			o.Qty = 1
		}),
	}

	first := ClassifyOrders(orders, pos)
	for i := 0; i < 10; i++ {
		again := ClassifyOrders(orders, pos)
		require.Equal(t, first, again)
	}
}

func TestClassifyUnknownStaysUnknown(t *testing.T) {
	pos := longPosition(1, 42000)

	// чужой ордер без метки, без типа и без геометрии
	o := liveOrder("x", "manual-order-via-app", models.SideShort, func(o *models.OrderRecord) {
		o.Type = "Limit"
		o.Price = 0
	})
	assert.Equal(t, models.RoleUnknown, Classify(o, pos).Role)
}
