package monitors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bybit_bot/internal/models"
)

var testMeta = models.InstrumentMeta{TickSize: 0.5, QtyStep: 0.001, MinQty: 0.001}

const testQtyTol = 0.01

func conservativeTargets() Targets {
	return Targets{
		TPPrices: []float64{43000, 43500, 44000, 44500},
		SLPrice:  40000,
	}
}

func tpOrder(id string, tier int, qty, trigger float64) models.OrderRecord {
	return models.OrderRecord{
		OrderID:      id,
		Symbol:       "BTCUSDT",
		Side:         models.SideShort,
		Type:         "Market",
		ReduceOnly:   true,
		Qty:          qty,
		TriggerPrice: trigger,
		Status:       models.OrderStatusUntriggered,
		Role:         models.TPRole(tier),
	}
}

func slOrder(id string, qty, trigger float64) models.OrderRecord {
	o := tpOrder(id, 1, qty, trigger)
	o.Role = models.RoleSL
	return o
}

func placedQtyByRole(plan models.RebalancePlan) map[models.OrderRole]float64 {
	out := map[models.OrderRole]float64{}
	for _, s := range plan.Place {
		out[s.Role] = s.Qty
	}
	return out
}

func TestBuildPlanFirstLadderConservative(t *testing.T) {
	pos := longPosition(1, 42000)
	policy := models.PolicyFor(models.ApproachConservative)

	plan := BuildPlan(pos, nil, policy, conservativeTargets(), testMeta, testQtyTol)

	require.Empty(t, plan.Cancel)
	require.Len(t, plan.Place, 5) // 4 тейка + стоп

	qty := placedQtyByRole(plan)
	assert.InDelta(t, 0.85, qty[models.RoleTP1], 1e-9)
	assert.InDelta(t, 0.05, qty[models.RoleTP2], 1e-9)
	assert.InDelta(t, 0.05, qty[models.RoleTP3], 1e-9)
	assert.InDelta(t, 0.05, qty[models.RoleTP4], 1e-9)
	assert.InDelta(t, 1.0, qty[models.RoleSL], 1e-9)

	// сумма тейков равна размеру позиции
	sum := qty[models.RoleTP1] + qty[models.RoleTP2] + qty[models.RoleTP3] + qty[models.RoleTP4]
	assert.InDelta(t, pos.Size, sum, testMeta.QtyStep)

	// все выходы — условные закрывающие на сторону шорта
	for _, s := range plan.Place {
		assert.Equal(t, models.SideShort, s.Side)
		assert.True(t, s.ReduceOnly)
		assert.Greater(t, s.TriggerPrice, 0.0)
	}
}

func TestBuildPlanFirstLadderFast(t *testing.T) {
	pos := longPosition(0.5, 42000)
	policy := models.PolicyFor(models.ApproachFast)
	targets := Targets{TPPrices: []float64{43000}, SLPrice: 40000}

	plan := BuildPlan(pos, nil, policy, targets, testMeta, testQtyTol)

	require.Len(t, plan.Place, 2)
	qty := placedQtyByRole(plan)
	assert.InDelta(t, 0.5, qty[models.RoleTP1], 1e-9)
	assert.InDelta(t, 0.5, qty[models.RoleSL], 1e-9)
}

func TestBuildPlanShortFirstLadderKeepsPrimaryDominant(t *testing.T) {
	// консервативная заявка всего с двумя тейками: основной уровень
	// всё равно забирает львиную долю, не половину
	pos := longPosition(1, 42000)
	policy := models.PolicyFor(models.ApproachConservative)
	targets := Targets{TPPrices: []float64{43000, 43500}, SLPrice: 40000}

	plan := BuildPlan(pos, nil, policy, targets, testMeta, testQtyTol)

	require.Len(t, plan.Place, 3) // 2 тейка + стоп
	qty := placedQtyByRole(plan)
	assert.InDelta(t, 0.944, qty[models.RoleTP1], 1e-9) // 0.85/0.90 с округлением до шага
	assert.InDelta(t, 0.056, qty[models.RoleTP2], 1e-9)
	assert.Greater(t, qty[models.RoleTP1], qty[models.RoleTP2])
	assert.InDelta(t, pos.Size, qty[models.RoleTP1]+qty[models.RoleTP2], testMeta.QtyStep)
	assert.InDelta(t, 1.0, qty[models.RoleSL], 1e-9)
}

func TestBuildPlanIdempotentOnMatchingLadder(t *testing.T) {
	pos := longPosition(1, 42000)
	policy := models.PolicyFor(models.ApproachConservative)

	orders := []models.OrderRecord{
		tpOrder("tp1", 1, 0.85, 43000),
		tpOrder("tp2", 2, 0.05, 43500),
		tpOrder("tp3", 3, 0.05, 44000),
		tpOrder("tp4", 4, 0.05, 44500),
		slOrder("sl", 1, 40000),
	}

	plan := BuildPlan(pos, orders, policy, conservativeTargets(), testMeta, testQtyTol)
	assert.True(t, plan.Empty(), "повторный проход по неизменившемуся снимку обязан быть пустым")
}

func TestBuildPlanEqualSplitAfterPrimaryTP(t *testing.T) {
	// tp1 (85%) снялся: осталось 0.15 позиции и три хвостовых тейка по 0.05.
	// Остаток делится поровну, по 0.05 каждый уже стоит — но позиция 0.15,
	// поровну это 0.05, значит план пуст.
	pos := longPosition(0.15, 42000)
	policy := models.PolicyFor(models.ApproachConservative)

	orders := []models.OrderRecord{
		tpOrder("tp2", 2, 0.05, 43500),
		tpOrder("tp3", 3, 0.05, 44000),
		tpOrder("tp4", 4, 0.05, 44500),
		slOrder("sl", 0.15, 40000),
	}
	plan := BuildPlan(pos, orders, policy, conservativeTargets(), testMeta, testQtyTol)
	assert.True(t, plan.Empty())
}

func TestBuildPlanResizesStaleLadder(t *testing.T) {
	// Частичный вход: позиция выросла до 0.66, а лесенка стоит от 0.33.
	pos := longPosition(0.66, 42000)
	policy := models.PolicyFor(models.ApproachConservative)

	orders := []models.OrderRecord{
		tpOrder("tp1", 1, 0.28, 43000),
		tpOrder("tp2", 2, 0.016, 43500),
		tpOrder("tp3", 3, 0.016, 44000),
		tpOrder("tp4", 4, 0.016, 44500),
		slOrder("sl", 0.33, 40000),
	}
	plan := BuildPlan(pos, orders, policy, conservativeTargets(), testMeta, testQtyTol)

	require.Len(t, plan.Cancel, 5)
	require.Len(t, plan.Place, 5)

	qty := placedQtyByRole(plan)
	assert.InDelta(t, 0.561, qty[models.RoleTP1], 1e-9) // 0.66*0.85
	assert.InDelta(t, 0.66, qty[models.RoleSL], 1e-9)

	sum := qty[models.RoleTP1] + qty[models.RoleTP2] + qty[models.RoleTP3] + qty[models.RoleTP4]
	assert.InDelta(t, pos.Size, sum, 4*testMeta.QtyStep)

	// замены встают на цены старых ордеров, не на цены заявки
	for _, s := range plan.Place {
		if s.Role == models.RoleTP1 {
			assert.Equal(t, 43000.0, s.TriggerPrice)
		}
	}
}

func TestBuildPlanReplacesMissingSL(t *testing.T) {
	pos := longPosition(0.15, 42000)
	policy := models.PolicyFor(models.ApproachConservative)

	orders := []models.OrderRecord{
		tpOrder("tp2", 2, 0.05, 43500),
		tpOrder("tp3", 3, 0.05, 44000),
		tpOrder("tp4", 4, 0.05, 44500),
	}
	plan := BuildPlan(pos, orders, policy, conservativeTargets(), testMeta, testQtyTol)

	require.Empty(t, plan.Cancel)
	require.Len(t, plan.Place, 1)
	assert.Equal(t, models.RoleSL, plan.Place[0].Role)
	assert.Equal(t, 40000.0, plan.Place[0].TriggerPrice)
	assert.InDelta(t, 0.15, plan.Place[0].Qty, 1e-9)
}

func TestBuildPlanLeavesUnknownAndEntries(t *testing.T) {
	pos := longPosition(1, 42000)
	policy := models.PolicyFor(models.ApproachConservative)

	unknown := models.OrderRecord{
		OrderID: "alien",
		Symbol:  "BTCUSDT",
		Side:    models.SideShort,
		Type:    "Limit",
		Qty:     0.3,
		Price:   43300,
		Status:  models.OrderStatusNew,
		Role:    models.RoleUnknown,
	}
	entry := models.OrderRecord{
		OrderID: "e2",
		Symbol:  "BTCUSDT",
		Side:    models.SideLong,
		Type:    "Limit",
		Qty:     0.5,
		Price:   41500,
		Status:  models.OrderStatusNew,
		Role:    models.RoleEntry,
	}
	orders := []models.OrderRecord{
		unknown, entry,
		tpOrder("tp1", 1, 0.85, 43000),
		tpOrder("tp2", 2, 0.05, 43500),
		tpOrder("tp3", 3, 0.05, 44000),
		tpOrder("tp4", 4, 0.05, 44500),
		slOrder("sl", 1, 40000),
	}
	plan := BuildPlan(pos, orders, policy, conservativeTargets(), testMeta, testQtyTol)

	for _, c := range plan.Cancel {
		assert.NotEqual(t, "alien", c.OrderID)
		assert.NotEqual(t, "e2", c.OrderID)
	}
	assert.True(t, plan.Empty())
}

func TestBuildPlanSkipsDustTier(t *testing.T) {
	// 5% уровень меньше минимального лота: не размещаем и не отменяем.
	meta := models.InstrumentMeta{TickSize: 0.5, QtyStep: 0.01, MinQty: 0.01}
	pos := longPosition(0.1, 42000)
	policy := models.PolicyFor(models.ApproachConservative)

	plan := BuildPlan(pos, nil, policy, conservativeTargets(), meta, testQtyTol)

	qty := placedQtyByRole(plan)
	_, hasTP2 := qty[models.RoleTP2]
	_, hasTP3 := qty[models.RoleTP3]
	assert.False(t, hasTP2)
	assert.False(t, hasTP3)
	assert.Contains(t, qty, models.RoleTP1)
	assert.Contains(t, qty, models.RoleSL)
}

func TestBuildPlanFlatPositionIsNoop(t *testing.T) {
	pos := longPosition(0, 0)
	policy := models.PolicyFor(models.ApproachFast)
	plan := BuildPlan(pos, nil, policy, conservativeTargets(), testMeta, testQtyTol)
	assert.True(t, plan.Empty())
}
