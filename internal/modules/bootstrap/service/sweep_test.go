package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bybit_bot/internal/models"
)

func exitRecord(role models.OrderRole, trigger float64) models.OrderRecord {
	return models.OrderRecord{
		OrderID:      string(role),
		Symbol:       "BTCUSDT",
		Side:         models.SideShort,
		Type:         "Market",
		ReduceOnly:   true,
		Qty:          0.1,
		TriggerPrice: trigger,
		Status:       models.OrderStatusUntriggered,
		Role:         role,
	}
}

func TestInferSetupConservative(t *testing.T) {
	// уровни вперемешку: цели должны выйти отсортированными по уровню
	classified := []models.OrderRecord{
		exitRecord(models.RoleTP3, 44000),
		exitRecord(models.RoleTP1, 43000),
		exitRecord(models.RoleSL, 40000),
		exitRecord(models.RoleTP2, 43500),
	}

	approach, tps, sl := inferSetup(classified)
	assert.Equal(t, models.ApproachConservative, approach)
	assert.Equal(t, []float64{43000, 43500, 44000}, tps)
	assert.Equal(t, 40000.0, sl)
}

func TestInferSetupFast(t *testing.T) {
	classified := []models.OrderRecord{
		exitRecord(models.RoleTP1, 43000),
		exitRecord(models.RoleSL, 40000),
	}

	approach, tps, sl := inferSetup(classified)
	assert.Equal(t, models.ApproachFast, approach)
	assert.Equal(t, []float64{43000}, tps)
	assert.Equal(t, 40000.0, sl)
}

func TestInferSetupIgnoresDeadAndUnknown(t *testing.T) {
	dead := exitRecord(models.RoleTP2, 43500)
	dead.Status = models.OrderStatusCancelled
	alien := exitRecord(models.RoleUnknown, 43300)

	classified := []models.OrderRecord{
		exitRecord(models.RoleTP1, 43000),
		dead,
		alien,
	}

	approach, tps, sl := inferSetup(classified)
	assert.Equal(t, models.ApproachFast, approach)
	assert.Equal(t, []float64{43000}, tps)
	assert.Equal(t, 0.0, sl)
}

func TestInferSetupNoOrders(t *testing.T) {
	// голая позиция без единого выхода: быстрый подход, целей нет.
	// Монитор такой позиции только сторожит TTL и закрытие.
	approach, tps, sl := inferSetup(nil)
	assert.Equal(t, models.ApproachFast, approach)
	assert.Empty(t, tps)
	assert.Equal(t, 0.0, sl)
}
