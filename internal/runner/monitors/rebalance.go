package monitors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
)

// Targets — желаемые цены выходов. Для живых ордеров цена всегда берётся
// из самого ордера; таргеты нужны только для уровней, которых на бирже нет.
type Targets struct {
	TPPrices []float64 // индекс 0 = tp1
	SLPrice  float64
}

func (t Targets) tpPrice(tier int) float64 {
	if tier >= 1 && tier <= len(t.TPPrices) {
		return t.TPPrices[tier-1]
	}
	return 0
}

// BuildPlan сравнивает желаемую раскладку выходов с фактическими ордерами
// и возвращает минимальный cancel/replace план.
//
// Инварианты, которые план обязан держать:
//   - сумма тейков по открытым уровням равна текущему размеру позиции
//     (с точностью до шага лота);
//   - стоп всегда на 100% позиции;
//   - цены живых ордеров не трогаются, меняются только количества;
//   - ордера с ролью Unknown и входы не трогаются вовсе.
//
// Повторный вызов на неизменившемся снимке обязан дать пустой план.
func BuildPlan(
	pos models.Position,
	classified []models.OrderRecord,
	policy models.ApproachPolicy,
	targets Targets,
	meta models.InstrumentMeta,
	qtyTol float64,
) models.RebalancePlan {
	var plan models.RebalancePlan
	if !pos.IsOpen() {
		return plan
	}

	existingTP := map[int]models.OrderRecord{}
	var existingSL *models.OrderRecord
	for i := range classified {
		o := classified[i]
		if !o.Status.IsLive() {
			continue
		}
		if t, ok := o.Role.TPTier(); ok {
			existingTP[t] = o
		}
		if o.Role == models.RoleSL {
			sl := o
			existingSL = &sl
		}
	}

	openTiers := openTierSet(existingTP, policy, targets)
	shares := policy.SplitFor(openTiers)
	exitSide := pos.Side.Opposite()

	// Количества раздаются последовательно, последний уровень забирает
	// остаток: так сумма сходится с размером позиции несмотря на округления.
	allocated := 0.0
	for idx, tier := range openTiers {
		var q float64
		if idx == len(openTiers)-1 {
			q = pos.Size - allocated
		} else {
			q = pos.Size * shares[tier]
		}
		q = helper.RoundToStep(q, meta.QtyStep)

		ex, has := existingTP[tier]
		if q < meta.MinQty || q <= 0 {
			// Уровень слишком мелкий для лота. Существующий ордер не
			// трогаем: отменить без валидной замены хуже, чем оставить.
			if has {
				allocated += ex.Qty
			}
			continue
		}

		if has {
			if helper.WithinTolerance(ex.Qty, q, qtyTol) {
				allocated += ex.Qty
				continue
			}
			plan.Cancel = append(plan.Cancel, ex)
			plan.Place = append(plan.Place, ExitSpec(pos.Symbol, exitSide, models.TPRole(tier), q, ex.ExitPrice()))
			allocated += q
			continue
		}

		price := targets.tpPrice(tier)
		if price <= 0 {
			continue
		}
		plan.Place = append(plan.Place, ExitSpec(pos.Symbol, exitSide, models.TPRole(tier), q, price))
		allocated += q
	}

	slQty := helper.RoundToStep(pos.Size, meta.QtyStep)
	if slQty < meta.MinQty {
		slQty = pos.Size
	}
	switch {
	case existingSL != nil:
		if !helper.WithinTolerance(existingSL.Qty, slQty, qtyTol) {
			plan.Cancel = append(plan.Cancel, *existingSL)
			plan.Place = append(plan.Place, ExitSpec(pos.Symbol, exitSide, models.RoleSL, slQty, existingSL.ExitPrice()))
		}
	case targets.SLPrice > 0:
		plan.Place = append(plan.Place, ExitSpec(pos.Symbol, exitSide, models.RoleSL, slQty, targets.SLPrice))
	}

	return plan
}

// openTierSet — уровни, которые должны быть заняты тейками. Пока тейков на
// бирже нет (первая лесенка), берутся все уровни подхода с известной ценой;
// дальше — ровно те, что ещё живы: снятый уровень назад не возвращается.
func openTierSet(existingTP map[int]models.OrderRecord, policy models.ApproachPolicy, targets Targets) []int {
	var tiers []int
	if len(existingTP) > 0 {
		for t := range existingTP {
			tiers = append(tiers, t)
		}
	} else {
		for t := 1; t <= policy.Tiers(); t++ {
			if targets.tpPrice(t) > 0 {
				tiers = append(tiers, t)
			}
		}
	}
	sort.Ints(tiers)
	return tiers
}

// ExitSpec — условный закрывающий ордер уровня (тейк или стоп).
func ExitSpec(symbol string, side models.Side, role models.OrderRole, qty, trigger float64) models.OrderSpec {
	return models.OrderSpec{
		Symbol:       symbol,
		Side:         side,
		OrderType:    "Market",
		Qty:          qty,
		TriggerPrice: trigger,
		ReduceOnly:   true,
		LinkID:       NewLinkID(symbol, role),
		Role:         role,
	}
}

// NewLinkID — метка ордера, по которой классификатор потом восстановит роль.
func NewLinkID(symbol string, role models.OrderRole) string {
	return fmt.Sprintf("bb-%s-%s-%d", symbol, role, time.Now().UnixNano()%1_000_000_000)
}

// CancelVerify — параметры подтверждения отмены перед заменой.
type CancelVerify struct {
	Tries int
	Gap   time.Duration
}

// ApplyPlan исполняет план. Отмена каждого уровня подтверждается опросом
// ордера до размещения замены: иначе на бирже может повиснуть двойной выход.
// Если отмена не подтвердилась, замена уровня пропускается, старый ордер
// остаётся жить; следующий цикл попробует снова.
func ApplyPlan(ctx context.Context, gw ExchangeGateway, plan models.RebalancePlan, v CancelVerify) error {
	replacements := map[models.OrderRole]models.OrderSpec{}
	var standalone []models.OrderSpec
	for _, spec := range plan.Place {
		if hasCancelFor(plan.Cancel, spec.Role) {
			replacements[spec.Role] = spec
			continue
		}
		standalone = append(standalone, spec)
	}

	var errs []error
	for _, old := range plan.Cancel {
		gone, err := gw.CancelOrder(ctx, old.Symbol, old.OrderID)
		if err != nil {
			errs = append(errs, fmt.Errorf("cancel %s %s: %w", old.Role, old.OrderID, err))
			continue
		}
		if !gone && !cancelConfirmed(ctx, gw, old, v) {
			errs = append(errs, fmt.Errorf("cancel %s %s: not confirmed", old.Role, old.OrderID))
			continue
		}
		spec, ok := replacements[old.Role]
		if !ok {
			continue
		}
		if _, err := gw.PlaceOrder(ctx, spec); err != nil {
			errs = append(errs, fmt.Errorf("place %s: %w", spec.Role, err))
		}
	}

	for _, spec := range standalone {
		if _, err := gw.PlaceOrder(ctx, spec); err != nil {
			errs = append(errs, fmt.Errorf("place %s: %w", spec.Role, err))
		}
	}
	return errors.Join(errs...)
}

func hasCancelFor(cancels []models.OrderRecord, role models.OrderRole) bool {
	for _, c := range cancels {
		if c.Role == role {
			return true
		}
	}
	return false
}

func cancelConfirmed(ctx context.Context, gw ExchangeGateway, old models.OrderRecord, v CancelVerify) bool {
	tries := v.Tries
	if tries < 1 {
		tries = 1
	}
	for i := 0; i < tries; i++ {
		rec, err := gw.GetOrder(ctx, old.Symbol, old.OrderID)
		if err == nil && !rec.Status.IsLive() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(v.Gap):
		}
	}
	return false
}
