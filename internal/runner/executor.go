package runner

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
	"bybit_bot/internal/modules/config"
	"bybit_bot/internal/runner/monitors"
	"bybit_bot/pkg/logger"
)

// Executor исполняет подтверждённую заявку: плечо, входы, для быстрого
// подхода сразу тейк и стоп, затем передаёт символ под наблюдение менеджеру.
// Основной аккаунт и зеркальный проходят один и тот же путь, зеркальный —
// с уменьшенной маржой и молча: его ошибки не ходят в чат.
type Executor struct {
	manager *Manager
	gws     map[models.Account]monitors.ExchangeGateway
	trading config.Trading
}

func NewExecutor(cfg *config.Config, gws map[models.Account]monitors.ExchangeGateway, manager *Manager) *Executor {
	return &Executor{
		manager: manager,
		gws:     gws,
		trading: cfg.Trading,
	}
}

// ExecResult — итог исполнения на одном аккаунте.
type ExecResult struct {
	Account models.Account
	Merged  bool
	Placed  []models.OrderRecord
}

// Execute — вход заявки в ядро. Ошибка основного аккаунта возвращается
// вызывающему; зеркальный аккаунт отрабатывает best effort.
func (e *Executor) Execute(ctx context.Context, chatID int64, req *models.TradeRequest) ([]ExecResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "executor.execute")
	span.SetTag("symbol", req.Symbol)
	defer span.Finish()

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}

	primary, ok := e.gws[models.AccountPrimary]
	if !ok {
		return nil, fmt.Errorf("Execute: primary gateway not configured")
	}

	res, err := e.executeOn(ctx, primary, req, req.MarginUSDT, chatID)
	if err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}
	results := []ExecResult{res}

	if mirror, ok := e.gws[models.AccountMirror]; ok && e.trading.MirrorRatio > 0 {
		mres, merr := e.executeOn(ctx, mirror, req, req.MarginUSDT*e.trading.MirrorRatio, 0)
		if merr != nil {
			logger.Error("executor: mirror %s: %v", req.Symbol, merr)
		} else {
			results = append(results, mres)
		}
	}
	return results, nil
}

func (e *Executor) executeOn(
	ctx context.Context,
	gw monitors.ExchangeGateway,
	req *models.TradeRequest,
	margin float64,
	chatID int64,
) (ExecResult, error) {
	account := gw.Account()
	res := ExecResult{Account: account}

	meta, err := gw.GetInstrumentMeta(ctx, req.Symbol)
	if err != nil {
		return res, err
	}
	if err := gw.SetLeverage(ctx, req.Symbol, req.Leverage); err != nil {
		return res, err
	}

	pos, err := gw.GetPosition(ctx, req.Symbol)
	if err != nil {
		return res, err
	}
	if pos.IsOpen() && pos.Side != req.Side {
		return res, fmt.Errorf("executeOn: %s уже открыта %s позиция, встречную заявку не исполняем", req.Symbol, pos.Side)
	}
	res.Merged = pos.IsOpen()

	// Номинал делится по цене ближнего входа; для рыночного входа это
	// консервативная оценка количества.
	totalQty := helper.RoundToStep(margin*float64(req.Leverage)/req.Entries[0], meta.QtyStep)
	if totalQty < meta.MinQty {
		return res, fmt.Errorf("executeOn: размер %s меньше минимального лота %s",
			helper.FormatQty(totalQty), helper.FormatQty(meta.MinQty))
	}

	placed, err := e.placeEntries(ctx, gw, req, totalQty, meta)
	if err != nil {
		return res, err
	}
	res.Placed = placed

	// Быстрый подход на свежей позиции получает выходы сразу, не дожидаясь
	// первого цикла монитора. Консервативный ждёт первого налива.
	if req.Approach == models.ApproachFast && !res.Merged {
		exitSide := req.Side.Opposite()
		for _, spec := range []models.OrderSpec{
			monitors.ExitSpec(req.Symbol, exitSide, models.TPRole(1), totalQty, req.TakeProfits[0]),
			monitors.ExitSpec(req.Symbol, exitSide, models.RoleSL, totalQty, req.StopLoss),
		} {
			rec, err := gw.PlaceOrder(ctx, spec)
			if err != nil {
				return res, err
			}
			res.Placed = append(res.Placed, rec)
		}
	}

	key := models.MonitorKey{Account: account, Symbol: req.Symbol, Approach: req.Approach}
	e.manager.Ensure(Seed{
		Key:         key,
		ChatID:      chatID,
		Side:        req.Side,
		TakeProfits: req.TakeProfits,
		StopLoss:    req.StopLoss,
	})
	if res.Merged {
		if mon, ok := e.manager.Get(key); ok {
			mon.MergeTargets(monitors.Targets{TPPrices: req.TakeProfits, SLPrice: req.StopLoss})
		}
	}
	return res, nil
}

// placeEntries размещает входы: один рыночный у быстрого подхода,
// до трёх лимитных у консервативного. Последний лимитный забирает
// остаток количества после округлений.
func (e *Executor) placeEntries(
	ctx context.Context,
	gw monitors.ExchangeGateway,
	req *models.TradeRequest,
	totalQty float64,
	meta models.InstrumentMeta,
) ([]models.OrderRecord, error) {
	if req.Approach == models.ApproachFast {
		rec, err := gw.PlaceOrder(ctx, models.OrderSpec{
			Symbol:    req.Symbol,
			Side:      req.Side,
			OrderType: "Market",
			Qty:       totalQty,
			LinkID:    monitors.NewLinkID(req.Symbol, models.RoleEntry),
			Role:      models.RoleEntry,
		})
		if err != nil {
			return nil, err
		}
		return []models.OrderRecord{rec}, nil
	}

	var placed []models.OrderRecord
	per := helper.RoundToStep(totalQty/float64(len(req.Entries)), meta.QtyStep)
	allocated := 0.0
	for i, price := range req.Entries {
		q := per
		if i == len(req.Entries)-1 {
			q = helper.RoundToStep(totalQty-allocated, meta.QtyStep)
		}
		if q < meta.MinQty {
			continue
		}
		rec, err := gw.PlaceOrder(ctx, models.OrderSpec{
			Symbol:    req.Symbol,
			Side:      req.Side,
			OrderType: "Limit",
			Qty:       q,
			Price:     price,
			LinkID:    monitors.NewLinkID(req.Symbol, models.RoleEntry),
			Role:      models.RoleEntry,
		})
		if err != nil {
			return placed, err
		}
		placed = append(placed, rec)
		allocated += q
	}
	if len(placed) == 0 {
		return nil, fmt.Errorf("placeEntries: ни один вход не прошёл по минимальному лоту")
	}
	return placed, nil
}
