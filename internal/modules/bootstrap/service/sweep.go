package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/opentracing/opentracing-go"

	"bybit_bot/internal/models"
	"bybit_bot/internal/modules/config"
	"bybit_bot/internal/runner"
	"bybit_bot/internal/runner/monitors"
	"bybit_bot/pkg/logger"
)

// Sweeper — примиряющий свип на старте: находит на обоих аккаунтах позиции
// без монитора, восстанавливает по их ордерам подход и цели и отдаёт
// менеджеру. Падение процесса ничего не теряет: биржа и есть источник истины.
type Sweeper struct {
	gws     map[models.Account]monitors.ExchangeGateway
	manager *runner.Manager
	chatID  int64

	// ограничитель параллелизма, чтобы не словить rate limit
	sem chan struct{}
}

func NewSweeper(cfg *config.Config, gws map[models.Account]monitors.ExchangeGateway, manager *runner.Manager) *Sweeper {
	return &Sweeper{
		gws:     gws,
		manager: manager,
		chatID:  cfg.Telegram.ChatID,
		sem:     make(chan struct{}, 4),
	}
}

// Sweep обходит позиции аккаунтов и заводит мониторы на осиротевшие.
// Уже зарегистрированные ключи Ensure молча пропускает, поэтому гонка
// со свежими заявками безопасна.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "bootstrap.sweep")
	defer span.Finish()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		adopted  int
		firstErr error
	)

	for account, gw := range s.gws {
		positions, err := gw.GetPositions(ctx)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("sweep %s: %w", account, err)
			}
			mu.Unlock()
			continue
		}

		for _, pos := range positions {
			pos := pos
			gw := gw
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.sem <- struct{}{}
				defer func() { <-s.sem }()

				ok, err := s.adopt(ctx, gw, pos)
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				if ok {
					adopted++
				}
				mu.Unlock()
			}()
		}
	}
	wg.Wait()

	return adopted, firstErr
}

func (s *Sweeper) adopt(ctx context.Context, gw monitors.ExchangeGateway, pos models.Position) (bool, error) {
	orders, err := gw.GetOpenOrders(ctx, pos.Symbol)
	if err != nil {
		return false, fmt.Errorf("sweep %s %s: %w", gw.Account(), pos.Symbol, err)
	}
	classified := monitors.ClassifyOrders(orders, pos)

	approach, tps, sl := inferSetup(classified)
	key := models.MonitorKey{Account: gw.Account(), Symbol: pos.Symbol, Approach: approach}

	chatID := int64(0)
	if gw.Account() == models.AccountPrimary {
		chatID = s.chatID
	}

	started := s.manager.Ensure(runner.Seed{
		Key:         key,
		ChatID:      chatID,
		Side:        pos.Side,
		TakeProfits: tps,
		StopLoss:    sl,
		FilledSize:  pos.Size,
	})
	if started {
		logger.Info("sweep: adopted %s (%d orders, %d tps)", key, len(classified), len(tps))
	}
	return started, nil
}

// inferSetup восстанавливает подход и цели по живым ордерам: не больше
// одного тейк-подобного ордера — быстрый подход, иначе консервативный.
func inferSetup(classified []models.OrderRecord) (models.Approach, []float64, float64) {
	tpPrices := map[int]float64{}
	sl := 0.0
	for _, o := range classified {
		if !o.Status.IsLive() {
			continue
		}
		if tier, ok := o.Role.TPTier(); ok {
			tpPrices[tier] = o.ExitPrice()
		}
		if o.Role == models.RoleSL {
			sl = o.ExitPrice()
		}
	}

	approach := models.ApproachConservative
	if len(tpPrices) <= 1 {
		approach = models.ApproachFast
	}

	tiers := make([]int, 0, len(tpPrices))
	for t := range tpPrices {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)

	var tps []float64
	for _, t := range tiers {
		tps = append(tps, tpPrices[t])
	}
	return approach, tps, sl
}
