package runner

import (
	"context"
	"sort"
	"sync"
	"time"

	"bybit_bot/internal/models"
	"bybit_bot/internal/modules/config"
	"bybit_bot/internal/runner/monitors"
	"bybit_bot/pkg/logger"
)

// Seed — всё, что нужно для запуска нового монитора. FilledSize
// ненулевой у позиций, подобранных свипом: их наливы уже случились,
// дублировать уведомления о входах не нужно.
type Seed struct {
	Key         models.MonitorKey
	ChatID      int64
	Side        models.Side
	TakeProfits []float64
	StopLoss    float64
	FilledSize  float64
}

// Manager — единственный реестр мониторов. Любой запуск и остановка
// монитора проходят через него; по одному ключу (аккаунт, символ, подход)
// живёт не больше одного цикла.
type Manager struct {
	gws     map[models.Account]monitors.ExchangeGateway
	store   monitors.StateSink
	history monitors.HistorySink
	mcfg    monitors.Config

	mu       sync.Mutex
	notifier monitors.Notifier
	mons     map[models.MonitorKey]*monitors.Monitor
	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewManager(
	cfg *config.Config,
	gws map[models.Account]monitors.ExchangeGateway,
	store monitors.StateSink,
	history monitors.HistorySink,
) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		gws:     gws,
		store:   store,
		history: history,
		mcfg:    MonitorConfig(cfg),
		mons:    map[models.MonitorKey]*monitors.Monitor{},
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// SetNotifier навешивается после сборки графа: нотификатор сам зависит
// от менеджера, напрямую в конструктор его не передать.
func (m *Manager) SetNotifier(n monitors.Notifier) {
	m.mu.Lock()
	m.notifier = n
	m.mu.Unlock()
}

// MonitorConfig — тайминги цикла из торговых настроек.
func MonitorConfig(cfg *config.Config) monitors.Config {
	return monitors.Config{
		PollInterval:    cfg.Trading.PollInterval,
		TTL:             cfg.Trading.MonitorTTL,
		QtyTolerance:    cfg.Trading.QtyTolerance,
		RoundTripFee:    cfg.Trading.RoundTripFee,
		BEExtraTicks:    cfg.Trading.BEExtraTicks,
		CancelVerifyTry: cfg.Trading.CancelVerifyTry,
		CancelVerifyGap: cfg.Trading.CancelVerifyGap,
	}
}

// Ensure запускает монитор, если его ещё нет. Повторный вызов по тому же
// ключу — no-op: идемпотентность здесь и закрывает гонку «заявка пришла,
// пока свип ещё шёл».
func (m *Manager) Ensure(seed Seed) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mons[seed.Key]; ok {
		return false
	}
	gw, ok := m.gws[seed.Key.Account]
	if !ok {
		logger.Error("manager: no gateway for account %s", seed.Key.Account)
		return false
	}

	st := &models.MonitorState{
		Key:         seed.Key,
		ChatID:      seed.ChatID,
		Side:        seed.Side,
		TakeProfits: append([]float64(nil), seed.TakeProfits...),
		StopLoss:    seed.StopLoss,
		FilledSize:  seed.FilledSize,
		StartedAt:   time.Now(),
	}
	m.startLocked(st, gw)
	return true
}

// Restore поднимает мониторы из снапшота прошлого запуска. Дедлайны
// сохраняются: рестарт процесса не продлевает наблюдение.
func (m *Manager) Restore(states []models.MonitorState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range states {
		st := states[i]
		if _, ok := m.mons[st.Key]; ok {
			continue
		}
		gw, ok := m.gws[st.Key.Account]
		if !ok {
			continue
		}
		m.startLocked(&st, gw)
	}
}

func (m *Manager) startLocked(st *models.MonitorState, gw monitors.ExchangeGateway) {
	var notifier monitors.Notifier
	if st.Key.Account == models.AccountPrimary {
		notifier = m.notifier
	}

	mon := monitors.New(st, gw, notifier, m.store, m.history, m.mcfg, m.forget)
	m.mons[st.Key] = mon
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		mon.Run(m.baseCtx)
	}()
}

// forget вызывается самим монитором на выходе из цикла.
func (m *Manager) forget(key models.MonitorKey) {
	m.mu.Lock()
	delete(m.mons, key)
	m.mu.Unlock()
	if m.store != nil {
		m.store.RemoveMonitor(key)
	}
	logger.Info("manager: monitor %s removed", key)
}

// Get — живой монитор по ключу, для слияния целей.
func (m *Manager) Get(key models.MonitorKey) (*monitors.Monitor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mon, ok := m.mons[key]
	return mon, ok
}

// Stop останавливает монитор, не трогая ордера на бирже.
func (m *Manager) Stop(key models.MonitorKey) bool {
	m.mu.Lock()
	mon, ok := m.mons[key]
	m.mu.Unlock()
	if ok {
		mon.Stop()
	}
	return ok
}

// StopBySymbol останавливает все мониторы символа на аккаунте.
func (m *Manager) StopBySymbol(account models.Account, symbol string) int {
	n := 0
	for _, st := range m.States() {
		if st.Key.Account == account && st.Key.Symbol == symbol && m.Stop(st.Key) {
			n++
		}
	}
	return n
}

// States — снимки состояний всех живых мониторов, отсортированные по ключу.
func (m *Manager) States() []models.MonitorState {
	m.mu.Lock()
	mons := make([]*monitors.Monitor, 0, len(m.mons))
	for _, mon := range m.mons {
		mons = append(mons, mon)
	}
	m.mu.Unlock()

	out := make([]models.MonitorState, 0, len(mons))
	for _, mon := range mons {
		out = append(out, mon.StateCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// Symbols — символы под наблюдением, для подписки тикер-стрима.
func (m *Manager) Symbols() []string {
	seen := map[string]bool{}
	var out []string
	for _, st := range m.States() {
		if !seen[st.Key.Symbol] {
			seen[st.Key.Symbol] = true
			out = append(out, st.Key.Symbol)
		}
	}
	return out
}

// StopAll гасит все мониторы и ждёт выхода их горутин.
func (m *Manager) StopAll() {
	m.cancel()
	m.wg.Wait()
}
