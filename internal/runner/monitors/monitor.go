package monitors

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/models"
	"bybit_bot/pkg/logger"
)

// Config — тайминги и допуски цикла наблюдения.
type Config struct {
	PollInterval    time.Duration
	TTL             time.Duration
	QtyTolerance    float64
	RoundTripFee    float64
	BEExtraTicks    int
	CancelVerifyTry int
	CancelVerifyGap time.Duration
}

// Monitor — цикл наблюдения за одной связкой (аккаунт, символ, подход).
// Владеет своим MonitorState единолично; снаружи разрешено только
// MergeTargets/Stop. Любая ошибка цикла логируется и не роняет цикл:
// следующий опрос начинает с чистого снимка биржи.
type Monitor struct {
	key      models.MonitorKey
	gw       ExchangeGateway
	notifier Notifier // nil у зеркального аккаунта
	store    StateSink
	history  HistorySink
	policy   models.ApproachPolicy
	cfg      Config
	onExit   func(models.MonitorKey)

	mu      sync.Mutex
	state   *models.MonitorState
	merged  *Targets
	cancel  context.CancelFunc
	meta    models.InstrumentMeta
	stopped bool
}

func New(
	state *models.MonitorState,
	gw ExchangeGateway,
	notifier Notifier,
	store StateSink,
	history HistorySink,
	cfg Config,
	onExit func(models.MonitorKey),
) *Monitor {
	if state.StartedAt.IsZero() {
		state.StartedAt = time.Now()
	}
	if state.Deadline.IsZero() {
		state.Deadline = state.StartedAt.Add(cfg.TTL)
	}
	return &Monitor{
		key:      state.Key,
		gw:       gw,
		notifier: notifier,
		store:    store,
		history:  history,
		policy:   models.PolicyFor(state.Key.Approach),
		cfg:      cfg,
		onExit:   onExit,
		state:    state,
	}
}

func (m *Monitor) Key() models.MonitorKey { return m.key }

// StateCopy — снимок состояния для форматирования в чат.
func (m *Monitor) StateCopy() models.MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.state
}

// Stop просит цикл завершиться. Ордера на бирже не трогаются.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.cancel != nil {
		m.cancel()
	}
}

// MergeTargets вливает цели новой заявки по тому же символу и подходу.
// По каждому уровню берётся более агрессивный тейк, стоп — более
// консервативный. Ребаланс подхватится на ближайшем цикле.
func (m *Monitor) MergeTargets(t Targets) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merged = &t
}

// Run — блокирующий цикл наблюдения. Завершается по Stop, по TTL,
// по отмене контекста или по закрытию позиции.
func (m *Monitor) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		cancel()
		return
	}
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()
	defer func() {
		if m.onExit != nil {
			m.onExit(m.key)
		}
	}()

	logger.Info("monitor %s: started, deadline %s", m.key, m.state.Deadline.Format(time.RFC3339))

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if m.cycleGuarded(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			logger.Info("monitor %s: stopped", m.key)
			return
		case <-ticker.C:
		}
	}
}

// cycleGuarded — последний рубеж: паника одного цикла не должна убить
// ни монитор, ни процесс.
func (m *Monitor) cycleGuarded(ctx context.Context) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("monitor %s: panic in cycle: %v", m.key, r)
			done = false
		}
	}()
	return m.cycle(ctx)
}

func (m *Monitor) cycle(ctx context.Context) bool {
	span, ctx := opentracing.StartSpanFromContext(ctx, "monitor.cycle")
	span.SetTag("monitor", m.key.String())
	defer span.Finish()

	st := m.state

	if time.Now().After(st.Deadline) {
		m.alert(ctx, "⏳ %s %s: наблюдение истекло (%s), ордера оставлены как есть",
			m.key.Symbol, m.key.Approach, m.cfg.TTL)
		m.recordEvent(ctx, "expired", "")
		return true
	}

	if m.meta.TickSize <= 0 {
		meta, err := m.gw.GetInstrumentMeta(ctx, m.key.Symbol)
		if err != nil {
			logger.Error("monitor %s: instrument meta: %v", m.key, err)
			return false
		}
		m.meta = meta
	}

	snap, err := fetchSnapshot(ctx, m.gw, m.key.Symbol)
	if err != nil {
		logger.Error("monitor %s: snapshot: %v", m.key, err)
		return false
	}
	for _, o := range snap.Unknowns() {
		logger.Info("monitor %s: unclassified order %s (link=%q), not touching", m.key, o.OrderID, o.LinkID)
	}

	pos := snap.Position
	if !pos.IsOpen() {
		return m.handleFlat(ctx, snap)
	}

	eps := m.qtyEps()
	trigger := models.TriggerReason("")

	if pos.Size > st.FilledSize+eps {
		st.FilledSize = pos.Size // фиксируем до событий, чтобы не задвоить
		st.EntryFills++
		if st.MarkSeen(models.EventEntry(st.EntryFills)) {
			m.alert(ctx, "📥 %s %s: вход №%d исполнен, размер %s по %s",
				m.key.Symbol, m.key.Approach, st.EntryFills,
				helper.FormatQty(pos.Size), helper.FormatPrice(pos.AvgEntry))
			m.recordEvent(ctx, models.EventEntry(st.EntryFills), helper.FormatQty(pos.Size))
		}
		trigger = models.TriggerEntryFilled
	}

	tpNow := snap.TPByTier()
	shrank := pos.Size < st.FilledSize-eps
	for _, tier := range st.OpenTiers {
		if _, live := tpNow[tier]; live || !shrank {
			continue
		}
		if !st.MarkSeen(models.EventTP(tier)) {
			continue
		}
		m.alert(ctx, "🎯 %s %s: сработал тейк %d, осталось %s",
			m.key.Symbol, m.key.Approach, tier, helper.FormatQty(pos.Size))
		m.recordEvent(ctx, models.EventTP(tier), helper.FormatQty(pos.Size))
		trigger = models.TriggerTPHit
		if tier == m.policy.PrimaryTier() {
			snap = m.moveStopToBreakeven(ctx, snap)
		}
	}

	if t := m.takeMerged(); t != nil {
		m.mergeTargetsLocked(pos.Side, *t)
		trigger = models.TriggerPositionMerged
		m.alert(ctx, "➕ %s %s: позиция усилена новой заявкой, цели объединены", m.key.Symbol, m.key.Approach)
	}

	targets := Targets{TPPrices: st.TakeProfits, SLPrice: st.StopLoss}
	plan := BuildPlan(pos, snap.Orders, m.policy, targets, m.meta, m.cfg.QtyTolerance)
	if !plan.Empty() {
		firstLadder := len(tpNow) == 0 && countTPs(plan.Place) > 0 && !st.Seen(models.EventLadderPlaced)
		if err := ApplyPlan(ctx, m.gw, plan, CancelVerify{Tries: m.cfg.CancelVerifyTry, Gap: m.cfg.CancelVerifyGap}); err != nil {
			logger.Error("monitor %s: rebalance (%s): %v", m.key, trigger, err)
		} else {
			logger.Info("monitor %s: rebalance (%s): cancel=%d place=%d", m.key, trigger, len(plan.Cancel), len(plan.Place))
			if firstLadder && st.MarkSeen(models.EventLadderPlaced) {
				m.alert(ctx, "📐 %s %s: лесенка выходов размещена (%d тейков + стоп)",
					m.key.Symbol, m.key.Approach, countTPs(plan.Place))
				m.recordEvent(ctx, models.EventLadderPlaced, "")
			}
		}
	}

	st.FilledSize = pos.Size
	st.AvgEntry = pos.AvgEntry
	st.OpenTiers = liveTiersAfter(tpNow, plan)
	_, hasSL := snap.SL()
	st.HadSL = hasSL || hasPlaceRole(plan.Place, models.RoleSL)
	st.Cycles++
	m.persist()
	return false
}

// handleFlat — позиция закрыта или ещё не открыта.
func (m *Monitor) handleFlat(ctx context.Context, snap Snapshot) bool {
	st := m.state
	if st.FilledSize <= m.qtyEps() {
		// Ничего не наливалось: либо ждём лимитные входы, либо их сняли.
		// В обоих случаях просто дожидаемся исполнения или TTL.
		st.Cycles++
		m.persist()
		return false
	}

	// Была позиция — закрылась. Стоп жив, тейков нет — закрыло тейками;
	// стопа нет, тейки остались — закрыло стопом.
	_, slAlive := snap.SL()
	win := slAlive || !st.HadSL

	m.cancelLeftovers(ctx, snap)

	pnl := m.estimatePnL(win)
	if win {
		m.alert(ctx, "✅ %s %s: позиция закрыта по тейкам, ~%+.2f USDT", m.key.Symbol, m.key.Approach, pnl)
		m.recordEvent(ctx, models.EventPositionFlat, "tp")
	} else {
		st.MarkSeen(models.EventSLHit)
		m.alert(ctx, "🛑 %s %s: сработал стоп, ~%+.2f USDT", m.key.Symbol, m.key.Approach, pnl)
		m.recordEvent(ctx, models.EventSLHit, "")
	}
	m.recordOutcome(ctx, win, pnl)
	return true
}

// moveStopToBreakeven переносит стоп в безубыток после основного тейка.
// Движение строго одностороннее: хуже текущего стоп не станет.
// Возвращает снимок, в котором старый стоп заменён новым: ребаланс этого же
// цикла обязан видеть уже перенесённый стоп, иначе он «восстановит» отменённый
// стоп по старой цене вторым живым ордером.
func (m *Monitor) moveStopToBreakeven(ctx context.Context, snap Snapshot) Snapshot {
	st := m.state
	be := BreakevenPrice(snap.Position, m.cfg.RoundTripFee, m.cfg.BEExtraTicks, m.meta.TickSize)

	cur := st.StopLoss
	old, hadOld := snap.SL()
	if hadOld {
		cur = old.ExitPrice()
	}
	if !BreakevenImproves(snap.Position.Side, cur, be) {
		return snap
	}

	if hadOld {
		gone, err := m.gw.CancelOrder(ctx, old.Symbol, old.OrderID)
		if err != nil {
			logger.Error("monitor %s: breakeven cancel %s: %v", m.key, old.OrderID, err)
			return snap
		}
		v := CancelVerify{Tries: m.cfg.CancelVerifyTry, Gap: m.cfg.CancelVerifyGap}
		if !gone && !cancelConfirmed(ctx, m.gw, old, v) {
			logger.Error("monitor %s: breakeven cancel %s: not confirmed", m.key, old.OrderID)
			return snap
		}
	}

	spec := ExitSpec(m.key.Symbol, snap.Position.Side.Opposite(), models.RoleSL,
		helper.RoundToStep(snap.Position.Size, m.meta.QtyStep), be)
	rec, err := m.gw.PlaceOrder(ctx, spec)
	if err != nil {
		// Старый стоп уже снят, нового нет: ребаланс ниже по циклу
		// восстановит стоп из targets.SLPrice.
		logger.Error("monitor %s: breakeven place: %v", m.key, err)
		if hadOld {
			snap.Orders = dropOrder(snap.Orders, old.OrderID)
		}
		return snap
	}

	st.StopLoss = be
	if hadOld {
		snap.Orders = dropOrder(snap.Orders, old.OrderID)
	}
	snap.Orders = append(snap.Orders, rec)

	if st.MarkSeen(models.EventSLBreakeven) {
		m.alert(ctx, "🔒 %s %s: стоп переведён в безубыток (%s)",
			m.key.Symbol, m.key.Approach, helper.FormatPrice(be))
		m.recordEvent(ctx, models.EventSLBreakeven, helper.FormatPrice(be))
	}
	return snap
}

func dropOrder(orders []models.OrderRecord, orderID string) []models.OrderRecord {
	out := orders[:0]
	for _, o := range orders {
		if o.OrderID != orderID {
			out = append(out, o)
		}
	}
	return out
}

// cancelLeftovers снимает оставшиеся выходы после закрытия позиции.
// Неопознанные ордера не трогаем.
func (m *Monitor) cancelLeftovers(ctx context.Context, snap Snapshot) {
	for _, o := range snap.Orders {
		if !o.Status.IsLive() || o.Role == models.RoleUnknown {
			continue
		}
		if _, err := m.gw.CancelOrder(ctx, o.Symbol, o.OrderID); err != nil {
			logger.Error("monitor %s: cancel leftover %s %s: %v", m.key, o.Role, o.OrderID, err)
		}
	}
}

// estimatePnL — грубая оценка исхода по известным целям. Точные цены
// исполнения биржа в снимке не отдаёт; оценки достаточно для статистики.
func (m *Monitor) estimatePnL(win bool) float64 {
	st := m.state
	if st.AvgEntry <= 0 {
		return 0
	}
	dir := 1.0
	if st.Side == models.SideShort {
		dir = -1.0
	}
	exit := st.StopLoss
	if win && len(st.TakeProfits) > 0 {
		exit = st.TakeProfits[0]
	}
	if exit <= 0 {
		return 0
	}
	return (exit - st.AvgEntry) * dir * st.FilledSize
}

func (m *Monitor) mergeTargetsLocked(side models.Side, t Targets) {
	st := m.state
	dir := 1.0
	if side == models.SideShort {
		dir = -1.0
	}
	for i, px := range t.TPPrices {
		if px <= 0 {
			continue
		}
		if i >= len(st.TakeProfits) {
			st.TakeProfits = append(st.TakeProfits, px)
			continue
		}
		// Более агрессивный тейк — дальше в прибыльную сторону.
		if dir*(px-st.TakeProfits[i]) > 0 {
			st.TakeProfits[i] = px
		}
	}
	// Более консервативный стоп — ближе к цене, меньше потенциальный убыток.
	if t.SLPrice > 0 && (st.StopLoss <= 0 || dir*(t.SLPrice-st.StopLoss) > 0) {
		st.StopLoss = t.SLPrice
	}
}

func (m *Monitor) takeMerged() *Targets {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.merged
	m.merged = nil
	return t
}

func (m *Monitor) qtyEps() float64 {
	if m.meta.QtyStep > 0 {
		return m.meta.QtyStep / 2
	}
	return 1e-9
}

func (m *Monitor) persist() {
	if m.store != nil {
		m.store.SaveMonitor(m.state)
	}
}

// alert пишет в лог всегда, в чат — только при живом нотификаторе:
// мониторы зеркального аккаунта молчат.
func (m *Monitor) alert(ctx context.Context, format string, args ...any) {
	logger.Info("monitor %s: "+format, append([]any{m.key}, args...)...)
	if m.notifier == nil || m.state.ChatID == 0 {
		return
	}
	if err := m.notifier.SendF(ctx, m.state.ChatID, format, args...); err != nil {
		logger.Error("monitor %s: notify: %v", m.key, err)
	}
}

func (m *Monitor) recordEvent(ctx context.Context, event, details string) {
	if m.history == nil {
		return
	}
	if err := m.history.RecordEvent(ctx, m.key, event, details); err != nil {
		logger.Error("monitor %s: history event: %v", m.key, err)
	}
}

func (m *Monitor) recordOutcome(ctx context.Context, win bool, pnl float64) {
	if m.history == nil {
		return
	}
	if err := m.history.RecordOutcome(ctx, m.key, win, pnl); err != nil {
		logger.Error("monitor %s: history outcome: %v", m.key, err)
	}
}

func liveTiersAfter(tpNow map[int]models.OrderRecord, plan models.RebalancePlan) []int {
	set := map[int]bool{}
	for t := range tpNow {
		set[t] = true
	}
	for _, spec := range plan.Place {
		if t, ok := spec.Role.TPTier(); ok {
			set[t] = true
		}
	}
	tiers := make([]int, 0, len(set))
	for t := range set {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)
	return tiers
}

func hasPlaceRole(specs []models.OrderSpec, role models.OrderRole) bool {
	for _, s := range specs {
		if s.Role == role {
			return true
		}
	}
	return false
}

func countTPs(specs []models.OrderSpec) int {
	n := 0
	for _, s := range specs {
		if s.Role.IsTP() {
			n++
		}
	}
	return n
}
