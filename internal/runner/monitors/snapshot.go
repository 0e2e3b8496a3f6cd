package monitors

import (
	"context"
	"time"

	"bybit_bot/internal/models"
)

// Snapshot — согласованный снимок позиции и её живых ордеров.
// Ордера уже классифицированы.
type Snapshot struct {
	Position models.Position
	Orders   []models.OrderRecord
}

// TPByTier — живые тейки по уровням.
func (s Snapshot) TPByTier() map[int]models.OrderRecord {
	out := map[int]models.OrderRecord{}
	for _, o := range s.Orders {
		if t, ok := o.Role.TPTier(); ok && o.Status.IsLive() {
			out[t] = o
		}
	}
	return out
}

// SL — живой стоп, если есть.
func (s Snapshot) SL() (models.OrderRecord, bool) {
	for _, o := range s.Orders {
		if o.Role == models.RoleSL && o.Status.IsLive() {
			return o, true
		}
	}
	return models.OrderRecord{}, false
}

// LiveEntries — ещё не налитые входы.
func (s Snapshot) LiveEntries() int {
	n := 0
	for _, o := range s.Orders {
		if o.Role == models.RoleEntry && o.Status.IsLive() {
			n++
		}
	}
	return n
}

// Unknowns — ордера, роль которых классификатор не опознал.
func (s Snapshot) Unknowns() []models.OrderRecord {
	var out []models.OrderRecord
	for _, o := range s.Orders {
		if o.Role == models.RoleUnknown {
			out = append(out, o)
		}
	}
	return out
}

// fetchSnapshot читает позицию и ордера с повторами. Сетевые сбои здесь
// штатны: после исчерпания попыток цикл просто пропускается.
func fetchSnapshot(ctx context.Context, gw ExchangeGateway, symbol string) (Snapshot, error) {
	var snap Snapshot
	err := withBackoff(ctx, 3, time.Second, func() error {
		pos, err := gw.GetPosition(ctx, symbol)
		if err != nil {
			return err
		}
		orders, err := gw.GetOpenOrders(ctx, symbol)
		if err != nil {
			return err
		}
		snap = Snapshot{Position: pos, Orders: ClassifyOrders(orders, pos)}
		return nil
	})
	return snap, err
}

func withBackoff(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var err error
	delay := base
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
