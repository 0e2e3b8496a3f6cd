package runner

import (
	"context"

	"go.uber.org/fx"

	"bybit_bot/internal/models"
	"bybit_bot/internal/modules/bybit_client"
	"bybit_bot/internal/modules/config"
	"bybit_bot/internal/runner/monitors"
)

// StateLoader — источник снапшота мониторов прошлого запуска.
type StateLoader interface {
	Monitors() []models.MonitorState
}

func NewGateways(clients *bybit_client.Clients, cfg *config.Config) map[models.Account]monitors.ExchangeGateway {
	gws := map[models.Account]monitors.ExchangeGateway{
		models.AccountPrimary: clients.Primary,
	}
	// Зеркало опционально: без ключей торгуем только основным аккаунтом.
	if cfg.Bybit.Mirror.APIKey != "" {
		gws[models.AccountMirror] = clients.Mirror
	}
	return gws
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewGateways,
			NewManager,
			NewExecutor,
		),
		fx.Invoke(func(m *Manager, n monitors.Notifier) {
			m.SetNotifier(n)
		}),
		fx.Invoke(func(lc fx.Lifecycle, m *Manager, loader StateLoader) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					m.Restore(loader.Monitors())
					return nil
				},
				OnStop: func(ctx context.Context) error {
					m.StopAll()
					return nil
				},
			})
		}),
	)
}
