package bybit_ws

import (
	"context"

	"go.uber.org/fx"

	"bybit_bot/internal/modules/bybit_ws/service"
	"bybit_bot/internal/runner"
)

// Module поднимает тикер-стрим Bybit по символам под наблюдением.
func Module() fx.Option {
	return fx.Module("bybit_ws",
		fx.Provide(
			func(m *runner.Manager) service.SymbolSource {
				return m.Symbols
			},
			service.NewClient,
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client) {
			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go c.Start(runCtx)
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
