package history

import (
	"context"

	"go.uber.org/fx"

	"bybit_bot/internal/modules/history/service"
	"bybit_bot/internal/runner/monitors"
)

func Module() fx.Option {
	return fx.Module("history",
		fx.Provide(
			service.NewHistory,
			func(h *service.History) monitors.HistorySink { return h },
		),
		fx.Invoke(func(lc fx.Lifecycle, h *service.History) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return h.EnsureSchema(ctx)
				},
			})
		}),
	)
}
