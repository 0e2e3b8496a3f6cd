package store

import (
	"context"

	"go.uber.org/fx"

	"bybit_bot/internal/modules/config"
	"bybit_bot/internal/modules/store/service"
	"bybit_bot/internal/runner"
	"bybit_bot/internal/runner/monitors"
)

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(
			func(cfg *config.Config) *service.Store {
				return service.NewStore(cfg.StorePath, cfg.Trading.SnapshotDebounce)
			},
			func(s *service.Store) monitors.StateSink { return s },
			func(s *service.Store) runner.StateLoader { return s },
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Store) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return s.Flush()
				},
			})
		}),
	)
}
