package bootstrap

import (
	"context"

	"go.uber.org/fx"

	bootstrap "bybit_bot/internal/modules/bootstrap/service"
	health "bybit_bot/internal/modules/health/service"
	"bybit_bot/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			bootstrap.NewSweeper,
		),
		fx.Invoke(func(lc fx.Lifecycle, sw *bootstrap.Sweeper, state *health.State) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						n, err := sw.Sweep(context.Background())
						if err != nil {
							logger.Error("[BOOT] sweep error: %v", err)
						}
						logger.Info("[BOOT] sweep done: %d positions adopted", n)
						state.SetReady(true)
					}()
					return nil
				},
			})
		}),
	)
}
