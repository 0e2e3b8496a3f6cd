package telegram

import (
	"context"

	"go.uber.org/fx"

	"bybit_bot/internal/modules/telegram_bot/service"
	"bybit_bot/internal/runner/monitors"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			service.NewTelegram,
		),

		// Адаптер: *service.Telegram -> monitors.Notifier
		fx.Provide(
			func(t *service.Telegram) monitors.Notifier {
				return t
			},
		),
		// Запуск основного цикла через Lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						go func() {
							_ = t.Start(context.Background())
						}()
						return nil
					},
					OnStop: func(ctx context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
