package bybit_client

import (
	"bybit_bot/internal/models"
	"bybit_bot/internal/modules/bybit_client/service"
	"bybit_bot/internal/modules/config"

	"go.uber.org/fx"
)

// Clients — два независимых REST-клиента: основной и зеркальный аккаунт.
type Clients struct {
	Primary *service.Client
	Mirror  *service.Client
}

func Module() fx.Option {
	return fx.Module("bybit_client",
		fx.Provide(
			func(cfg *config.Config) *Clients {
				return &Clients{
					Primary: service.NewClient(
						models.AccountPrimary,
						cfg.Bybit.BaseURL,
						cfg.Bybit.Primary.APIKey,
						cfg.Bybit.Primary.APISecret,
					),
					Mirror: service.NewClient(
						models.AccountMirror,
						cfg.Bybit.BaseURL,
						cfg.Bybit.Mirror.APIKey,
						cfg.Bybit.Mirror.APISecret,
					),
				}
			},
		),
	)
}
