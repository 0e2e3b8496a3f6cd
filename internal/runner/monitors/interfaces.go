package monitors

import (
	"context"

	"bybit_bot/internal/models"
)

// ExchangeGateway — всё, что монитору нужно от биржи. Реализуется
// bybit_client/service.Client; в тестах — фейком.
type ExchangeGateway interface {
	Account() models.Account

	GetPosition(ctx context.Context, symbol string) (models.Position, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]models.OrderRecord, error)
	GetOrder(ctx context.Context, symbol, orderID string) (models.OrderRecord, error)

	PlaceOrder(ctx context.Context, spec models.OrderSpec) (models.OrderRecord, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (bool, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	GetInstrumentMeta(ctx context.Context, symbol string) (models.InstrumentMeta, error)
}

// Notifier — канал уведомлений в чат. Мониторы зеркального аккаунта
// работают без нотификатора (nil) и пишут только в лог.
type Notifier interface {
	SendF(ctx context.Context, chatID int64, format string, args ...any) error
}

// StateSink — приёмник снапшотов состояния монитора.
type StateSink interface {
	SaveMonitor(st *models.MonitorState)
	RemoveMonitor(key models.MonitorKey)
}

// HistorySink — журнал событий и исходов сделок.
type HistorySink interface {
	RecordEvent(ctx context.Context, key models.MonitorKey, event, details string) error
	RecordOutcome(ctx context.Context, key models.MonitorKey, win bool, pnl float64) error
}
