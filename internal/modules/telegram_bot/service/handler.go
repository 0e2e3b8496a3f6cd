package service

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"bybit_bot/internal/models"
	"bybit_bot/pkg/logger"
)

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// 1) Обычные сообщения
	if msg := update.Message; msg != nil {
		chatID := msg.Chat.ID
		if !t.allowedChat(chatID) {
			return
		}

		if msg.IsCommand() {
			switch msg.Command() {
			case "start":
				if err := t.handleStart(ctx, chatID); err != nil {
					logger.Error("handleStart error: %v", err)
				}
			case "positions":
				go t.handlePositions(ctx, chatID)
			case "stats":
				go t.handleStats(ctx, chatID)
			case "cancel":
				t.handleCancel(ctx, chatID, msg.CommandArguments())
			default:
			}
			return
		}

		t.handleTextMessage(ctx, msg)
		return
	}

	// 2) Inline-кнопки (CallbackQuery)
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat == nil {
			return
		}
		chatID := cb.Message.Chat.ID
		if !t.allowedChat(chatID) {
			return
		}
		t.handleCallback(ctx, chatID, cb)
		return
	}
}

// allowedChat — бот односемейный: слушает только операторский чат.
func (t *Telegram) allowedChat(chatID int64) bool {
	return t.cfg.Telegram.ChatID == 0 || t.cfg.Telegram.ChatID == chatID
}

func (t *Telegram) handleStart(ctx context.Context, chatID int64) error {
	msgText := "Привет! Я исполняю заявки на Bybit и веду позиции до закрытия.\n\n" +
		"Заявка одной строкой:\n" +
		"`TRADE: BTCUSDT; long; conservative; 10; 100; 42000,41500,41000; 43000,43500,44000,44500; 40000`\n\n" +
		"Поля: символ; сторона; подход (fast/conservative); плечо; маржа USDT; " +
		"входы; тейки; стоп.\n\n" +
		"Команды:\n" +
		"/positions — мониторы и позиции\n" +
		"/stats — статистика сделок\n" +
		"/cancel SYMBOL — снять наблюдение с символа"

	msg := tgbotapi.NewMessage(chatID, msgText)
	msg.ParseMode = "Markdown"

	_, err := t.SendMessage(ctx, msg)
	return err
}

func (t *Telegram) handleTextMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(strings.ToUpper(text), "TRADE:") {
		go t.handleTradeForm(ctx, chatID, text)
		return
	}
	_, _ = t.Send(ctx, chatID, "Не понял. Заявка начинается с TRADE:, помощь — /start")
}

func (t *Telegram) handleCallback(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery) {
	data := cb.Data

	var token string
	var ok bool
	switch {
	case strings.HasPrefix(data, "CONF::"):
		token, ok = strings.TrimPrefix(data, "CONF::"), true
	case strings.HasPrefix(data, "REJ::"):
		token, ok = strings.TrimPrefix(data, "REJ::"), false
	default:
		return
	}

	t.mu.Lock()
	p, found := t.pendings[token]
	if found {
		delete(t.pendings, token)
	}
	t.mu.Unlock()

	_, _ = t.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	if !found {
		return
	}

	_ = t.editReplyMarkupRemove(chatID, p.msgID)
	verdict := "✅ Подтверждено"
	if !ok {
		verdict = "❌ Отклонено"
	}
	_ = t.editText(chatID, p.msgID, p.prompt+"\n\n"+verdict)

	p.ch <- ok
}

// /positions — живые мониторы плюс позиции с биржи.
func (t *Telegram) handlePositions(ctx context.Context, chatID int64) {
	states := t.manager.States()

	var positions []models.Position
	if gw, ok := t.gws[models.AccountPrimary]; ok {
		var err error
		positions, err = gw.GetPositions(ctx)
		if err != nil {
			logger.Error("handlePositions: %v", err)
		}
	}

	_, _ = t.Send(ctx, chatID, formatPositions(states, positions))
}

// /stats — агрегат и последние исходы из журнала.
func (t *Telegram) handleStats(ctx context.Context, chatID int64) {
	stats, err := t.history.Stats(ctx)
	if err != nil {
		logger.Error("handleStats: %v", err)
		_, _ = t.Send(ctx, chatID, "❗️ Статистика недоступна: "+err.Error())
		return
	}
	recent, err := t.history.Recent(ctx, 5)
	if err != nil {
		logger.Error("handleStats recent: %v", err)
	}
	_, _ = t.Send(ctx, chatID, formatStats(stats, recent))
}

// /cancel SYMBOL — снять наблюдение. Ордера на бирже не трогаем:
// снятие наблюдения не равно закрытию позиции.
func (t *Telegram) handleCancel(ctx context.Context, chatID int64, args string) {
	symbol := strings.ToUpper(strings.TrimSpace(args))
	if symbol == "" {
		_, _ = t.Send(ctx, chatID, "Формат: /cancel BTCUSDT")
		return
	}

	n := t.manager.StopBySymbol(models.AccountPrimary, symbol)
	n += t.manager.StopBySymbol(models.AccountMirror, symbol)
	if n == 0 {
		_, _ = t.Send(ctx, chatID, "📭 Мониторов по "+symbol+" нет")
		return
	}
	_ = t.SendF(ctx, chatID, "🧹 %s: наблюдение снято (%d мониторов), ордера оставлены как есть", symbol, n)
}
