package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bybit_bot/internal/helper"
	"bybit_bot/internal/modules/config"
	health "bybit_bot/internal/modules/health/service"
	"bybit_bot/pkg/logger"
)

// SymbolSource отдаёт символы, за которыми сейчас следят мониторы.
// Подписки пересматриваются на лету: монитор появился — тикер подписался.
type SymbolSource func() []string

// Client — один WebSocket на публичный linear-стрим Bybit, канал tickers.
// Кормит health-стейт (готовность, последний тик) и кэш последних цен.
type Client struct {
	url    string
	dialer *websocket.Dialer
	source SymbolSource
	state  *health.State

	mu     sync.RWMutex
	prices map[string]float64

	writeMu sync.Mutex
}

func NewClient(cfg *config.Config, state *health.State, source SymbolSource) *Client {
	return &Client{
		url:    cfg.Bybit.WSURL,
		dialer: &websocket.Dialer{},
		source: source,
		state:  state,
		prices: make(map[string]float64),
	}
}

// LastPrice — последняя цена символа из стрима.
func (c *Client) LastPrice(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	px, ok := c.prices[symbol]
	return px, ok
}

// Start — реконнект-цикл. Живёт до отмены контекста.
func (c *Client) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.runOnce(ctx); err != nil {
			logger.Error("[WS] session: %v", err)
		}
		c.state.SetWSConnected(false)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	logger.Info("[WS] connect %s", c.url)
	conn, _, err := c.dialer.Dial(c.url, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	c.state.SetWSConnected(true)

	subscribed := map[string]bool{}
	if err := c.syncSubs(conn, subscribed); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)

	// keepalive ping каждые 20s, иначе Bybit рвёт соединение;
	// заодно досылаем подписки на новые символы
	go func() {
		ping := time.NewTicker(20 * time.Second)
		resub := time.NewTicker(30 * time.Second)
		defer ping.Stop()
		defer resub.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ping.C:
				c.writeMu.Lock()
				_ = conn.WriteJSON(map[string]string{"op": "ping"})
				c.writeMu.Unlock()
			case <-resub.C:
				if err := c.syncSubs(conn, subscribed); err != nil {
					logger.Error("[WS] resubscribe: %v", err)
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame struct {
			Topic string `json:"topic"`
			Data  struct {
				Symbol    string `json:"symbol"`
				LastPrice string `json:"lastPrice"`
			} `json:"data"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if frame.Data.Symbol == "" {
			continue
		}
		px := helper.ParseFloat(frame.Data.LastPrice)
		if px <= 0 {
			continue
		}

		c.mu.Lock()
		c.prices[frame.Data.Symbol] = px
		c.mu.Unlock()
		c.state.TouchTick(time.Now())
	}
}

// syncSubs подписывает символы, которых ещё нет в подписке. Отписку не
// делаем: лишний тикер дешевле гонки с новым монитором того же символа.
func (c *Client) syncSubs(conn *websocket.Conn, subscribed map[string]bool) error {
	var args []string
	for _, sym := range c.source() {
		if !subscribed[sym] {
			subscribed[sym] = true
			args = append(args, "tickers."+sym)
		}
	}
	if len(args) == 0 {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(map[string]any{
		"op":   "subscribe",
		"args": args,
	})
}
