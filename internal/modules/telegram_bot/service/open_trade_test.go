package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bybit_bot/internal/models"
)

func TestParseTradeForm(t *testing.T) {
	req, err := parseTradeForm("TRADE: btcusdt; long; conservative; 10; 100; 42000,41500; 43000,43500,44000,44500; 40000")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", req.Symbol)
	assert.Equal(t, models.SideLong, req.Side)
	assert.Equal(t, models.ApproachConservative, req.Approach)
	assert.Equal(t, 10, req.Leverage)
	assert.Equal(t, 100.0, req.MarginUSDT)
	assert.Equal(t, []float64{42000, 41500}, req.Entries)
	assert.Equal(t, []float64{43000, 43500, 44000, 44500}, req.TakeProfits)
	assert.Equal(t, 40000.0, req.StopLoss)
	assert.Equal(t, "telegram", req.Source)

	require.NoError(t, req.Validate())
}

func TestParseTradeFormShortHand(t *testing.T) {
	// сокращения и лишние пробелы — обычное дело при наборе с телефона
	req, err := parseTradeForm("trade: ETHUSDT ; sell ; f ; 5 ; 50 ; 2200 ; 2100 ; 2300")
	require.NoError(t, err)

	assert.Equal(t, models.SideShort, req.Side)
	assert.Equal(t, models.ApproachFast, req.Approach)
	require.NoError(t, req.Validate())
}

func TestParseTradeFormErrors(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"too few fields", "TRADE: BTCUSDT; long; fast; 10; 100; 42000; 43000"},
		{"bad side", "TRADE: BTCUSDT; sideways; fast; 10; 100; 42000; 43000; 40000"},
		{"bad approach", "TRADE: BTCUSDT; long; yolo; 10; 100; 42000; 43000; 40000"},
		{"bad leverage", "TRADE: BTCUSDT; long; fast; ten; 100; 42000; 43000; 40000"},
		{"bad entry price", "TRADE: BTCUSDT; long; fast; 10; 100; цена; 43000; 40000"},
		{"empty tps", "TRADE: BTCUSDT; long; fast; 10; 100; 42000; ,; 40000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseTradeForm(tc.text)
			assert.Error(t, err)
		})
	}
}

func TestFormatRequest(t *testing.T) {
	req := &models.TradeRequest{
		Symbol:      "BTCUSDT",
		Side:        models.SideLong,
		Approach:    models.ApproachConservative,
		Leverage:    10,
		MarginUSDT:  100,
		Entries:     []float64{42000, 41500},
		TakeProfits: []float64{43000, 43500},
		StopLoss:    40000,
	}
	text := formatRequest(req)

	assert.True(t, strings.Contains(text, "BTCUSDT"))
	assert.True(t, strings.Contains(text, "42000, 41500"))
	assert.True(t, strings.Contains(text, "43000, 43500"))
	assert.True(t, strings.Contains(text, "40000"))
	assert.True(t, strings.Contains(text, "Исполнить?"))
}
