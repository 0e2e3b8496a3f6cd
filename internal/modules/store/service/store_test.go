package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bybit_bot/internal/models"
	"bybit_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	l := zap.NewNop()
	logger.InfoLogger = l
	logger.FatalLogger = l
	os.Exit(m.Run())
}

func testState(symbol string) *models.MonitorState {
	return &models.MonitorState{
		Key: models.MonitorKey{
			Account:  models.AccountPrimary,
			Symbol:   symbol,
			Approach: models.ApproachConservative,
		},
		ChatID:      7,
		Side:        models.SideLong,
		FilledSize:  0.5,
		AvgEntry:    42000,
		TakeProfits: []float64{43000, 43500},
		StopLoss:    40000,
		OpenTiers:   []int{1, 2},
		HadSL:       true,
		StartedAt:   time.Now().UTC().Truncate(time.Second),
		Deadline:    time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	}
}

func TestStoreSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")

	s := NewStore(path, time.Hour) // дебаунс не должен успеть, сбрасываем явно
	st := testState("BTCUSDT")
	s.SaveMonitor(st)
	s.SaveMonitor(testState("ETHUSDT"))
	require.NoError(t, s.Flush())

	// свежий инстанс читает снапшот с диска
	restored := NewStore(path, time.Hour)
	mons := restored.Monitors()
	require.Len(t, mons, 2)

	byKey := map[string]models.MonitorState{}
	for _, m := range mons {
		byKey[m.Key.String()] = m
	}
	got := byKey[st.Key.String()]
	assert.Equal(t, st.TakeProfits, got.TakeProfits)
	assert.Equal(t, st.StopLoss, got.StopLoss)
	assert.Equal(t, st.OpenTiers, got.OpenTiers)
	assert.True(t, got.HadSL)
}

func TestStoreRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")

	s := NewStore(path, time.Hour)
	st := testState("BTCUSDT")
	s.SaveMonitor(st)
	s.RemoveMonitor(st.Key)
	require.NoError(t, s.Flush())

	restored := NewStore(path, time.Hour)
	assert.Empty(t, restored.Monitors())
}

func TestStoreDebouncedFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")

	s := NewStore(path, 20*time.Millisecond)
	s.SaveMonitor(testState("BTCUSDT"))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "до истечения окна на диске пусто")

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestStoreClonesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")

	s := NewStore(path, time.Hour)
	st := testState("BTCUSDT")
	s.SaveMonitor(st)

	// мутации оригинала после сохранения не должны протекать в кэш
	st.TakeProfits[0] = 1
	st.OpenTiers[0] = 9

	mons := s.Monitors()
	require.Len(t, mons, 1)
	assert.Equal(t, 43000.0, mons[0].TakeProfits[0])
	assert.Equal(t, 1, mons[0].OpenTiers[0])
}

func TestFlushNoopWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitors.json")
	s := NewStore(path, time.Hour)

	require.NoError(t, s.Flush())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
