package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"bybit_bot/internal/models"
	"bybit_bot/pkg/logger"
)

const defaultPath = "data/monitors.json"

// Store — файловый снапшот состояний мониторов. Пишется с дебаунсом:
// мониторы сохраняются каждый цикл, а на диск снапшот уезжает не чаще
// одного раза за окно. Потеря последнего окна не страшна: состояние
// восстанавливается свипом по бирже.
type Store struct {
	path     string
	debounce time.Duration

	mu     sync.Mutex
	cache  map[string]models.MonitorState
	loaded bool
	dirty  bool
	timer  *time.Timer
}

func NewStore(path string, debounce time.Duration) *Store {
	if path == "" {
		path = defaultPath
	}
	return &Store{
		path:     path,
		debounce: debounce,
		cache:    make(map[string]models.MonitorState),
	}
}

func (s *Store) SaveMonitor(st *models.MonitorState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		logger.Error("store: load: %v", err)
		return
	}
	s.cache[st.Key.String()] = cloneState(st)
	s.scheduleFlushLocked()
}

func (s *Store) RemoveMonitor(key models.MonitorKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		logger.Error("store: load: %v", err)
		return
	}
	delete(s.cache, key.String())
	s.scheduleFlushLocked()
}

// Monitors — состояния из снапшота, для рестора после рестарта.
func (s *Store) Monitors() []models.MonitorState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		logger.Error("store: load: %v", err)
		return nil
	}
	out := make([]models.MonitorState, 0, len(s.cache))
	for _, st := range s.cache {
		out = append(out, st)
	}
	return out
}

// Flush немедленно сбрасывает снапшот на диск. Зовётся на shutdown.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		return nil
	}
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("Flush: %w", err)
	}
	s.dirty = false
	return nil
}

func (s *Store) scheduleFlushLocked() {
	s.dirty = true
	if s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		s.timer = nil
		if !s.dirty {
			s.mu.Unlock()
			return
		}
		err := s.saveLocked()
		if err == nil {
			s.dirty = false
		}
		s.mu.Unlock()
		if err != nil {
			logger.Error("store: save: %v", err)
		}
	})
}

// ---- storage format ----

type snapshot struct {
	UpdatedAt time.Time             `json:"updated_at"`
	Monitors  []models.MonitorState `json:"monitors"`
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}

	s.cache = make(map[string]models.MonitorState, len(snap.Monitors))
	for _, st := range snap.Monitors {
		s.cache[st.Key.String()] = st
	}
	s.loaded = true
	return nil
}

func (s *Store) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	mons := make([]models.MonitorState, 0, len(s.cache))
	for _, st := range s.cache {
		mons = append(mons, st)
	}
	snap := snapshot{
		UpdatedAt: time.Now(),
		Monitors:  mons,
	}

	b, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path) // атомарно
}

// clone чтобы монитор не делил срезы с кэшем
func cloneState(in *models.MonitorState) models.MonitorState {
	b, _ := json.Marshal(in)
	var out models.MonitorState
	_ = json.Unmarshal(b, &out)
	return out
}
