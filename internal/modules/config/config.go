package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

type AccountCreds struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Config ...
type Config struct {
	Telegram struct {
		Token string `yaml:"token"`
		// единственный операторский чат; мониторы зеркального аккаунта
		// в него не пишут
		ChatID int64 `yaml:"chat_id"`
	} `yaml:"telegram"`
	DB      string `yaml:"db_dsn"`
	Service struct {
		Host       string `yaml:"host"`
		PublicPort int    `yaml:"public_port"`
		AdminPort  int    `yaml:"admin_port"`
	} `yaml:"service"`

	Bybit struct {
		BaseURL string       `yaml:"base_url"`
		WSURL   string       `yaml:"ws_url"`
		Primary AccountCreds `yaml:"primary"`
		Mirror  AccountCreds `yaml:"mirror"`
	} `yaml:"bybit"`

	// Путь до файла-снапшота состояния мониторов
	StorePath string `yaml:"store_path"`

	Trading Trading `yaml:"-"`
}

// Trading — дефолты торгового ядра. Читаются через viper с env-оверрайдами
// (BOT_POLL_INTERVAL и т.п.), чтобы крутить их без пересборки.
type Trading struct {
	PollInterval     time.Duration // период цикла монитора
	MonitorTTL       time.Duration // жёсткий потолок жизни монитора
	QtyTolerance     float64       // относительный допуск по количеству
	RoundTripFee     float64       // тейкер туда-обратно, напр. 0.0012
	BEExtraTicks     int           // запас безубытка в тиках
	MirrorRatio      float64       // доля маржи зеркального аккаунта
	CancelVerifyTry  int           // попыток подтверждения отмены
	CancelVerifyGap  time.Duration // пауза между попытками
	SnapshotDebounce time.Duration
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		StorePath: getenvDefault("BOT_STORE_PATH", "data/state.json"),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	if chatID := intFromEnv("TELEGRAM_CHAT_ID", 0); chatID != 0 {
		config.Telegram.ChatID = int64(chatID)
	}

	if config.Bybit.BaseURL == "" {
		config.Bybit.BaseURL = "https://api.bybit.com"
	}
	if config.Bybit.WSURL == "" {
		config.Bybit.WSURL = "wss://stream.bybit.com/v5/public/linear"
	}

	config.Trading = loadTradingDefaults()

	return &config, nil
}

func loadTradingDefaults() Trading {
	v := viper.New()
	v.SetEnvPrefix("BOT")
	v.AutomaticEnv()

	v.SetDefault("poll_interval", "11s")
	v.SetDefault("monitor_ttl", "24h")
	v.SetDefault("qty_tolerance", 0.01)
	v.SetDefault("round_trip_fee", 0.0012)
	v.SetDefault("be_extra_ticks", 2)
	v.SetDefault("mirror_ratio", 0.5)
	v.SetDefault("cancel_verify_try", 3)
	v.SetDefault("cancel_verify_gap", "500ms")
	v.SetDefault("snapshot_debounce", "2s")

	v.SetConfigName("trading")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	// файла может не быть — тогда живём на дефолтах/env
	_ = v.ReadInConfig()

	return Trading{
		PollInterval:     v.GetDuration("poll_interval"),
		MonitorTTL:       v.GetDuration("monitor_ttl"),
		QtyTolerance:     v.GetFloat64("qty_tolerance"),
		RoundTripFee:     v.GetFloat64("round_trip_fee"),
		BEExtraTicks:     v.GetInt("be_extra_ticks"),
		MirrorRatio:      v.GetFloat64("mirror_ratio"),
		CancelVerifyTry:  v.GetInt("cancel_verify_try"),
		CancelVerifyGap:  v.GetDuration("cancel_verify_gap"),
		SnapshotDebounce: v.GetDuration("snapshot_debounce"),
	}
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
