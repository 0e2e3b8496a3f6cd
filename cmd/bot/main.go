package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"bybit_bot/internal/modules/bootstrap"
	"bybit_bot/internal/modules/bybit_client"
	"bybit_bot/internal/modules/bybit_ws"
	"bybit_bot/internal/modules/config"
	"bybit_bot/internal/modules/health"
	"bybit_bot/internal/modules/history"
	"bybit_bot/internal/modules/postgres"
	"bybit_bot/internal/modules/store"
	telegram "bybit_bot/internal/modules/telegram_bot"
	"bybit_bot/internal/runner"
	"bybit_bot/pkg/logger"
	"bybit_bot/pkg/tracing"
)

const serviceName = "bybit_bot"

func initLogger() {
	l, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	logger.InfoLogger = l
	logger.FatalLogger = l
	logger.SetServiceName(serviceName)
}

func initTracing() func() {
	tracing.SetServiceName(serviceName)

	host := os.Getenv("JAEGER_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := 6831
	if p, err := strconv.Atoi(os.Getenv("JAEGER_PORT")); err == nil && p > 0 {
		port = p
	}

	_, closer, err := tracing.InitTracer(tracing.Config{Host: host, Port: port})
	if err != nil {
		// без трейсинга жить можно, без торговли — нет
		logger.Error("jaeger init: %v", err)
		return func() {}
	}
	return closer
}

func main() {
	initLogger()
	closeTracer := initTracing()
	defer closeTracer()

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		bybit_client.Module(),
		store.Module(),
		history.Module(),
		runner.Module(),
		telegram.Module(),
		bybit_ws.Module(),
		health.Module(),
		bootstrap.Module(),
	)
	app.Run()
}
