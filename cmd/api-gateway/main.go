package main

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/stream-bets-settlement/internal/gateway"
	"github.com/radieske/stream-bets-settlement/internal/shared/config"
	"github.com/radieske/stream-bets-settlement/internal/shared/logger"
)

func main() {
	cfg, cfgErr := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "api-gateway"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if cfgErr != nil {
		log.Fatal("invalid config", zap.Error(cfgErr))
	}

	h, err := gateway.Handler(gateway.Targets{Settlement: cfg.SettlementURL, Feed: cfg.FeedURL})
	if err != nil {
		log.Fatal("gateway targets", zap.Error(err))
	}

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	log.Info("api-gateway listening", zap.String("addr", srv.Addr),
		zap.String("settlement", cfg.SettlementURL), zap.String("feed", cfg.FeedURL))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
