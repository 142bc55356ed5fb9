package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/stream-bets-settlement/internal/settlement/app"
	scache "github.com/radieske/stream-bets-settlement/internal/settlement/cache"
	"github.com/radieske/stream-bets-settlement/internal/settlement/engine"
	httpapi "github.com/radieske/stream-bets-settlement/internal/settlement/http"
	"github.com/radieske/stream-bets-settlement/internal/settlement/publisher"
	sharedcache "github.com/radieske/stream-bets-settlement/internal/shared/cache"
	"github.com/radieske/stream-bets-settlement/internal/shared/config"
	"github.com/radieske/stream-bets-settlement/internal/shared/kafka"
	"github.com/radieske/stream-bets-settlement/internal/shared/logger"
	"github.com/radieske/stream-bets-settlement/internal/shared/metrics"
)

func main() {
	cfg, cfgErr := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "settlement-service"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()
	if cfgErr != nil {
		log.Fatal("invalid config", zap.Error(cfgErr))
	}

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ecfg, err := app.EngineConfig(cfg)
	if err != nil {
		log.Fatal("engine config", zap.Error(err))
	}

	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal("store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.Close()
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Kafka writers (um por tipo de evento)
	resolvedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketResolved)
	defer resolvedW.Close()
	poolsW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPoolsUpdated)
	defer poolsW.Close()

	// Métricas Prometheus
	instructions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_instructions_total", Help: "instruções executadas por resultado",
	}, []string{"instruction", "result"})
	moved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_lamports_moved_total", Help: "lamports movimentados por tipo",
	}, []string{"kind"})
	prometheus.MustRegister(instructions, moved)

	eng := engine.New(st, ecfg, log,
		engine.WithEventSink(publisher.NewKafkaPublisher(resolvedW, poolsW)),
		engine.WithHooks(engine.Hooks{
			OnInstruction: func(name string, err error) {
				result := "ok"
				if err != nil {
					result = engine.CodeOf(err)
					if result == "" {
						result = "internal"
					}
				}
				instructions.WithLabelValues(name, result).Inc()
			},
			OnTransfer: func(kind string, amount uint64) {
				moved.WithLabelValues(kind).Add(float64(amount))
			},
		}),
	)

	api := &httpapi.API{
		Log:    log,
		Engine: eng,
		Cache:  scache.NewMarketCache(redisClient, cfg.MarketCacheTTL),
		Auth: httpapi.Authenticator{
			MaxSkew: cfg.AuthMaxSkew,
			Nonces:  scache.NewNonceStore(redisClient),
		},
		Limiter: httpapi.NewSignerLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.NewServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := eng.Ping(ctx); err != nil {
			return fmt.Errorf("store: %w", err)
		}
		return redisClient.Ping(ctx).Err()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("settlement-service listening", zap.String("addr", apiSrv.Addr), zap.Stringer("program_id", eng.ProgramID()), zap.Stringer("host", eng.Host()))
		return serve(apiSrv)
	})
	g.Go(func() error {
		log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))
		return serve(metricsSrv)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(apiSrv.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		log.Error("settlement-service stopped with error", zap.Error(err))
		return
	}
	log.Info("settlement-service stopped")
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
