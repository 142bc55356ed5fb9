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

	"github.com/radieske/stream-bets-settlement/internal/feed/cache"
	"github.com/radieske/stream-bets-settlement/internal/feed/consumer"
	"github.com/radieske/stream-bets-settlement/internal/feed/pubsub"
	"github.com/radieske/stream-bets-settlement/internal/feed/ws"
	sharedcache "github.com/radieske/stream-bets-settlement/internal/shared/cache"
	"github.com/radieske/stream-bets-settlement/internal/shared/config"
	"github.com/radieske/stream-bets-settlement/internal/shared/kafka"
	"github.com/radieske/stream-bets-settlement/internal/shared/logger"
	"github.com/radieske/stream-bets-settlement/internal/shared/metrics"
	"github.com/radieske/stream-bets-settlement/pkg/contracts/events"
)

func main() {
	cfg, cfgErr := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "market-feed-service"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()
	if cfgErr != nil {
		log.Fatal("invalid config", zap.Error(cfgErr))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Métricas Prometheus
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_messages_consumed_total", Help: "mensagens consumidas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "feed_errors_total", Help: "erros por estágio"}, []string{"stage"})
	conns := prometheus.NewGauge(prometheus.GaugeOpts{Name: "feed_ws_connections", Help: "conexões websocket abertas"})
	prometheus.MustRegister(consumed, errorsBy, conns)

	snapshots := cache.NewSnapshotCache(redisClient, 24*time.Hour)
	broadcaster := pubsub.NewRedisBroadcaster(redisClient)

	hub := ws.NewHub(log, func(r *http.Request) bool { return true })
	hub.Snapshot = snapshots.Latest
	hub.OnConnect = conns.Inc
	hub.OnDisconnect = conns.Dec
	if err := ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub); err != nil {
		log.Fatal("redis subscribe", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	// Um relay por tópico da liquidação
	for topic, typ := range map[string]string{
		cfg.TopicMarketResolved: events.TypeMarketResolved,
		cfg.TopicPoolsUpdated:   events.TypePoolsUpdated,
	} {
		reader := kafka.NewReader(cfg.KafkaBrokers, topic, cfg.FeedGroupID)
		defer reader.Close()
		relay := &consumer.Relay{
			Log:         log,
			Reader:      reader,
			Type:        typ,
			Channel:     cfg.RedisPubSubChannel,
			Broadcaster: broadcaster,
			Snapshots:   snapshots,
			OnConsumed:  consumed.Inc,
			OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
		}
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	wsSrv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	metricsSrv := metrics.NewServer(cfg.MetricsPort, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	g.Go(func() error {
		log.Info("ws listening", zap.String("addr", wsSrv.Addr))
		return serve(wsSrv)
	})
	g.Go(func() error {
		log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))
		return serve(metricsSrv)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(wsSrv.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		log.Error("market-feed-service stopped with error", zap.Error(err))
		return
	}
	log.Info("market-feed-service stopped")
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
