// cmd/coupon-worker/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"commerce/internal/pkg/bootstrap"
	"commerce/internal/pkg/logger"
	"commerce/internal/pkg/mq"
	pkgredis "commerce/internal/pkg/redis"
	"commerce/internal/pkg/tracing"
	couponapp "commerce/internal/service/coupon/application"
	couponinfra "commerce/internal/service/coupon/infrastructure"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	serviceName              = "coupon-worker"
	couponIssueTopic         = "coupon-issue-requests"
	couponIssueConsumerGroup = "coupon-issue-workers"
	healthPort               = ":8084"
)

// coupon-worker 是发券工作队列的消费端：
// 把 Kafka 中的发券请求幂等地落库，并回写排队状态。
func main() {
	cfg := bootstrap.GetCurrentConfig()
	logger.Init(serviceName, cfg.App.LogLevel)

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}
	tracer := otel.Tracer(serviceName)

	db, err := gorm.Open(gormmysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}

	redisClient, err := pkgredis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis client")
	}

	couponRepo := couponinfra.NewGormCouponRepository(db)
	gate, err := couponinfra.NewRedisIssueGate(redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize coupon issue gate")
	}

	issueService := couponapp.NewIssueCouponService(couponRepo, couponRepo, gate, gate, tracer, true)

	reader := mq.NewKafkaReader(strings.Split(cfg.Infra.Kafka.Brokers, ","), couponIssueTopic, couponIssueConsumerGroup)
	consumer := couponinfra.NewIssueConsumerAdapter(reader, issueService)

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)

	// 健康检查与监控端口
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		if err := http.ListenAndServe(healthPort, mux); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start health server")
		}
	}()

	log.Info().Str("topic", couponIssueTopic).Msg("coupon worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down coupon worker...")

	cancel()
	consumer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}
	redisClient.Close()
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	log.Info().Msg("coupon worker gracefully shut down")
}
