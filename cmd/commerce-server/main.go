// cmd/commerce-server/main.go
package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"commerce/internal/pkg/bootstrap"
	"commerce/internal/pkg/httpclient"
	"commerce/internal/pkg/lock"
	"commerce/internal/pkg/logger"
	"commerce/internal/pkg/mq"
	pkgredis "commerce/internal/pkg/redis"
	balanceapp "commerce/internal/service/balance/application"
	balanceinfra "commerce/internal/service/balance/infrastructure"
	balanceiface "commerce/internal/service/balance/interfaces"
	couponapp "commerce/internal/service/coupon/application"
	couponinfra "commerce/internal/service/coupon/infrastructure"
	"commerce/internal/service/coupon/infrastructure/rule"
	couponiface "commerce/internal/service/coupon/interfaces"
	"commerce/internal/service/notification"
	orderapp "commerce/internal/service/order/application"
	orderport "commerce/internal/service/order/domain/port"
	orderinfra "commerce/internal/service/order/infrastructure"
	"commerce/internal/service/order/infrastructure/adapter"
	orderiface "commerce/internal/service/order/interfaces"
	productapp "commerce/internal/service/product/application"
	productinfra "commerce/internal/service/product/infrastructure"
	productiface "commerce/internal/service/product/interfaces"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const (
	couponIssueTopic       = "coupon-issue-requests"
	orderCompletedTopic    = "order-completed"
	rankingConsumerGroupID = "sales-ranking-consumers"
	pushConsumerGroupID    = "order-push-consumers"
	queueSchedulerInterval = time.Second
	orderProcessingTimeout = 10 * time.Second
)

// main 是应用的组装根 (Composition Root)：
// 创建并组装所有依赖项，然后交给 bootstrap 启动。
func main() {
	cfg := bootstrap.GetCurrentConfig()
	tracer := otel.Tracer(cfg.App.Name)

	// 1. 基础设施
	db, err := gorm.Open(gormmysql.Open(cfg.Infra.Mysql.DSN), &gorm.Config{
		// 让唯一索引冲突统一转成 gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	if err := db.AutoMigrate(
		&balanceinfra.BalanceModel{}, &balanceinfra.BalanceTransactionModel{},
		&couponinfra.CouponModel{}, &couponinfra.UserCouponModel{},
		&productinfra.ProductModel{},
		&orderinfra.OrderModel{}, &orderinfra.OrderItemModel{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database schema")
	}

	redisClient, err := pkgredis.NewClient(cfg.Infra.Redis.Addrs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis client")
	}

	locker := buildLocker(cfg, redisClient)
	brokers := strings.Split(cfg.Infra.Kafka.Brokers, ",")

	// 2. 余额上下文
	balanceRepo := balanceinfra.NewGormBalanceRepository(db)
	balanceService := balanceapp.NewBalanceService(balanceRepo, locker, tracer, cfg.Infra.Lock.Wait, cfg.Infra.Lock.Lease)
	balanceHandler := balanceiface.NewBalanceHandler(balanceService)

	// 3. 优惠券上下文
	couponRepo := couponinfra.NewGormCouponRepository(db)
	userCouponRepo := couponinfra.NewGormUserCouponRepository(db)
	gate, err := couponinfra.NewRedisIssueGate(redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize coupon issue gate")
	}
	primeGates(couponRepo, gate)

	issueService := couponapp.NewIssueCouponService(
		couponRepo, couponRepo, gate, gate, tracer, cfg.App.FeatureFlags.AsyncCouponIssue)
	queryService := couponapp.NewCouponQueryService(userCouponRepo, gate, tracer)
	ruleEngine, err := rule.NewCELRuleEngine()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize coupon rule engine")
	}
	useService := couponapp.NewUseCouponService(couponRepo, userCouponRepo, ruleEngine, tracer)
	couponHandler := couponiface.NewCouponHandler(issueService, queryService)

	issueWriter := mq.NewKafkaWriter(brokers, couponIssueTopic)
	issueProducer := couponinfra.NewIssueProducerAdapter(issueWriter)
	scheduler := couponinfra.NewQueueScheduler(gate, issueProducer, queueSchedulerInterval)

	// 4. 商品上下文
	productRepo := productinfra.NewGormProductRepository(db)
	ranking := productinfra.NewRedisSalesRanking(redisClient)
	popularCache := productinfra.NewInMemoryPopularCache()
	productService := productapp.NewProductService(productRepo, ranking, popularCache, tracer)
	productHandler := productiface.NewProductHandler(productService)

	rankingReader := mq.NewKafkaReader(brokers, orderCompletedTopic, rankingConsumerGroupID)
	rankingConsumer := productinfra.NewRankingConsumerAdapter(rankingReader, productService)

	// 5. 订单上下文
	orderRepo := orderinfra.NewGormOrderRepository(db)
	orderWriter := mq.NewKafkaWriter(brokers, orderCompletedTopic)
	orderPublisher := orderinfra.NewOrderEventPublisherAdapter(orderWriter)

	var analytics orderport.AnalyticsReporter
	if cfg.Infra.DataPlatform.URL != "" {
		analytics = adapter.NewDataPlatformHTTPAdapter(httpclient.NewClient(tracer), cfg.Infra.DataPlatform.URL)
	}

	orderService := orderapp.NewOrderApplicationService(
		orderRepo,
		orderProcessingTimeout,
		tracer,
		adapter.NewBalanceLocalAdapter(balanceService),
		adapter.NewCouponLocalAdapter(useService),
		adapter.NewProductLocalAdapter(productService),
		orderPublisher,
		analytics,
	)
	orderHandler := orderiface.NewOrderHandler(orderService)

	// 6. 推送
	hub := notification.NewHub()
	wsHandler := notification.NewWSHandler(hub)
	pushReader := mq.NewKafkaReader(brokers, orderCompletedTopic, pushConsumerGroupID)
	pushConsumer := notification.NewOrderPushConsumer(pushReader, hub)

	// 7. 启动后台组件并进入服务循环
	bgCtx, bgCancel := context.WithCancel(context.Background())
	go hub.Run(bgCtx)
	scheduler.Start(bgCtx)
	rankingConsumer.Start(bgCtx)
	pushConsumer.Start(bgCtx)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: cfg.App.Name,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			balanceHandler.RegisterRoutes(appCtx.Router)
			couponHandler.RegisterRoutes(appCtx.Router)
			productHandler.RegisterRoutes(appCtx.Router)
			orderHandler.RegisterRoutes(appCtx.Router)
			wsHandler.RegisterRoutes(appCtx.Router)

			appCtx.Router.Handle("/metrics", promhttp.Handler())
			appCtx.Router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		},
		OnShutdown: func(ctx context.Context) {
			scheduler.Stop()
			rankingConsumer.Stop()
			pushConsumer.Stop()
			bgCancel()

			issueWriter.Close()
			orderWriter.Close()
			redisClient.Close()
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		},
	})
}

// buildLocker 按配置选择分布式锁后端。
func buildLocker(cfg *bootstrap.Config, redisClient *pkgredis.Client) lock.Locker {
	switch cfg.Infra.Lock.Backend {
	case "zookeeper":
		locker, err := lock.NewZkLocker(strings.Split(cfg.Infra.Zookeeper.Servers, ","), 5*time.Second)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize zookeeper locker")
		}
		return locker
	default:
		locker, err := lock.NewRedisLocker(redisClient)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize redis locker")
		}
		return locker
	}
}

// primeGates 用 DB 中的剩余额度初始化各券的 Redis 闸门。
// 重启后以 DB 为准重建，避免闸门计数漂移。
func primeGates(repo *couponinfra.GormCouponRepository, gate *couponinfra.RedisIssueGate) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	coupons, err := repo.FindAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load coupons for gate priming")
	}
	for _, c := range coupons {
		if err := gate.Prime(ctx, c.ID, c.Remaining()); err != nil {
			log.Fatal().Err(err).Int64("coupon_id", c.ID).Msg("failed to prime coupon gate")
		}
		logger.Logger().Info().Int64("coupon_id", c.ID).Int64("remaining", c.Remaining()).
			Msg("coupon gate primed")
	}
}
