package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/javieralejandro89/beztshop-checkout/configs"
	"github.com/javieralejandro89/beztshop-checkout/internal/adapter/api"
	"github.com/javieralejandro89/beztshop-checkout/internal/adapter/cache"
	apphttp "github.com/javieralejandro89/beztshop-checkout/internal/adapter/http"
	"github.com/javieralejandro89/beztshop-checkout/internal/adapter/http/middleware"
	"github.com/javieralejandro89/beztshop-checkout/internal/adapter/kafka"
	"github.com/javieralejandro89/beztshop-checkout/internal/adapter/queue"
	domain "github.com/javieralejandro89/beztshop-checkout/internal/entity"
	"github.com/javieralejandro89/beztshop-checkout/internal/logging"
	"github.com/javieralejandro89/beztshop-checkout/internal/usecase"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logging.Init(cfg.App.Name, "./logs/app.log")
	l := logging.New("app")
	l.Info("checkout-api: starting up")

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, err
	}

	// init rabbitmq producer
	conn, err := amqp091.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	producer, err := queue.NewRabbitProducer(ch)
	if err != nil {
		return nil, nil, err
	}

	// upstream session client + gateway
	sc := api.NewSessionClient(cfg)
	gw := api.NewStorefrontGateway(sc)

	// engine components
	policy := usecase.CheckoutPolicy{
		Currency:                   cfg.Checkout.Currency,
		TaxMode:                    domain.TaxMode(cfg.Checkout.TaxMode),
		TaxRateBps:                 cfg.Checkout.TaxRateBps,
		FreeShippingThresholdCents: cfg.Checkout.FreeShippingThresholdCents,
		DefaultShippingCents:       cfg.Checkout.DefaultShippingCents,
	}
	stock := usecase.NewStockReconciler(gw)
	coupons := usecase.NewCouponEvaluator(gw)
	calc := usecase.NewTotalsCalculator(policy, coupons)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	payment := usecase.NewPaymentHandoff(gw, idem)
	engine := usecase.NewEngine(stock, coupons, calc, payment, producer, policy, cfg.Checkout.SessionTTL)

	engineCtx, stopEngine := context.WithCancel(context.Background())
	engine.StartSweeper(engineCtx, cfg.Checkout.SessionTTL/2)

	// register kafka listener for payment settlements
	if err := setupKafkaListener(engineCtx, cfg, engine); err != nil {
		stopEngine()
		return nil, nil, err
	}

	// handlers + router + middleware
	h := apphttp.NewCheckoutHandler(engine)
	auth := middleware.NewAuthz(cfg)
	router := apphttp.NewRouter(h, auth)

	cleanup := func() {
		stopEngine()
		_ = ch.Close()
		_ = conn.Close()
		_ = rdb.Close()
	}

	return &App{Router: router}, cleanup, nil
}

func setupKafkaListener(ctx context.Context, cfg configs.Config, engine *usecase.Engine) error {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.DialTimeout)
	if err != nil {
		return err
	}

	h := kafka.NewOrderStatusChangedHandler(engine)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.TopicOrders}, h.Handle)
	consumer.Logger = logging.New("kafka")

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			logging.New("kafka").Error("consumer stopped", "err", err)
		}
	}()
	return nil
}
