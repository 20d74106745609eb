// Storefront 主程序
// 功能：购物车、结账会话、支付确认与订单查询
// 架构：DDD 分层 + GORM + Redis + Kafka 事务发件箱
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	addressapp "github.com/wyfcoding/storefront/internal/address/application"
	addressdomain "github.com/wyfcoding/storefront/internal/address/domain"
	addresspersistence "github.com/wyfcoding/storefront/internal/address/infrastructure/persistence"
	addresshttp "github.com/wyfcoding/storefront/internal/address/interfaces/http"
	cartapp "github.com/wyfcoding/storefront/internal/cart/application"
	cartdomain "github.com/wyfcoding/storefront/internal/cart/domain"
	cartpersistence "github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence"
	carthttp "github.com/wyfcoding/storefront/internal/cart/interfaces/http"
	catalogdomain "github.com/wyfcoding/storefront/internal/catalog/domain"
	catalogpersistence "github.com/wyfcoding/storefront/internal/catalog/infrastructure/persistence"
	orderapp "github.com/wyfcoding/storefront/internal/order/application"
	orderdomain "github.com/wyfcoding/storefront/internal/order/domain"
	orderpersistence "github.com/wyfcoding/storefront/internal/order/infrastructure/persistence"
	orderhttp "github.com/wyfcoding/storefront/internal/order/interfaces/http"
	"github.com/wyfcoding/storefront/internal/payment/infrastructure/stripe"
	"github.com/wyfcoding/storefront/pkg/auth"
	"github.com/wyfcoding/storefront/pkg/cache"
	"github.com/wyfcoding/storefront/pkg/config"
	"github.com/wyfcoding/storefront/pkg/db"
	"github.com/wyfcoding/storefront/pkg/idgen"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/metrics"
	"github.com/wyfcoding/storefront/pkg/middleware"
	"github.com/wyfcoding/storefront/pkg/mq"
	"github.com/wyfcoding/storefront/pkg/outbox"
	"github.com/wyfcoding/storefront/pkg/ratelimit"
	"github.com/wyfcoding/storefront/pkg/trace"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. 加载配置
	configPath := config.GetEnv("APP_CONFIG", "configs/storefront/config.toml")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	loggerCfg := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}
	if err := logger.Init(loggerCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Info(ctx, "Starting Storefront",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化追踪
	if cfg.Tracing.Enabled {
		shutdown, err := trace.Init(ctx, trace.Config{
			ServiceName:  cfg.ServiceName,
			Version:      cfg.Version,
			Environment:  cfg.Environment,
			Endpoint:     cfg.Tracing.CollectorEndpoint,
			SamplingRate: cfg.Tracing.SamplingRate,
		})
		if err != nil {
			logger.Error(ctx, "Failed to initialize tracer", "error", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error(ctx, "Failed to shutdown tracer", "error", err)
				}
			}()
			logger.Info(ctx, "Tracer initialized", "endpoint", cfg.Tracing.CollectorEndpoint)
		}
	}

	// 4. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(
			&catalogdomain.Product{}, &catalogdomain.ProductVariant{},
			&addressdomain.ShippingAddress{},
			&cartdomain.Cart{}, &cartdomain.CartItem{},
			&orderdomain.Order{}, &orderdomain.OrderItem{}, &orderdomain.ProcessedWebhookEvent{},
			&outbox.Message{},
		); err != nil {
			logger.Fatal(ctx, "Failed to migrate database", "error", err)
		}
	}

	// 5. 初始化 Redis
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
	}
	defer redisCache.Close()

	// 6. 初始化限流器
	rateLimiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())

	// 7. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)
	registry := prometheus.NewRegistry()
	if err := metricsInstance.Register(registry); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}

	// 8. 初始化 Kafka 生产者与死信队列
	var relay *outbox.Relay
	producer, err := mq.NewProducer(mq.KafkaConfig{
		Brokers:      cfg.Kafka.Brokers,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	})
	if err != nil {
		logger.Warn(ctx, "Kafka producer disabled, outbox messages will accumulate", "error", err)
	} else {
		defer producer.Close()
		dlq := mq.NewDeadLetterQueue(producer, cfg.Kafka.DeadLetterTopic)
		relay = outbox.NewRelay(database, producer, dlq, metricsInstance, outbox.RelayConfig{
			BatchSize:   cfg.Outbox.BatchSize,
			Interval:    cfg.Outbox.Interval,
			MaxAttempts: cfg.Outbox.MaxAttempts,
			Retention:   cfg.Outbox.Retention,
		})
	}

	// 9. 初始化订单号生成器
	numbers, err := idgen.New(cfg.Checkout.NodeID)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize order number generator", "error", err)
	}

	// 10. 初始化仓储与应用服务
	publisher := outbox.NewPublisher(database, cfg.Outbox.TopicPrefix)
	variantRepo := catalogpersistence.NewVariantRepository(database)
	addressService := addressapp.NewAddressService(addresspersistence.NewAddressRepository(database))
	cartService := cartapp.NewCartService(database, cartpersistence.NewCartRepository(database),
		variantRepo, addressService, publisher, cfg.Payment.Currency)

	orderRepo := orderpersistence.NewOrderRepository(database)
	provider := stripe.NewClient(stripe.Config{
		BaseURL:         cfg.Payment.BaseURL,
		SecretKey:       cfg.Payment.SecretKey,
		Timeout:         cfg.Payment.Timeout,
		BreakerFailures: cfg.Payment.BreakerFailures,
		BreakerTimeout:  cfg.Payment.BreakerTimeout,
	}, metricsInstance)
	verifier := stripe.NewWebhookVerifier(cfg.Payment.WebhookSecret, cfg.Payment.WebhookTolerance)

	checkoutService := orderapp.NewCheckoutService(database, orderRepo, cartService, addressService,
		provider, publisher, numbers, redisCache, metricsInstance, orderapp.CheckoutConfig{
			Currency:        cfg.Payment.Currency,
			PublicURL:       cfg.Payment.PublicURL,
			ProviderTimeout: cfg.Payment.Timeout,
			LockTTL:         cfg.Checkout.LockTTL,
		})
	confirmationService := orderapp.NewConfirmationService(database, orderRepo, provider, verifier,
		orderapp.NewOrderMaterializer(cartService, metricsInstance), publisher, metricsInstance, cfg.Payment.Timeout)
	queryService := orderapp.NewOrderQueryService(orderRepo)
	sweeper := orderapp.NewExpirySweeper(database, orderRepo, publisher, metricsInstance,
		cfg.Checkout.PendingOrderTTL, cfg.Checkout.SweepInterval)

	// 11. 创建 HTTP 服务器
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	router := newRouter(cfg, metricsInstance, tokens, rateLimiter,
		addresshttp.NewAddressHandler(addressService),
		carthttp.NewCartHandler(cartService),
		orderhttp.NewOrderHandler(checkoutService, confirmationService, queryService),
	)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 12. 启动 HTTP、指标服务与后台任务
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		g.Go(metricsServer.Start)
	}
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error { return sweeper.Run(gctx) })

	// 13. 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down Storefront")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "HTTP server shutdown error", "error", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error(ctx, "Metrics server shutdown error", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Storefront exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Storefront stopped")
}

// newRouter 组装中间件与路由
func newRouter(
	cfg *config.Config,
	m *metrics.Metrics,
	tokens *auth.TokenManager,
	limiter ratelimit.RateLimiter,
	addresses *addresshttp.AddressHandler,
	carts *carthttp.CartHandler,
	orders *orderhttp.OrderHandler,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinLoggingMiddleware(m))
	router.Use(middleware.GinCORSMiddleware(cfg.HTTP.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	var checkoutLimit, webhookLimit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		checkoutLimit = middleware.RateLimitMiddleware(limiter, cfg.RateLimit, "checkout")
		webhookLimit = middleware.RateLimitMiddleware(limiter, cfg.RateLimit, "webhook")
	}

	api := router.Group("/api/v1")
	orders.RegisterWebhook(api, webhookLimit)

	authed := api.Group("")
	authed.Use(middleware.Authenticate(tokens, cfg.Auth.CookieName))
	carts.RegisterRoutes(authed)
	addresses.RegisterRoutes(authed)
	orders.RegisterRoutes(authed, checkoutLimit)

	return router
}
