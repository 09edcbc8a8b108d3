package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/apperrors"
	"checkout-service/clients"
	"checkout-service/config"
	"checkout-service/controllers"
	"checkout-service/currency"
	"checkout-service/database"
	"checkout-service/events"
	"checkout-service/logger"
	"checkout-service/middleware"
	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"
	"checkout-service/refdata"
	"checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/saga"
	"checkout-service/services"
	"checkout-service/shipping"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// AWS is only loaded when something needs it
	var awsCfg sdkaws.Config
	if cfg.NeedsAWS() {
		awsCfg, err = aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
	}

	var sink io.Writer
	if cfg.CloudWatchEnabled {
		cw, err := aws_pkg.NewCloudWatchLogsWriter(ctx, awsCfg, cfg.CloudWatchLogGroup, cfg.ServiceName)
		if err != nil {
			log.Printf("CloudWatch Logs init failed, logging to stdout only: %v", err)
		} else {
			sink = cw
		}
	}

	zapLogger, err := logger.Initialize(cfg.Env, sink)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	// Reference data
	var loader *refdata.Loader
	if cfg.NeedsAWS() {
		loader = refdata.NewLoader(aws_pkg.NewS3Client(awsCfg, cfg.S3UsePathStyle), aws_pkg.NewDynamoDBClient(awsCfg))
	} else {
		loader = refdata.NewLoader(nil, nil)
	}
	rules, err := loader.LoadShippingRules(ctx, cfg.ShippingRulesSource)
	if err != nil {
		zapLogger.Fatal("Failed to load shipping rules", zap.String("source", cfg.ShippingRulesSource), zap.Error(err))
	}
	regions, err := loader.LoadRegions(ctx, cfg.RegionsSource)
	if err != nil {
		zapLogger.Fatal("Failed to load regions", zap.String("source", cfg.RegionsSource), zap.Error(err))
	}
	catalog, err := currency.NewCatalog(regions, cfg.DefaultRegion)
	if err != nil {
		zapLogger.Fatal("Invalid default region", zap.Error(err))
	}
	fees := shipping.NewResolver(rules)
	zapLogger.Info("Reference data loaded",
		zap.Int("shipping_rules", len(rules.Rules)), zap.Int("regions", len(regions.Regions)))

	// Redis
	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck
	zapLogger.Info("Connected to Redis")

	// Postgres step log (optional)
	var stepLog saga.StepLog
	if cfg.StepLogEnabled() {
		db, err := database.ConnectPostgres(cfg.Postgres, zapLogger, &models.CommitStep{})
		if err != nil {
			zapLogger.Fatal("Failed to connect to Postgres", zap.Error(err))
		}
		defer database.Close(db) //nolint:errcheck
		stepLog = repository.NewGormStepLogRepository(db)
	} else {
		zapLogger.Warn("POSTGRES_HOST not set, commit steps are only logged")
	}

	// Events
	var publisher events.Publisher = events.NopPublisher{Logger: zapLogger}
	switch cfg.EventsTransport {
	case config.TransportSNS:
		publisher = events.NewSNSPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.SNSTopicArn)
	case config.TransportSQS:
		publisher = events.NewSQSPublisher(aws_pkg.NewSQSSender(awsCfg, cfg.SQSQueueURL))
	case config.TransportKafka:
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), cfg.KafkaTopic)
		defer kp.Close() //nolint:errcheck
		publisher = kp
	}
	zapLogger.Info("Event transport configured", zap.String("transport", cfg.EventsTransport))

	var metrics aws_pkg.MetricsRecorder = aws_pkg.NopMetrics{}
	if cfg.MetricsEnabled {
		metrics = aws_pkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, true)
	}

	// DI chain
	backend := clients.NewBackendClient(cfg.BackendURL, cfg.BackendTimeout)
	sessions := repository.NewRedisSessionRepository(redisClient, cfg.SessionTTL)
	selections := repository.NewRedisSelectionRepository(redisClient, cfg.SelectionTTL)
	similarCache := repository.NewRedisSimilarProductsCache(redisClient, cfg.SimilarCacheTTL, zapLogger)

	cartAggregator := services.NewCartAggregator(backend, backend, cfg.ResolveConcurrency, zapLogger)
	addressResolver := services.NewAddressResolver(backend, backend, selections, zapLogger)
	checkout := services.NewCheckoutOrchestrator(services.CheckoutDeps{
		Cart:              cartAggregator,
		Addresses:         addressResolver,
		Fees:              fees,
		CartAPI:           backend,
		Users:             backend,
		Orders:            backend,
		Shipments:         backend,
		Sessions:          sessions,
		Saga:              saga.NewRunner(stepLog, zapLogger),
		Events:            publisher,
		Metrics:           metrics,
		Logger:            zapLogger,
		CartClearAttempts: cfg.CartClearAttempts,
		CartClearBackoff:  cfg.CartClearBackoff,
		CommitTimeout:     cfg.CommitTimeout,
	})
	orderHistory := services.NewOrderHistoryService(backend, backend, backend, publisher, metrics, zapLogger)
	similar := services.NewSimilarProductsService(backend, backend, similarCache, metrics, zapLogger)

	writeLimiter := middleware.NewRateLimiter(ctx, rate.Limit(float64(cfg.RateLimitPerMinute)/60), cfg.RateLimitBurst, 10*time.Minute)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(apperrors.ErrorMiddleware())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.MetricsMiddleware(metrics, cfg.ServiceName))

	routes.RegisterRoutes(r, routes.Controllers{
		Checkout: controllers.NewCheckoutController(checkout, addressResolver, catalog),
		Orders:   controllers.NewOrderController(orderHistory, catalog),
		Products: controllers.NewProductController(similar, catalog),
		Shipping: controllers.NewShippingController(fees, catalog),
	}, routes.Options{
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.AllowedOrigins,
		Auth: middleware.AuthConfig{
			TrustGatewayHeaders: cfg.TrustGatewayHeaders,
			JWTSecret:           []byte(cfg.JWTSecret),
		},
		WriteLimiter: writeLimiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	zapLogger.Info("Checkout service started", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	<-quit
	zapLogger.Info("Shutting down checkout service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exited cleanly")
}
