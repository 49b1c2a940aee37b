package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fekuna/omnipos-order-service/config"
	"github.com/fekuna/omnipos-order-service/internal/audit"
	auditRepoPkg "github.com/fekuna/omnipos-order-service/internal/audit/repository"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/cache"
	"github.com/fekuna/omnipos-order-service/internal/cart"
	"github.com/fekuna/omnipos-order-service/internal/database"
	"github.com/fekuna/omnipos-order-service/internal/device"
	"github.com/fekuna/omnipos-order-service/internal/kitchen"
	"github.com/fekuna/omnipos-order-service/internal/logger"
	"github.com/fekuna/omnipos-order-service/internal/middleware"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/payment"
	"github.com/fekuna/omnipos-order-service/internal/realtime"
	"github.com/fekuna/omnipos-order-service/internal/view"

	invRepoPkg "github.com/fekuna/omnipos-order-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-order-service/internal/inventory/usecase"

	orderRepoPkg "github.com/fekuna/omnipos-order-service/internal/order/repository"
	orderUCPkg "github.com/fekuna/omnipos-order-service/internal/order/usecase"

	payRepoPkg "github.com/fekuna/omnipos-order-service/internal/payment/repository"
	payUCPkg "github.com/fekuna/omnipos-order-service/internal/payment/usecase"

	prodRepoPkg "github.com/fekuna/omnipos-order-service/internal/product/repository"
	prodUCPkg "github.com/fekuna/omnipos-order-service/internal/product/usecase"

	tableRepoPkg "github.com/fekuna/omnipos-order-service/internal/table/repository"
	tableUCPkg "github.com/fekuna/omnipos-order-service/internal/table/usecase"
)

const realtimeHealthService = "omnipos.order.realtime"

func main() {
	// 1. Load Configuration
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
	}
	appLogger := logger.NewZapLogger(logConfig).With(zap.String("branch_id", cfg.Branch.ID))
	defer appLogger.Sync()

	if cfg.Branch.ID == "" {
		appLogger.Fatal("BRANCH_ID is required")
	}

	// 3. Connect to Database
	dbConfig := &database.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	}
	if cfg.Postgres.MigrateOnStart {
		if err := database.Migrate(dbConfig); err != nil {
			appLogger.Fatal("Could not migrate database", zap.Error(err))
		}
		appLogger.Info("Database schema is up to date")
	}
	db, err := database.NewPostgres(dbConfig)
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Repositories
	prodRepo := prodRepoPkg.NewPGRepository(db)
	invRepo := invRepoPkg.NewPGRepository(db)
	orderRepo := orderRepoPkg.NewPGRepository(db)
	payRepo := payRepoPkg.NewPGRepository(db)
	tableRepo := tableRepoPkg.NewPGRepository(db)
	auditRepo := auditRepoPkg.NewPGRepository(db)

	// 5. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 6. Initialize UseCases
	emitter := audit.NewEmitter(auditRepo)
	views := view.NewRegistry(cfg.Branch.ID, redisClient, cfg.View.TTL, appLogger)

	invUC := invUCPkg.NewInventoryUseCase(invRepo, prodRepo, redisClient, emitter, views, appLogger)
	prodUC := prodUCPkg.NewProductUseCase(prodRepo, invUC, redisClient, appLogger)
	orderUC := orderUCPkg.NewOrderUseCase(orderRepo, invUC, payRepo, views, emitter, appLogger)
	tableUC := tableUCPkg.NewTableUseCase(tableRepo, views, emitter, appLogger)
	coordinator := kitchen.NewCoordinator(orderUC, views, appLogger)

	pricing := cart.NewConfig(cfg.Pricing.TaxRate, cfg.Pricing.ServiceChargeRate)
	session := cart.New(pricing, invUC)
	hub := device.NewHub(cfg.Branch.ID, device.NopPrinter{}, device.NopCashDrawer{}, device.NopScanner{}, prodUC, session, appLogger)
	if err := hub.Configure(device.Config{}); err != nil {
		appLogger.Warn("Some devices could not be configured", zap.Error(err))
	}
	defer func() {
		if err := hub.Close(); err != nil {
			appLogger.Warn("Failed to close devices", zap.Error(err))
		}
	}()

	gateways := map[model.PaymentMethod]payment.Gateway{
		model.MethodCash: payment.CashGateway{},
	}
	payUC := payUCPkg.NewPaymentUseCase(payRepo, orderUC, gateways, hub, redisClient, emitter, cfg.Payment.Timeout, appLogger)

	// 7. Register Views
	views.Register(view.OrderList, func(ctx context.Context, branchID string) (any, error) {
		return orderUC.ListActive(ctx, branchID)
	})
	views.Register(view.KitchenQueue, coordinator.Load)
	views.Register(view.StockLevels, func(ctx context.Context, branchID string) (any, error) {
		return invUC.StockLevels(ctx, branchID)
	})
	views.Register(view.TableGrid, func(ctx context.Context, branchID string) (any, error) {
		return tableUC.List(ctx, branchID)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 8. Start Change Notification Router
	stream := realtime.NewKafkaStream(realtime.KafkaStreamConfig{
		Brokers:     cfg.Kafka.Brokers,
		TopicPrefix: cfg.Kafka.TopicPrefix,
		GroupID:     cfg.Kafka.GroupID,
	}, appLogger)
	router := realtime.NewRouter(realtime.Config{
		BranchID:          cfg.Branch.ID,
		Schema:            cfg.Realtime.Schema,
		Collections:       cfg.Realtime.Collections,
		SubscribeTimeout:  cfg.Realtime.SubscribeTimeout,
		ReconnectBackoff:  cfg.Realtime.ReconnectBackoff,
		ReconcileInterval: cfg.Realtime.ReconcileInterval,
		DedupeCapacity:    cfg.Realtime.DedupeCapacity,
	}, stream, views, coordinator, realtime.NewLogNotifier(appLogger), appLogger)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(realtimeHealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	router.OnStateChange(func(s realtime.State) {
		status := healthpb.HealthCheckResponse_SERVING
		if s == realtime.StateDisconnected {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		healthServer.SetServingStatus(realtimeHealthService, status)
	})

	// Anything still pending past the payment timeout was left by a previous process.
	if n, err := payUC.FailAbandoned(ctx, auth.System(cfg.Branch.ID), time.Now().Add(-cfg.Payment.Timeout)); err != nil {
		appLogger.Error("Failed to resolve abandoned payments", zap.Error(err))
	} else if n > 0 {
		appLogger.Warn("Resolved abandoned payments as failed", zap.Int("count", n))
	}

	if err := router.Reconcile(ctx); err != nil {
		appLogger.Warn("Initial view load incomplete", zap.Error(err))
	}
	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		if err := router.Run(ctx); err != nil {
			appLogger.Error("Change notification router stopped", zap.Error(err))
		}
	}()
	appLogger.Info("Change notification router started", zap.Strings("collections", cfg.Realtime.Collections))

	// 9. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(middleware.ContextInterceptor(appLogger)),
	)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()
	<-routerDone
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}
