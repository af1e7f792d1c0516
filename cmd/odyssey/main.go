package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-wms/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-wms/internal/app"
	"github.com/odyssey-erp/odyssey-wms/internal/auth"
	"github.com/odyssey-erp/odyssey-wms/internal/cart"
	"github.com/odyssey-erp/odyssey-wms/internal/inventory"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata/products"
	"github.com/odyssey-erp/odyssey-wms/internal/masterdata/suppliers"
	"github.com/odyssey-erp/odyssey-wms/internal/observability"
	"github.com/odyssey-erp/odyssey-wms/internal/orders"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/blob"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/db"
	"github.com/odyssey-erp/odyssey-wms/internal/procurement"
	"github.com/odyssey-erp/odyssey-wms/internal/rbac"
	"github.com/odyssey-erp/odyssey-wms/internal/reports"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
	"github.com/odyssey-erp/odyssey-wms/internal/users"
	"github.com/odyssey-erp/odyssey-wms/jobs"
	"github.com/odyssey-erp/odyssey-wms/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCLI(ctx, cfg, os.Args[2:], os.Stdout); err != nil {
			logger.Error("jobs cli", slog.Any("error", err))
			os.Exit(2)
		}
		return
	}

	if err := serve(ctx, cfg, logger, stop); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func runJobsCLI(ctx context.Context, cfg *app.Config, args []string, out io.Writer) error {
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()
	return cli.NewJobsCLI(client, inspector).Run(ctx, args, out)
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger, stop context.CancelFunc) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("odyssey-wms"))
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPoolSize)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store, uploadsDir, err := app.OpenBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	locker := cache.NewLocker(redisClient, cfg.CartLockTTL)
	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(rbac.NewPGStore(dbpool))
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	usersService := users.NewService(users.NewRepository(dbpool), auditLogger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	images := blob.NewImages(store, "products", cfg.MaxUploadBytes, logger)
	productService := products.NewService(products.NewRepository(dbpool), images, jobClient, auditLogger, logger)
	productService.WithInvalidator(reportCache)
	productHandler := products.NewHandler(logger, productService, rbacMiddleware, cfg.MaxUploadBytes)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger)
	inventoryService.WithInvalidator(reportCache)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, rbacMiddleware)

	supplierService := suppliers.NewService(suppliers.NewRepository(dbpool), auditLogger)
	supplierHandler := suppliers.NewHandler(logger, supplierService, rbacMiddleware)

	cartService := cart.NewService(cart.NewRepository(dbpool), locker)
	cartHandler := cart.NewHandler(logger, cartService, rbacMiddleware)

	orderService := orders.NewService(orders.NewRepository(dbpool), locker, jobClient, auditLogger, logger, cfg.ShippingFeeAmount())
	orderService.WithInvalidator(reportCache)
	orderHandler := orders.NewHandler(logger, orderService, rbacMiddleware)

	procurementService := procurement.NewService(procurement.NewRepository(dbpool), auditLogger, idempotencyStore)
	procurementService.WithInvalidator(reportCache)
	procurementHandler := procurement.NewHandler(logger, procurementService, rbacMiddleware)

	reportService := reports.NewService(reports.NewRepository(dbpool), reportCache)
	pdfClient := report.NewClient(cfg.GotenbergURL, report.WithLandscape())
	if err := pdfClient.Ping(ctx); err != nil {
		logger.Warn("gotenberg unavailable, pdf exports will fail", slog.Any("error", err))
	}
	reportHandler := reports.NewHandler(logger, reportService, rbacMiddleware, pdfClient)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		RBACMiddleware: rbacMiddleware,
		Metrics:        metrics,
		UploadsDir:     uploadsDir,
		HealthChecks: map[string]app.Pinger{
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		ProductHandler:     productHandler,
		InventoryHandler:   inventoryHandler,
		SupplierHandler:    supplierHandler,
		CartHandler:        cartHandler,
		OrderHandler:       orderHandler,
		ProcurementHandler: procurementHandler,
		ReportHandler:      reportHandler,
		JobHandler:         jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
