package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	"go.uber.org/zap"

	"crmsaas/internal/audit"
	"crmsaas/internal/caching"
	"crmsaas/internal/config"
	"crmsaas/internal/handlers"
	"crmsaas/internal/jobs/background"
	"crmsaas/internal/middleware"
	"crmsaas/internal/provisioner"
	"crmsaas/internal/repositories"
	"crmsaas/internal/services"
	"crmsaas/internal/storage"
	"crmsaas/internal/tenancy"
	"crmsaas/pkg/database"
	pkglog "crmsaas/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("CRM_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := pkglog.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Database.ControlDSN == "" {
		logger.Fatal("database.control_dsn is required (CRM_DATABASE_CONTROL_DSN)")
	}

	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		jwtSecret = random.String(32)
		logger.Warn("jwt secret not configured, using a generated one; sessions will not survive restarts")
	}

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 15*time.Second)
	control, err := database.NewPool(dialCtx, cfg.Database.ControlDSN)
	dialCancel()
	if err != nil {
		logger.Fatal("failed to connect to control database", zap.Error(err))
	}
	defer control.Close()

	registry, err := tenancy.NewRegistry(cfg.Database.ControlDSN)
	if err != nil {
		logger.Fatal("failed to build tenant registry", zap.Error(err))
	}
	defer registry.Close()

	router := tenancy.NewRouter(control, registry)
	prov := provisioner.New(control, registry, logger)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if result, err := prov.EnsureControlSchema(bootCtx); err != nil {
		bootCancel()
		logger.Fatal("control schema provisioning failed", zap.Error(err))
	} else if !result.Success {
		logger.Warn("control schema incomplete after provisioning",
			zap.Strings("missing_tables", result.MissingTables))
	}
	bootCancel()

	// Repositories
	tenantRepo := repositories.NewTenantRepo(router)
	userRepo := repositories.NewUserRepo(router)
	tokenRepo := repositories.NewTokenRepo(router)
	customerRepo := repositories.NewCustomerRepo(router)
	leadRepo := repositories.NewLeadRepo(router)
	branchRepo := repositories.NewBranchRepo(router)
	categoryRepo := repositories.NewCategoryRepo(router)
	historyRepo := repositories.NewHistoryRepo(router)
	apiHistoryRepo := repositories.NewAPIHistoryRepo(router)

	// Infrastructure services
	cacheSvc := caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	mailer := services.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Pass, cfg.SMTP.From)

	objectStore, err := storage.NewMinioStore(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.UseSSL)
	if err != nil {
		logger.Fatal("failed to initialize object store", zap.Error(err))
	}
	bucketCtx, bucketCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := objectStore.EnsureBucket(bucketCtx, cfg.Minio.Bucket); err != nil {
		logger.Warn("object store bucket not ready, import archiving degraded", zap.Error(err))
	}
	bucketCancel()

	recorder := audit.NewRecorder(historyRepo, logger)

	// Domain services
	tenantSvc := services.NewTenantService(tenantRepo, prov, cacheSvc, cfg.Database.TenantPrefix, logger)
	authSvc := services.NewAuthService(userRepo, tokenRepo, tenantRepo, cacheSvc, mailer, jwtSecret, logger)
	customerSvc := services.NewCustomerService(customerRepo, recorder)
	leadSvc := services.NewLeadService(leadRepo, customerRepo, recorder)
	branchSvc := services.NewBranchService(branchRepo, recorder)
	categorySvc := services.NewCategoryService(categoryRepo, recorder)
	importerSvc := services.NewImporterService(customerSvc, leadSvc, customerRepo, objectStore, cfg.Minio.Bucket, logger)

	// Handlers
	authHandlers := handlers.NewAuthHandlers(authSvc)
	tenantHandlers := handlers.NewTenantHandlers(tenantSvc)
	customerHandlers := handlers.NewCustomerHandlers(customerSvc)
	leadHandlers := handlers.NewLeadHandlers(leadSvc)
	branchHandlers := handlers.NewBranchHandlers(branchSvc)
	categoryHandlers := handlers.NewCategoryHandlers(categorySvc)
	userHandlers := handlers.NewUserHandlers(userRepo)
	historyHandlers := handlers.NewHistoryHandlers(historyRepo, apiHistoryRepo)
	importHandlers := handlers.NewImportHandlers(importerSvc)
	healthHandlers := handlers.NewHealthHandlers(control)

	resolver := middleware.NewTenantResolver(tenantSvc, userRepo, logger)

	scheduler, err := background.NewJobScheduler(tenantSvc, tenantRepo, tokenRepo, logger)
	if err != nil {
		logger.Fatal("failed to build job scheduler", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	e := echo.New()
	e.HideBanner = true

	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	e.GET("/health", healthHandlers.HealthCheck)

	api := e.Group("/api")

	// Public routes still resolve a tenant from the host or header so login
	// lands on the right store.
	auth := api.Group("/auth", resolver.Resolve())
	auth.POST("/login", authHandlers.Login)
	auth.POST("/logout", authHandlers.Logout)
	auth.POST("/otp", authHandlers.RequestOTP)
	auth.POST("/verify", authHandlers.VerifyOTP)

	protected := api.Group("",
		middleware.JWT(jwtSecret),
		middleware.Principal(),
		resolver.Resolve(),
		middleware.APILogger(apiHistoryRepo, logger),
	)

	protected.POST("/auth/register", authHandlers.Register)

	protected.GET("/me", userHandlers.Me)
	protected.GET("/users", userHandlers.ListUsers)
	protected.GET("/users/:id", userHandlers.GetUser)
	protected.PUT("/users/:id", userHandlers.UpdateUser)
	protected.DELETE("/users/:id", userHandlers.DeactivateUser)

	protected.POST("/tenants", tenantHandlers.RegisterTenant)
	protected.GET("/tenants", tenantHandlers.ListTenants)
	protected.GET("/tenants/:id", tenantHandlers.GetTenant)
	protected.DELETE("/tenants/:id", tenantHandlers.DeactivateTenant)
	protected.POST("/tenants/:id/provision", tenantHandlers.ProvisionTenant)

	protected.GET("/customers", customerHandlers.ListCustomers)
	protected.POST("/customers", customerHandlers.CreateCustomer)
	protected.GET("/customers/:id", customerHandlers.GetCustomer)
	protected.PUT("/customers/:id", customerHandlers.UpdateCustomer)
	protected.DELETE("/customers/:id", customerHandlers.DeleteCustomer)
	protected.GET("/customers/:id/history", historyHandlers.CustomerHistory())

	protected.GET("/leads", leadHandlers.ListLeads)
	protected.POST("/leads", leadHandlers.CreateLead)
	protected.GET("/leads/:id", leadHandlers.GetLead)
	protected.PUT("/leads/:id", leadHandlers.UpdateLead)
	protected.PUT("/leads/:id/status", leadHandlers.UpdateLeadStatus)
	protected.DELETE("/leads/:id", leadHandlers.DeleteLead)
	protected.GET("/leads/:id/history", historyHandlers.LeadHistory())
	protected.POST("/leads/:id/calls", leadHandlers.AddCallSummary)
	protected.GET("/leads/:id/calls", leadHandlers.ListCallSummaries)

	protected.GET("/branches", branchHandlers.ListBranches)
	protected.POST("/branches", branchHandlers.CreateBranch)
	protected.GET("/branches/:id", branchHandlers.GetBranch)
	protected.PUT("/branches/:id", branchHandlers.UpdateBranch)
	protected.DELETE("/branches/:id", branchHandlers.DeleteBranch)
	protected.GET("/branches/:id/history", historyHandlers.BranchHistory())

	protected.GET("/categories", categoryHandlers.ListCategories)
	protected.POST("/categories", categoryHandlers.CreateCategory)
	protected.GET("/categories/:id", categoryHandlers.GetCategory)
	protected.PUT("/categories/:id", categoryHandlers.UpdateCategory)
	protected.DELETE("/categories/:id", categoryHandlers.DeleteCategory)
	protected.GET("/categories/:id/history", historyHandlers.CategoryHistory())

	protected.GET("/history/:entity", historyHandlers.RecentHistory)
	protected.GET("/history/:entity/:id", historyHandlers.HistoryDetail)
	protected.GET("/api-history", historyHandlers.ListAPIHistory)
	protected.GET("/api-history/stats", historyHandlers.APIHistoryStats)

	protected.POST("/imports/customers", importHandlers.ImportCustomers)
	protected.POST("/imports/leads", importHandlers.ImportLeads)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("server starting", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
