// Package main runs the Voluntree HTTP server with WebSocket notifications
// and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/voluntree/backend/config"
	"github.com/voluntree/backend/internal/analytics"
	"github.com/voluntree/backend/internal/applications"
	"github.com/voluntree/backend/internal/auth"
	"github.com/voluntree/backend/internal/hours"
	"github.com/voluntree/backend/internal/middleware"
	"github.com/voluntree/backend/internal/notifications"
	"github.com/voluntree/backend/internal/onboarding"
	"github.com/voluntree/backend/internal/opportunities"
	"github.com/voluntree/backend/internal/organizations"
	"github.com/voluntree/backend/internal/reference"
	"github.com/voluntree/backend/pkg/database"
	"github.com/voluntree/backend/pkg/queue"
	"github.com/voluntree/backend/pkg/redis"
	"github.com/voluntree/backend/pkg/response"
	"github.com/voluntree/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			DocumentsBucket:      cfg.AWS.DocumentsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// WebSocket notification hub with Redis fan-out
	pubsub := notifications.NewRedisPubSub(rdb.Client, logger)
	hub := notifications.NewHub(logger, pubsub, pubsub)

	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Organizations
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo)

	// Notifications
	notifRepo := notifications.NewRepository(pool)
	notifHandler := notifications.NewHandler(notifRepo)
	notifier := notifications.NewService(notifRepo, hub, jobQueue, authRepo, logger)

	// Registration wizard
	store := onboarding.NewPostgresStore(pool)
	engine := onboarding.NewEngine(store, authRepo, orgRepo, notifier, logger)
	draftRepo := onboarding.NewDraftRepository(pool)
	draftTTL := time.Duration(cfg.Onboarding.DraftTTLHours) * time.Hour
	onboardingHandler := onboarding.NewHandler(engine, draftRepo, s3Client, draftTTL, logger)

	// Opportunities
	oppRepo := opportunities.NewRepository(pool)
	oppHandler := opportunities.NewHandler(oppRepo, orgRepo, logger)
	requireOppAccess := opportunities.RequireOpportunityOrgAccess(oppRepo, orgRepo)

	// Applications
	appRepo := applications.NewRepository(pool)
	appHandler := applications.NewHandler(appRepo, oppRepo, orgRepo, authRepo, notifier, logger)

	// Volunteer hours
	hourRepo := hours.NewRepository(pool)
	hourHandler := hours.NewHandler(hourRepo, appRepo, oppRepo, orgRepo, logger)

	// Reference data (Redis cached)
	refRepo := reference.NewRepository(pool)
	refHandler := reference.NewHandler(refRepo, rdb)

	// Analytics (admin)
	analyticsHandler := analytics.NewHandler(pool)

	jwtValidate := func(token string) (userID string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID.String(), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Reference data (public; the wizard's dropdowns)
	ref := router.Group("/reference")
	{
		ref.GET("/countries", refHandler.Countries)
		ref.GET("/countries/:id/cities", refHandler.Cities)
		ref.GET("/categories", refHandler.Categories)
	}

	// Public browse
	router.GET("/opportunities", oppHandler.List)
	router.GET("/opportunities/:id", oppHandler.Get)
	router.GET("/organizations/by-slug/:slug", orgHandler.GetBySlug)

	// Organization registration wizard (draft session token, no JWT required)
	orgOnboarding := router.Group("/onboarding/organization")
	{
		orgOnboarding.POST("/session", middleware.OptionalJWT(jwtService), onboardingHandler.CreateDraftSession)

		steps := orgOnboarding.Group("")
		steps.Use(onboardingHandler.DraftSession())
		{
			steps.GET("/progress", onboardingHandler.OrganizationProgress)
			steps.GET("/steps/:step", onboardingHandler.OrganizationStep)
			steps.POST("/steps/:step", onboardingHandler.OrganizationSubmit)
			steps.POST("/steps/:step/autosave", onboardingHandler.OrganizationAutoSave)
		}
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Volunteer registration wizard
		vol := api.Group("/onboarding/volunteer")
		{
			vol.GET("/progress", onboardingHandler.VolunteerProgress)
			vol.GET("/steps/:step", onboardingHandler.VolunteerStep)
			vol.POST("/steps/:step", onboardingHandler.VolunteerSubmit)
			vol.POST("/steps/:step/skip", onboardingHandler.VolunteerSkip)
			vol.POST("/steps/:step/autosave", onboardingHandler.VolunteerAutoSave)
			vol.POST("/verification/upload-url", onboardingHandler.VerificationUploadURL)
		}

		// Organizations
		api.GET("/organizations", orgHandler.ListMyOrganizations)
		api.POST("/organizations/join", orgHandler.JoinOrganization)
		api.GET("/organizations/:id/members", orgHandler.ListMembers)

		// Opportunities (management)
		api.POST("/opportunities", oppHandler.Create)
		api.PUT("/opportunities/:id", requireOppAccess, oppHandler.Update)
		api.POST("/opportunities/:id/publish", requireOppAccess, oppHandler.Publish(true))
		api.POST("/opportunities/:id/unpublish", requireOppAccess, oppHandler.Publish(false))
		api.DELETE("/opportunities/:id", requireOppAccess, oppHandler.Delete)
		api.GET("/opportunities/:id/applications", requireOppAccess, appHandler.ListByOpportunity)
		api.GET("/opportunities/:id/hours", requireOppAccess, hourHandler.ListByOpportunity)

		// Applications
		api.POST("/opportunities/:id/apply", appHandler.Apply)
		api.GET("/applications", appHandler.ListMine)
		api.PATCH("/applications/:id", appHandler.Decide)
		api.POST("/applications/:id/withdraw", appHandler.Withdraw)

		// Volunteer hours
		api.POST("/hours", hourHandler.Log)
		api.GET("/hours", hourHandler.ListMine)
		api.GET("/hours/totals", hourHandler.MyTotals)
		api.POST("/hours/:id/confirm", hourHandler.Confirm)

		// Notifications
		api.GET("/notifications", notifHandler.List)
		api.POST("/notifications/:id/read", notifHandler.MarkRead)
		api.POST("/notifications/read-all", notifHandler.MarkAllRead)

		// Analytics (admin)
		api.GET("/analytics/onboarding", middleware.RequireRole("admin"), analyticsHandler.OnboardingFunnel)
		api.GET("/analytics/totals", middleware.RequireRole("admin"), analyticsHandler.PlatformTotals)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws/notifications", notifications.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
