package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/grievance-desk/internal/api/http"
	"github.com/spec-kit/grievance-desk/internal/api/http/handlers"
	"github.com/spec-kit/grievance-desk/internal/auth"
	"github.com/spec-kit/grievance-desk/internal/config"
	"github.com/spec-kit/grievance-desk/internal/events"
	"github.com/spec-kit/grievance-desk/internal/media"
	"github.com/spec-kit/grievance-desk/internal/observability"
	"github.com/spec-kit/grievance-desk/internal/persistence"
	"github.com/spec-kit/grievance-desk/internal/repository"
	"github.com/spec-kit/grievance-desk/internal/service"
	"github.com/spec-kit/grievance-desk/internal/sms"
	"github.com/spec-kit/grievance-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	metrics.Registry().MustRegister(pg.Collectors()...)

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	otpRepo := repository.NewOTPRepository(pool)

	store, err := media.NewLocalStore(cfg.Storage.PublicRoot)
	if err != nil {
		logger.Fatal("failed to prepare public storage", zap.Error(err))
	}
	encoders := media.DefaultEncoders(cfg.Media.VipsEnabled)
	if cfg.Media.VipsEnabled && !encoders[0].Available() {
		logger.Warn("webp codec unavailable, images are re-encoded as png or jpeg",
			zap.String("hint", "build with -tags vips and install libvips"))
	}
	processor := media.NewProcessor(media.ProcessorDependencies{
		Store:      store,
		Encoders:   encoders,
		Transcoder: media.NewFFmpegTranscoder(cfg.Media.FFmpegPath),
		TempDir:    cfg.Storage.TempDir,
		Image: media.ImageOptions{
			MaxDimension: cfg.Media.ImageMaxDimension,
			Quality:      cfg.Media.ImageQuality,
			MaxPixels:    cfg.Media.ImageMaxPixels,
		},
		Video: media.VideoOptions{
			MaxWidth:  cfg.Media.VideoMaxWidth,
			MaxHeight: cfg.Media.VideoMaxHeight,
			Preset:    cfg.Media.VideoPreset,
			CRF:       cfg.Media.VideoCRF,
		},
		TranscodeTimeout: cfg.Media.TranscodeTimeout,
		Logger:           logger,
		Metrics:          metrics,
	})

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, sms.NewClient(cfg.SMS), logger, metrics, cfg.SMS)
	worker.Start(ctx, worker.Dependencies{
		Notifications:    notificationService,
		OTPRepo:          otpRepo,
		OTPPurgeInterval: cfg.OTP.PurgeInterval,
		Logger:           logger,
	})

	lifecycle := service.NewLifecycleManager(service.LifecycleDependencies{
		TicketRepo:  ticketRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  ticketRepo,
		UserRepo:    userRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		UserRepo:       userRepo,
		CategoryRepo:   categoryRepo,
		CommentRepo:    commentRepo,
		AttachmentRepo: attachmentRepo,
		HistoryRepo:    historyRepo,
		Processor:      processor,
		Store:          store,
		Lifecycle:      lifecycle,
		Assignments:    assignments,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Config:         cfg.Ticket,
		BcryptCost:     cfg.Auth.BcryptCost,
	})
	commentService := service.NewCommentService(service.CommentDependencies{
		TicketRepo:  ticketRepo,
		CommentRepo: commentRepo,
		Lifecycle:   lifecycle,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	categoryService := service.NewCategoryService(categoryRepo)
	userService := service.NewUserService(*cfg, userRepo)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   userRepo,
		OTPRepo:    otpRepo,
		Throttle:   auth.NewRedisThrottle(redis.Client, cfg.Auth.MaxLoginAttempts, time.Duration(cfg.Auth.LockoutSeconds)*time.Second),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.App.BodyLimitMB << 20,
		ProxyHeader:  cfg.App.ProxyHeader,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	health := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
		handlers.HealthCheck{Name: "postgres", Pinger: pg},
		handlers.HealthCheck{Name: "redis", Pinger: redis},
	)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         health,
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, commentService, categoryService),
		StaffTickets:   handlers.NewStaffTicketsHandler(ticketService),
		Staff:          handlers.NewStaffHandler(userService, categoryService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
		PublicRoot:     store.Root(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	cancel()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
