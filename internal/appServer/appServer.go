package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmwillett/wapiti-sub000/config"
	repository "github.com/cmwillett/wapiti-sub000/internal/database/postgres"
	"github.com/cmwillett/wapiti-sub000/internal/entity"
	"github.com/cmwillett/wapiti-sub000/internal/push"
	"github.com/cmwillett/wapiti-sub000/internal/service"
	"github.com/cmwillett/wapiti-sub000/internal/transport"
	"github.com/cmwillett/wapiti-sub000/internal/worker"

	"github.com/cmwillett/wapiti-sub000/pkg/postgres"
	"github.com/cmwillett/wapiti-sub000/pkg/queue"
	"github.com/cmwillett/wapiti-sub000/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12}, // ban on outdated TLS
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	reminderRepo := repository.NewReminderRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)

	// Delivery backends: push is primary, SMS/email are pluggable fallbacks
	senders := map[entity.DeliveryChannel]push.Sender{
		entity.ChannelPush:  push.NewWebPushSender(&cfg.Push),
		entity.ChannelSMS:   &push.SMSSender{},
		entity.ChannelEmail: &push.EmailSender{},
	}
	if cfg.Push.VAPIDPrivateKey == "" {
		logrus.Warn("VAPID signing credential not configured, push delivery will fail")
	}

	// Redis backs the scan lock and the degraded-delivery DLQ; both are
	// optional and the dispatcher degrades gracefully without them
	var scanLock *queue.ScanLock
	var dlqHandler queue.DLQHandler
	if cfg.Redis.Host != "" {
		redisClient := redis.NewRedisClient(&cfg.Redis)
		defer redisClient.Close()
		scanLock = queue.NewScanLock(redisClient, "reminders:scan_lock", cfg.Dispatcher.ScanLockTTL)
		dlqHandler = queue.NewDefaultDLQHandler(redisClient, cfg.Dispatcher.DLQKey)
		logrus.Info("Redis scan lock and DLQ initialized")
	} else {
		logrus.Warn("Redis not configured, running without scan lock and DLQ")
	}

	// Initialize services
	registrationService := service.NewRegistrationService(registrationRepo)
	dispatchService := service.NewDispatchService(
		reminderRepo,
		registrationRepo,
		preferenceRepo,
		senders,
		scanLock,
		dlqHandler,
		service.DispatchConfig{
			FutureTolerance: cfg.Scanner.FutureTolerance,
			StaleCeiling:    cfg.Dispatcher.StaleCeiling,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// In-process scan worker (fixed cadence, immediate-trigger capable)
	scanWorker := worker.NewScanWorker(dispatchService, cfg.Scanner.Interval)
	go scanWorker.Start(ctx)
	logrus.Info("Scan worker started")

	reminderService := service.NewReminderService(reminderRepo, scanWorker)

	// Independent cron-style server-side schedule, decoupled from clients
	cronRunner := cron.New()
	if _, err := cronRunner.AddFunc(cfg.Dispatcher.CronSpec, func() {
		if _, err := dispatchService.RunScanOnce(ctx); err != nil {
			logrus.Errorf("Scheduled dispatch pass failed: %v", err)
		}
	}); err != nil {
		logrus.Fatalf("Invalid dispatcher cron spec %q: %v", cfg.Dispatcher.CronSpec, err)
	}
	cronRunner.Start()
	defer cronRunner.Stop()
	logrus.Infof("Dispatch cron started (%s)", cfg.Dispatcher.CronSpec)

	// Initialize handlers
	subscriptionHandler := transport.NewSubscriptionHandler(registrationService)
	dispatchHandler := transport.NewDispatchHandler(dispatchService, dlqHandler)
	reminderHandler := transport.NewReminderHandler(reminderService)
	preferenceHandler := transport.NewPreferenceHandler(service.NewPreferenceService(preferenceRepo))

	// Setup HTTP server
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(subscriptionHandler, dispatchHandler, reminderHandler, preferenceHandler)); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
