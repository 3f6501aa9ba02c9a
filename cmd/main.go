package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sweepsapp/cache"
	"sweepsapp/config"
	"sweepsapp/controllers"
	"sweepsapp/database"
	"sweepsapp/metrics"
	"sweepsapp/middleware"
	"sweepsapp/routes"
	"sweepsapp/services"
	"sweepsapp/sms"
	"sweepsapp/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fibercors "github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to config.yml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("❌ Failed to load config: %v", err)
	}
	config.NewLogger(cfg.Server.LogLevel)
	utils.SetJWTSecret(cfg.Auth.JWTSecret)

	// 1. Database
	logrus.Info("📦 Initializing database connection...")
	if err := database.ConnectPostgres(cfg); err != nil {
		logrus.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()
	db, err := database.NewDatabase()
	if err != nil {
		logrus.Fatalf("❌ %v", err)
	}
	logrus.Info("✅ Database connected successfully")

	// 2. Cache; the API keeps working on an in-process cache when Redis is down
	var c cache.Cache
	if rdb, err := cache.NewRedis(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		logrus.WithError(err).Warn("⚠️ Redis unavailable, using in-memory cache")
		c = cache.NewMemory()
	} else {
		defer rdb.Close()
		c = rdb
	}

	// 3. SMS
	var sender sms.Sender = sms.LogSender{}
	if cfg.SMS.Enabled {
		sender = sms.NewClient(sms.Options{
			BaseURL:    cfg.SMS.BaseURL,
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			From:       cfg.SMS.From,
			Timeout:    cfg.SMS.Timeout,
		})
	}

	// 4. Services
	logrus.Info("📦 Initializing services...")
	notify := services.NewNotifyService(db, sender)
	wallet := services.NewWalletService(db)
	fraud := services.NewFraudService(db)
	svc := &controllers.Services{
		Auth:        services.NewAuthService(db, db, db, notify, cfg.Auth),
		Players:     services.NewPlayerService(db, db),
		Wallet:      wallet,
		Bonus:       services.NewBonusService(db, db, cfg.Bonus),
		Store:       services.NewStoreService(db, db, notify, cfg.Store),
		Games:       services.NewGameService(db, db, c, notify),
		Jackpots:    services.NewJackpotService(db, c),
		KYC:         services.NewKYCService(db, db, notify, cfg),
		Redemptions: services.NewRedemptionService(db, db, fraud, notify, cfg),
		Fraud:       fraud,
		Admin:       services.NewAdminService(db, wallet),
	}
	controllers.Init(svc)

	playLimiter := middleware.NewPlayLimiter()
	scheduler := services.NewScheduler()
	jobs := services.Jobs{
		Notify:   notify,
		Store:    svc.Store,
		Games:    svc.Games,
		Auth:     svc.Auth,
		Limiters: []*utils.RateLimiter{playLimiter},
	}
	if err := jobs.Register(scheduler, cfg.Jobs); err != nil {
		logrus.Fatalf("❌ Failed to register jobs: %v", err)
	}
	logrus.Info("✅ Services initialized successfully")

	// 5. HTTP
	app := fiber.New(fiber.Config{
		IdleTimeout:           60 * time.Second,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
		BodyLimit:             1 << 20,
		ServerHeader:          "Fiber",
		AppName:               cfg.Server.AppName,
		DisableStartupMessage: true,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: false,
	}))
	app.Use(fibercors.New(fibercors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Content-Type, Authorization, Idempotency-Key",
		AllowCredentials: false,
		MaxAge:           300,
	}))
	app.Use(middleware.RequestLogger(500*time.Millisecond, 100))

	routes.RegisterRoutes(app, cfg.Auth.ProviderAPIKey, playLimiter)

	app.Get("/health", func(c *fiber.Ctx) error {
		status, code := "healthy", fiber.StatusOK
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			status, code = "degraded", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":    status,
			"service":   cfg.Server.AppName,
			"timestamp": time.Now().Unix(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := svc.Games.WarmLobby(context.Background()); err != nil {
		logrus.WithError(err).Warn("Lobby warm-up failed")
	}
	scheduler.Start()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logrus.Infof("🚀 Starting server on %s...", addr)

	serverErr := make(chan error, 1)
	go func() {
		if err := app.Listen(addr); err != nil {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		logrus.Info("🛑 Shutting down server...")
	case err := <-serverErr:
		logrus.Errorf("❌ Server error: %v", err)
	}

	scheduler.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.Errorf("❌ Error during shutdown: %v", err)
	}

	logrus.Info("✅ Server gracefully stopped")
}
