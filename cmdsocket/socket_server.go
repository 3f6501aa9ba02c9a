package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sweepsapp/cache"
	"sweepsapp/config"
	"sweepsapp/database"
	"sweepsapp/models"
	"sweepsapp/services"
	"sweepsapp/sms"
	"sweepsapp/utils"

	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/socket"
	"golang.org/x/sync/errgroup"
)

func errorPayload(msg string) map[string]interface{} {
	return models.NewErrorResponse(400, models.CodeFailed, msg)
}

func main() {
	configPath := flag.String("config", "config.yml", "path to config.yml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("❌ Failed to load config: %v", err)
	}
	config.NewLogger(cfg.Server.LogLevel)
	utils.SetJWTSecret(cfg.Auth.JWTSecret)

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

	var c cache.Cache
	var rdb *cache.Redis
	if rdb, err = cache.NewRedis(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		logrus.WithError(err).Warn("⚠️ Redis unavailable, feed snapshots are per-process")
		rdb = nil
		c = cache.NewMemory()
	} else {
		defer rdb.Close()
		c = rdb
	}

	jackpots := services.NewJackpotService(db, c)
	gamesSvc := services.NewGameService(db, db, c, services.NewNotifyService(db, sms.LogSender{}))
	players := services.NewPlayerService(db, db)
	online := newOnlineCounter(rdb)

	io := socketio.NewServer(nil, nil)

	io.On("connection", func(conn ...any) {
		if len(conn) == 0 {
			return
		}
		socket := conn[0].(*socketio.Socket)
		clientID := socket.Id()
		total := online.Add(1)
		logrus.WithFields(logrus.Fields{"id": clientID, "total": total}).Info("✅ Connected")

		socket.Emit("connected", map[string]interface{}{
			"id":        clientID,
			"message":   "Welcome to the live feed",
			"timestamp": time.Now().Unix(),
		})

		socket.On("ping", func(...any) {
			socket.Emit("pong", map[string]interface{}{
				"message":   "pong",
				"timestamp": time.Now().Unix(),
				"id":        clientID,
			})
		})

		socket.On("jackpots", func(...any) {
			pools, err := jackpots.List(context.Background())
			if err != nil {
				socket.Emit("error", errorPayload(err.Error()))
				return
			}
			socket.Emit("jackpots_list", models.NewSuccessWithData(200, models.CodeOK, pools))
		})

		socket.On("winners", func(...any) {
			wins, err := gamesSvc.RecentWins(context.Background(), 20)
			if err != nil {
				socket.Emit("error", errorPayload(err.Error()))
				return
			}
			socket.Emit("winners_list", models.NewSuccessWithData(200, models.CodeOK, wins))
		})

		socket.On("online_users", func(...any) {
			socket.Emit("online_count", map[string]interface{}{
				"Status":        200,
				"StatusCode":    models.CodeOK,
				"UsersOnline":   online.Count(),
				"StatusMessage": "Success",
			})
		})

		// user resolves a player token to the player's profile and balances
		socket.On("user", func(data ...any) {
			if len(data) == 0 {
				return
			}
			var token string
			switch v := data[0].(type) {
			case map[string]interface{}:
				token, _ = v["token"].(string)
			case string:
				token = v
			default:
				socket.Emit("error", errorPayload("invalid data format"))
				return
			}
			if token == "" {
				socket.Emit("error", errorPayload("missing token"))
				return
			}
			claims, err := utils.VerifyJWTToken(token)
			if err != nil || utils.ClaimRole(claims) != models.RolePlayer {
				socket.Emit("error", errorPayload("invalid token"))
				return
			}
			playerID, err := utils.ClaimSubject(claims)
			if err != nil {
				socket.Emit("error", errorPayload("invalid token"))
				return
			}
			profile, err := players.GetProfile(context.Background(), playerID)
			if err != nil {
				socket.Emit("error", errorPayload(err.Error()))
				return
			}
			socket.Emit("user_info", models.NewSuccessWithData(200, models.CodeOK, profile))
		})

		socket.On("disconnect", func(reason ...any) {
			remaining := online.Add(-1)
			why := "client disconnect"
			if len(reason) > 0 {
				if r, ok := reason[0].(string); ok {
					why = r
				}
			}
			logrus.WithFields(logrus.Fields{"id": clientID, "reason": why, "remaining": remaining}).Info("🔌 Disconnected")
		})
	})

	// push the jackpot and winners snapshot to every socket
	scheduler := services.NewScheduler()
	if err := scheduler.Add(cfg.Jobs.FeedPush, "feed_push", func(ctx context.Context) error {
		var (
			pools []models.JackpotPool
			wins  []models.BigWin
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			pools, err = jackpots.List(gctx)
			return err
		})
		g.Go(func() (err error) {
			wins, err = gamesSvc.RecentWins(gctx, 20)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}
		if err := io.Sockets().Emit("jackpots_list", models.NewSuccessWithData(200, models.CodeOK, pools)); err != nil {
			return err
		}
		return io.Sockets().Emit("winners_list", models.NewSuccessWithData(200, models.CodeOK, wins))
	}); err != nil {
		logrus.Fatalf("❌ Failed to schedule feed push: %v", err)
	}
	scheduler.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":            "healthy",
			"service":           cfg.Server.AppName + " feed",
			"port":              cfg.Server.SocketPort,
			"connected_clients": online.Local(),
			"timestamp":         time.Now().Unix(),
		})
	})
	mux.Handle("/socket.io/", io.ServeHandler(nil))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.SocketPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("🚀 Feed server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("❌ Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logrus.Info("🛑 Shutting down feed server...")

	scheduler.Stop()
	io.Close(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("❌ Server shutdown error: %v", err)
	}
	logrus.Info("✅ Feed server stopped gracefully")
}
