package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drawdash_backend/internal/config"
	"drawdash_backend/internal/game"
	httpServer "drawdash_backend/internal/http"
	"drawdash_backend/internal/http/middleware"
	"drawdash_backend/internal/logger"
	"drawdash_backend/internal/service"
	"drawdash_backend/internal/store"
	"drawdash_backend/internal/ws"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	st, err := store.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connect failed", "err", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The watcher is inert without expired-key events, so this is fatal.
	if err := st.EnableKeyspaceNotifications(ctx); err != nil {
		logger.Fatal("enabling keyspace notifications failed", "err", err)
	}

	bcast := game.NewBroadcaster(st)
	rooms := game.NewRoomState(st)
	players := game.NewPlayerRegistry(st, rooms, bcast, nil)
	words := game.NewWordService(st, nil)
	engine := game.NewTurnEngine(st, rooms, players, words, bcast)
	watcher := game.NewTimerWatcher(st, rooms, engine, words, bcast, cfg.NodeID)
	go watcher.Run(ctx)

	middleware.InitRateLimiter(st)

	r := gin.Default()

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpServer.RegisterRoutes(r, ws.Deps{
		Store:   st,
		Rooms:   rooms,
		Players: players,
		Engine:  engine,
	}, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "node", cfg.NodeID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
		os.Exit(1)
	}

	logger.Info("server exited")
}
