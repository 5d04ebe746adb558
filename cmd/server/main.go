package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/storyparty/story-party-backend/internal/config"
	"github.com/storyparty/story-party-backend/internal/httpapi"
	"github.com/storyparty/story-party-backend/internal/hub"
	"github.com/storyparty/story-party-backend/internal/logger"
	"github.com/storyparty/story-party-backend/internal/room"
	"github.com/storyparty/story-party-backend/internal/story"
)

func main() {
	_ = godotenv.Load() // optional .env for local runs

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatal(err)
	}
	defer zl.Sync()

	stories, err := story.LoadDir(cfg.StoriesDir, zl)
	if err != nil {
		zl.Fatal("loading stories", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, stories, room.Config{
		VoteSeconds:    cfg.VoteSeconds,
		TickInterval:   time.Second,
		IntroDelay:     cfg.IntroDelay,
		ResultDelay:    cfg.ResultDelay,
		ReconnectGrace: cfg.ReconnectGrace,
		MaxPlayers:     cfg.MaxPlayers,
	}, zl)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(h, stories),
	}

	go func() {
		<-ctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zl.Info("listening", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Fatal("server", zap.Error(err))
	}
}
