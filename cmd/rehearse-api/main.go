package main

import (
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	cli "github.com/spf13/pflag"

	"rehearse/internal/api"
	"rehearse/internal/app"
	"rehearse/internal/config"
)

func main() {
	config.Flags(cli.CommandLine)
	cli.Parse()

	cfg, err := config.Load(cli.CommandLine)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.LogLevel, cfg.LogFile)
	defer closeLog()
	log.SetDefault(logger)

	if config.ParseLevel(cfg.LogLevel) > log.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := app.Build(ctx, cfg, nil, nil)
	if err != nil {
		log.Error("Failed to build stack", "err", err)
		os.Exit(1)
	}
	defer stack.Close(context.Background())

	var advisor api.Advisor
	if stack.Helper != nil {
		advisor = stack.Helper
	}
	h := api.NewHandler(stack.Gateway, stack.Memories, stack.Voice, stack.History, advisor)

	srv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Listening", "addr", cfg.API.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "err", err)
	}
}
