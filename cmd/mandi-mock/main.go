package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/mandinetra/internal/config"
	"github.com/rewired-gh/mandinetra/internal/logger"
	"github.com/rewired-gh/mandinetra/internal/mockapi"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	listen     = flag.String("listen", "", "Listen address (overrides mock.listen)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	zl := logger.Zerolog()

	addr := cfg.Mock.Listen
	if *listen != "" {
		addr = *listen
	}

	srv := mockapi.New(mockapi.Config{
		Addr:           addr,
		AllowedOrigins: cfg.Mock.AllowedOrigins,
		Log:            zl,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal().Err(err).Msg("Failed to start mock service")
		}
	}()

	zl.Info().Str("addr", addr).Msg("Mock prediction service started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error().Err(err).Msg("Mock service forced to shutdown")
	}
}
