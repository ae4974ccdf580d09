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

	"artifactvault/pkg/app"
	"artifactvault/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is $HOME/.av/config.yaml)")
	flag.Parse()

	if err := config.Load(*cfgFile); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	gin.SetMode(gin.ReleaseMode)

	// 2. Init Server Application
	ctx := context.Background()
	application, err := app.NewServerApp(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	defer application.Close()
	logger := application.Logger
	defer logger.Sync()
	if used := config.Used(); used != "" {
		logger.Info("loaded config", zap.String("file", used))
	}

	// 3. Setup HTTP Server
	addr := viper.GetString("server.addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           application.Server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. Start Server (Async)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("av-server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 5. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("failed to serve", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown did not finish cleanly", zap.Error(err))
	}
	logger.Info("server stopped")
}
