package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gwi.com/chat-sync/internal/api"
	"gwi.com/chat-sync/internal/auth"
	"gwi.com/chat-sync/internal/config"
	"gwi.com/chat-sync/internal/llm"
	"gwi.com/chat-sync/internal/logging"
	"gwi.com/chat-sync/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.EnvFileErr != nil {
		logger.Info("No .env file found, relying on environment variables", zap.Error(cfg.EnvFileErr))
	}

	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	accounts, err := store.NewSQLiteStore(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer accounts.Close()

	provider, err := llm.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize completion provider", zap.Error(err))
	}
	defer provider.Close()

	apiHandler := api.NewAPIHandler(
		accounts,
		auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		auth.NewCaptchas(cfg.JWTSecret, cfg.CaptchaTTL),
		provider,
		logger,
	)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // completions can be slow
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", serverAddr), zap.String("provider", cfg.LLMProvider))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	logger.Info("Server exiting gracefully")
}
