// Package main запускает HTTP-сервер сервиса витрины.
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
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/storefront-system/internal/config"
	"github.com/mmeshcher/storefront-system/internal/handler"
	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/service"
	"github.com/mmeshcher/storefront-system/internal/storage"
	"github.com/mmeshcher/storefront-system/internal/telegram"
	"github.com/mmeshcher/storefront-system/internal/uploads"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store, err := storage.NewFileStore(cfg.DataDir, cfg.BootstrapPassword, logger)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}

	// Без токена бота подпись init-data проверить нельзя; молчаливый пропуск
	// всех пользователей недопустим.
	verifier, err := telegram.NewVerifier(cfg.BotToken)
	if err != nil {
		sugar.Fatalw("telegram verifier error", "error", err.Error())
	}

	uploadClient := uploads.NewClient(uploads.Config{
		Token:  cfg.GitHubToken,
		Owner:  cfg.GitHubOwner,
		Repo:   cfg.GitHubRepo,
		Branch: cfg.GitHubBranch,
	})
	if !uploadClient.Enabled() {
		sugar.Infow("media uploads disabled: remote host is not configured")
	}

	svc := service.NewService(store, verifier, nil)

	adminAuth := middleware.NewAdminAuth(svc, logger)
	h := handler.NewHandler(svc, uploadClient, logger, adminAuth)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
		// Админ-панель заливает крупные видео, таймаут запроса щедрый.
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting storefront server", "addr", cfg.RunAddress, "data_dir", cfg.DataDir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
