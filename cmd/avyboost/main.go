// Package main запускает HTTP-сервер сервиса AVYboost.
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

	"github.com/avydigital/avyboost/internal/campay"
	"github.com/avydigital/avyboost/internal/config"
	"github.com/avydigital/avyboost/internal/exobooster"
	"github.com/avydigital/avyboost/internal/handler"
	"github.com/avydigital/avyboost/internal/middleware"
	"github.com/avydigital/avyboost/internal/notifier"
	"github.com/avydigital/avyboost/internal/repository"
	"github.com/avydigital/avyboost/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var booster *exobooster.Client
	if cfg.ExoBoosterAddress != "" {
		booster = exobooster.NewClient(cfg.ExoBoosterAddress, cfg.ExoBoosterAPIKey)
	}

	var payments *campay.Client
	if cfg.CampayAddress != "" {
		payments = campay.NewClient(cfg.CampayAddress, cfg.CampayToken)
	}

	var alerts *notifier.Emailer
	if cfg.ResendAPIKey != "" && cfg.AlertEmail != "" {
		alerts = notifier.NewEmailer(cfg.ResendAPIKey, cfg.AlertEmail)
	}

	svc := newService(repo, booster, payments, alerts, logger)
	svc.SetSyncInterval(cfg.SyncInterval)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, cfg.AllowedOrigins)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая сверка активных заказов с панелью выполнения
	g.Go(func() error {
		svc.StartOrderSync(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting avyboost server", "addr", cfg.RunAddress)
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

// newService подставляет nil-интерфейсы вместо nil-указателей на клиентов,
// чтобы проверки вида `s.booster == nil` в сервисе работали корректно.
func newService(repo *repository.PostgresRepository, booster *exobooster.Client, payments *campay.Client, alerts *notifier.Emailer, logger *zap.Logger) *service.Service {
	var fc service.FulfillmentClient
	if booster != nil {
		fc = booster
	}
	var pc service.PaymentClient
	if payments != nil {
		pc = payments
	}
	var nt service.Notifier
	if alerts != nil {
		nt = alerts
	}
	return service.NewService(repo, fc, pc, nt, logger)
}
