package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xela07ax/graph-privilege-auditor/internal/console/handler"
	"github.com/xela07ax/graph-privilege-auditor/internal/console/server"
	"github.com/xela07ax/graph-privilege-auditor/internal/console/service"
	"github.com/xela07ax/graph-privilege-auditor/internal/infra"
	"github.com/xela07ax/graph-privilege-auditor/internal/infra/auth"
	"github.com/xela07ax/graph-privilege-auditor/internal/repository/postgres"

	"go.uber.org/zap"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. Хранилище отчетов (Postgres)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	repo, err := postgres.NewAssessmentRepo(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to init postgres", zap.Error(err))
	}
	if err := repo.Ping(ctx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	cancel()
	defer repo.Close()

	// 3. Ключи RS256: публичный для проверки, закрытый для подписи
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse public key", zap.Error(err))
	}
	privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to parse private key", zap.Error(err))
	}

	// 4. Инициализация слоев (Dependency Injection)
	validator := auth.NewBaseValidator(pubKey)
	authService := service.NewAuthService(repo, privKey, cfg.Auth.TokenTTL)
	assessmentService := service.NewAssessmentService(repo, validator, logger)

	consoleSrv := server.NewConsoleServer(
		cfg,
		logger,
		assessmentService,
		handler.NewAuthHandler(authService),
		handler.NewAssessmentHandler(assessmentService),
		handler.NewDashboardHandler(assessmentService),
	)

	// 5. Запуск сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 6. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("console API stopping...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("console API exited properly")
}
