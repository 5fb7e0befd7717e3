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

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/graph-privilege-auditor/internal/analysis"
	"github.com/xela07ax/graph-privilege-auditor/internal/collector"
	"github.com/xela07ax/graph-privilege-auditor/internal/directory"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"github.com/xela07ax/graph-privilege-auditor/internal/infra"
	"github.com/xela07ax/graph-privilege-auditor/internal/logstore"
	"github.com/xela07ax/graph-privilege-auditor/internal/match"
	"github.com/xela07ax/graph-privilege-auditor/internal/permmap"
	"github.com/xela07ax/graph-privilege-auditor/internal/report"
	"github.com/xela07ax/graph-privilege-auditor/internal/repository/postgres"
	"github.com/xela07ax/graph-privilege-auditor/internal/scheduler"
)

// runLockTTL страхует от вечного лока, если прогон умер без Del.
const runLockTTL = 2 * time.Hour

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

	// Контекст жизни прогона: SIGTERM переводит пул в режим
	// "отдай что успел" вместо жесткого обрыва.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.New().String()
	logger = logger.With(zap.String("run_id", runID))
	logger.Info("assessment run starting")

	// 2. Redis: кэш справочников + лок от параллельных прогонов
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	locked, err := rdb.SetNX(ctx, infra.RedisKeyRunLock, runID, runLockTTL).Result()
	if err != nil {
		logger.Warn("run lock unavailable, proceeding without it", zap.Error(err))
	} else if !locked {
		logger.Fatal("another assessment run is already in progress")
	} else {
		defer rdb.Del(context.Background(), infra.RedisKeyRunLock)
	}

	// 3. Postgres: сюда уезжают готовые отчеты
	pgCtx, pgCancel := context.WithTimeout(ctx, 5*time.Second)
	repo, err := postgres.NewAssessmentRepo(pgCtx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to init postgres", zap.Error(err))
	}
	if err := repo.Ping(pgCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pgCancel()
	defer repo.Close()

	// 4. Справочник разрешений: файлы + кэш в Redis
	cache := permmap.NewDocumentCache(rdb, cfg.Redis.CacheTTL, logger)
	docs, err := permmap.NewLoader(cache, logger).Load(ctx, cfg.Analysis.PermMapPaths)
	if err != nil {
		logger.Fatal("failed to load permission maps", zap.Error(err))
	}
	index := permmap.NewIndex(docs)
	logger.Info("permission map index ready", zap.Any("entries", index.Size()))

	// 5. Внешние коллабораторы: каталог тенанта и лог-хранилище.
	// У каждого свой scope, поэтому два независимых источника токенов.
	dirTokens := directory.NewClientCredentials(
		cfg.Directory.Authority, cfg.Directory.TenantID,
		cfg.Directory.ClientID, cfg.Directory.ClientSecret,
		cfg.Directory.Scope, logger)
	dir := directory.NewClient(cfg.Directory.Endpoint, dirTokens, logger)

	storeTokens := directory.NewClientCredentials(
		cfg.Directory.Authority, cfg.Directory.TenantID,
		cfg.Directory.ClientID, cfg.Directory.ClientSecret,
		cfg.LogStore.Scope, logger)
	store := logstore.NewReliability(
		logstore.NewClient(cfg.LogStore.Endpoint, cfg.LogStore.WorkspaceID, storeTokens, cfg.LogStore.HTTPTimeout, logger),
		logstore.ReliabilityOptions{
			RPS:           cfg.LogStore.RPS,
			Burst:         cfg.LogStore.Burst,
			Attempts:      cfg.LogStore.RetryAttempts,
			CallTimeout:   cfg.LogStore.HTTPTimeout,
			CBMaxRequests: cfg.LogStore.CBMaxRequests,
			CBInterval:    cfg.LogStore.CBInterval,
			CBTimeout:     cfg.LogStore.CBTimeout,
		})

	// 6. Метрики
	reg := prometheus.NewRegistry()
	metrics := scheduler.NewMetrics(reg)

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer metricsSrv.Shutdown(context.Background())

	// 7. Партия: все приложения тенанта с их текущими грантами
	apps, err := dir.ListApplications(ctx)
	if err != nil {
		logger.Fatal("failed to list applications", zap.Error(err))
	}
	if len(apps) == 0 {
		logger.Info("no applications to assess, nothing to do")
		return
	}

	startedAt := time.Now()
	window := domain.ActivityWindow{
		Start:      startedAt.AddDate(0, 0, -cfg.Analysis.LookbackDays).UTC(),
		End:        startedAt.UTC(),
		MaxEntries: cfg.Analysis.MaxEntries,
	}
	logger.Info("collection window fixed",
		zap.Time("start", window.Start),
		zap.Time("end", window.End),
		zap.Int("max_entries", window.MaxEntries),
		zap.Int("applications", len(apps)))

	// 8. Сбор активности пулом воркеров
	coll := collector.New(store, logger)
	pool := scheduler.NewPool(coll.Collect, cfg.Analysis.WorkerWidth, cfg.Analysis.StallTimeout, metrics, logger)
	outcomes := pool.Run(ctx, apps, window)

	// 9. Анализ и персистентность: отчеты уходят в Postgres пачками
	analyzer := analysis.New(match.NewMatcher(index), runID, logger)
	sink := report.NewSink(repo, logger)
	sink.Start()

	reports := make([]domain.AssessmentReport, 0, len(outcomes))
	for _, out := range outcomes {
		rep := analyzer.Analyze(out)
		sink.Put(rep)
		reports = append(reports, rep)
	}
	sink.Stop()

	// 10. Файловая сводка прогона
	path, err := report.WriteSummary(cfg.Analysis.ReportDir, report.RunSummary{
		RunID:       runID,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Submitted:   len(apps),
		Completed:   len(outcomes),
		Reports:     reports,
	})
	if err != nil {
		logger.Error("failed to write run summary", zap.Error(err))
	} else {
		logger.Info("run summary written", zap.String("path", path))
	}

	logger.Info("assessment run finished",
		zap.Int("submitted", len(apps)),
		zap.Int("completed", len(outcomes)),
		zap.Duration("elapsed", time.Since(startedAt)))
}
