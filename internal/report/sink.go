package report

/*
Файл sink.go — асинхронная персистентность отчетов обследования.

Ключевые особенности архитектуры:
- Non-blocking: конвейер анализа не ждет базу — отчеты уходят в буферный
  канал, задержки записи не влияют на пропускную способность пула.
- Batching: накопление отчетов в памяти и пакетная запись (Bulk Insert)
  в PostgreSQL по таймеру или при достижении лимита пачки.
- Drain Pattern & Graceful Shutdown: при остановке буфер вычитывается
  полностью; sync.WaitGroup и закрытие канала гарантируют Final Flush.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"go.uber.org/zap"
)

// Storage определяет, куда физически сохраняются отчеты.
type Storage interface {
	// WriteBatch сохраняет пачку отчетов за один раз.
	WriteBatch(ctx context.Context, reports []domain.AssessmentReport) error
}

const (
	bufferSize    = 1024
	batchSize     = 50
	flushInterval = 2 * time.Second
)

type Sink struct {
	ch     chan domain.AssessmentReport
	repo   Storage
	logger *zap.Logger
	wg     sync.WaitGroup
	// Атомарный флаг (0 - открыт, 1 - закрыт): защита от Put после Stop.
	isClosed int32
}

func NewSink(repo Storage, logger *zap.Logger) *Sink {
	return &Sink{
		ch:     make(chan domain.AssessmentReport, bufferSize),
		repo:   repo,
		logger: logger.With(zap.String("mod", "report-sink")),
	}
}

func (s *Sink) Start() {
	s.wg.Add(1)
	go s.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (s *Sink) Stop() {
	atomic.StoreInt32(&s.isClosed, 1)

	// Крошечная пауза, чтобы уже начатые Put успели проскочить.
	time.Sleep(10 * time.Millisecond)

	s.logger.Info("stopping sink: closing channel and flushing buffer...")
	close(s.ch)
	s.wg.Wait()
	s.logger.Info("sink stopped gracefully")
}

func (s *Sink) Put(report domain.AssessmentReport) {
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}

	if atomic.LoadInt32(&s.isClosed) == 1 {
		s.logger.Warn("report dropped: sink is stopping", zap.String("id", report.ID))
		return
	}

	select {
	case s.ch <- report:
	default:
		// Буфер переполнен (backpressure) — фиксируем факт в логе,
		// чтобы потеря не прошла молча.
		s.logger.Error("report_buffer_overflow",
			zap.String("app_id", report.Application.AppID),
			zap.String("run_id", report.RunID))
	}
}

func (s *Sink) worker() {
	defer s.wg.Done()

	batch := make([]domain.AssessmentReport, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст к моменту финального flush
			// может быть уже отменен.
			if err := s.repo.WriteBatch(context.Background(), batch); err != nil {
				s.logger.Error("report flush failed", zap.Int("batch", len(batch)), zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case report, ok := <-s.ch:
			if !ok {
				// Канал закрыт в Stop(): вычитали остатки, финальный flush, выходим.
				flush()
				s.logger.Info("sink worker finished")
				return
			}
			batch = append(batch, report)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
