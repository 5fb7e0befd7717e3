// Package scheduler раскладывает сбор активности по приложениям
// на пул воркеров фиксированной ширины с двумя очередями
// (работа на вход, результаты на выход) и координатором со stall-таймаутом.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultWidth = 10
	DefaultGrace = 5 * time.Minute
)

// CollectFunc — то, что воркер выполняет для одного приложения.
// Сигнатуре соответствует (*collector.Collector).Collect с подставленным окном.
type CollectFunc func(ctx context.Context, principalID string, w domain.ActivityWindow) ([]domain.RawActivity, error)

// Outcome — обогащенное приложение на выходе пула: либо активности,
// либо ошибка сбора. Ошибка одного приложения никогда не валит партию.
type Outcome struct {
	App        domain.Application
	Activities []domain.RawActivity
	Err        error
	Elapsed    time.Duration
}

type Pool struct {
	width   int
	grace   time.Duration
	collect CollectFunc
	metrics *Metrics
	logger  *zap.Logger
}

func NewPool(collect CollectFunc, width int, grace time.Duration, metrics *Metrics, logger *zap.Logger) *Pool {
	if width <= 0 {
		width = DefaultWidth
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Pool{
		width:   width,
		grace:   grace,
		collect: collect,
		metrics: metrics,
		logger:  logger.Named("pool"),
	}
}

// Run прогоняет все приложения через пул и возвращает то, что успело
// завершиться. Единственный механизм отмены — координатор: если за grace
// не пришло ни одного нового результата, он перестает ждать и отдает
// частичный результат. Порядок результатов не специфицирован.
func (p *Pool) Run(ctx context.Context, apps []domain.Application, window domain.ActivityWindow) []Outcome {
	if len(apps) == 0 {
		return nil
	}

	work := make(chan domain.Application)
	results := make(chan Outcome, len(apps))

	var wg sync.WaitGroup
	for i := 0; i < p.width; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg, work, results, window)
	}

	// Продюсер: заливаем очередь, уважая отмену контекста.
	go func() {
		defer close(work)
		for _, app := range apps {
			select {
			case work <- app:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Воркеры сами закроют results, когда вычитают всю работу.
	go func() {
		wg.Wait()
		close(results)
	}()

	return p.drain(ctx, results, len(apps))
}

func (p *Pool) worker(ctx context.Context, wg *sync.WaitGroup, work <-chan domain.Application, results chan<- Outcome, window domain.ActivityWindow) {
	defer wg.Done()

	for app := range work {
		p.metrics.WorkersBusy.Inc()
		out := p.collectOne(ctx, app, window)
		p.metrics.WorkersBusy.Dec()

		p.metrics.CollectDuration.Observe(out.Elapsed.Seconds())
		if out.Err != nil {
			p.metrics.AppsProcessed.WithLabelValues("failed").Inc()
			p.metrics.CollectFailures.Inc()
			p.logger.Warn("collection failed, sibling apps unaffected",
				zap.String("app_id", app.AppID),
				zap.String("display_name", app.DisplayName),
				zap.Error(out.Err))
		} else {
			p.metrics.AppsProcessed.WithLabelValues("ok").Inc()
		}

		results <- out
	}
}

// collectOne изолирует сбой воркера рамками одного приложения:
// даже паника превращается в Outcome с ошибкой.
func (p *Pool) collectOne(ctx context.Context, app domain.Application, window domain.ActivityWindow) (out Outcome) {
	start := time.Now()
	out.App = app

	defer func() {
		out.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("collector panic: %v", r)
		}
	}()

	out.Activities, out.Err = p.collect(ctx, app.ID, window)
	return out
}

// drain — координатор: единственный читатель results. Считает завершенные
// против отправленных; пауза дольше grace без единого нового результата
// трактуется как зависание партии.
func (p *Pool) drain(ctx context.Context, results <-chan Outcome, total int) []Outcome {
	out := make([]Outcome, 0, total)

	timer := time.NewTimer(p.grace)
	defer timer.Stop()

	for len(out) < total {
		select {
		case r, ok := <-results:
			if !ok {
				return out
			}
			out = append(out, r)

			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(p.grace)

		case <-timer.C:
			p.metrics.StallTimeouts.Inc()
			p.logger.Error("no results within grace period, returning partial batch",
				zap.Duration("grace", p.grace),
				zap.Int("completed", len(out)),
				zap.Int("submitted", total))
			return out

		case <-ctx.Done():
			p.logger.Warn("run cancelled, returning partial batch",
				zap.Int("completed", len(out)),
				zap.Int("submitted", total))
			return out
		}
	}

	return out
}
