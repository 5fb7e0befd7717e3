// Package collector добывает историю вызовов приложения из лог-хранилища,
// переживая лимит размера ответа адаптивной бисекцией временного окна.
package collector

import (
	"context"
	"errors"
	"time"

	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"github.com/xela07ax/graph-privilege-auditor/internal/logstore"
	"go.uber.org/zap"
)

// MinWindow — дно рекурсии. Окно в сутки, все еще упирающееся в лимит
// размера, логируется и отдается пустым — это лучше, чем завалить
// все приложение или уйти в бесконечное деление.
const MinWindow = 24 * time.Hour

type Collector struct {
	store     logstore.QueryClient
	minWindow time.Duration
	logger    *zap.Logger
}

func New(store logstore.QueryClient, logger *zap.Logger) *Collector {
	return &Collector{
		store:     store,
		minWindow: MinWindow,
		logger:    logger.Named("collector"),
	}
}

// Collect возвращает дедуплицированный список вызовов приложения за окно.
//
// Контракт по ошибкам:
//   - SizeExceeded хранилища лечится локально: окно делится пополам
//     (лимит строк тоже, с полом 1), половины собираются рекурсивно,
//     результаты объединяются с повторной дедупликацией;
//   - на суточном окне деление останавливается — такой срез отдается пустым;
//   - любая другая ошибка возвращается как есть, без повторов на этом
//     уровне: провал одного приложения — забота планировщика, не наша.
//
// Пустой результат — легитимный исход, отличимый от ошибки.
func (c *Collector) Collect(ctx context.Context, principalID string, w domain.ActivityWindow) ([]domain.RawActivity, error) {
	rows, err := c.collect(ctx, principalID, w, 0)
	if err != nil {
		return nil, err
	}
	return dedupe(rows), nil
}

func (c *Collector) collect(ctx context.Context, principalID string, w domain.ActivityWindow, depth int) ([]domain.RawActivity, error) {
	rows, err := c.store.QueryDistinctCalls(ctx, principalID, w)
	if err == nil {
		return rows, nil
	}

	if !errors.Is(err, logstore.ErrSizeExceeded) {
		return nil, err
	}

	if w.Duration() <= c.minWindow {
		// Дно: даже сутки не влезают. Отдаем пустой срез и живем дальше.
		c.logger.Warn("window hit size limit at minimum width, returning empty slice",
			zap.String("principal_id", principalID),
			zap.Time("start", w.Start),
			zap.Time("end", w.End),
			zap.Int("max_entries", w.MaxEntries))
		return nil, nil
	}

	left, right := w.Bisect()
	c.logger.Debug("size limit exceeded, bisecting window",
		zap.String("principal_id", principalID),
		zap.Int("depth", depth),
		zap.Time("mid", left.End),
		zap.Int("max_entries", left.MaxEntries))

	lRows, err := c.collect(ctx, principalID, left, depth+1)
	if err != nil {
		return nil, err
	}
	rRows, err := c.collect(ctx, principalID, right, depth+1)
	if err != nil {
		return nil, err
	}

	return append(lRows, rRows...), nil
}

// dedupe убирает повторы (method, uri), сохраняя порядок первого появления.
// Повторы возникают на границах под-окон: один и тот же вызов мог попасть
// в обе половины.
func dedupe(rows []domain.RawActivity) []domain.RawActivity {
	seen := make(map[domain.RawActivity]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
