package logstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"golang.org/x/time/rate"
)

// ReliabilityOptions — ручки обертки, значения по умолчанию в NewReliability.
type ReliabilityOptions struct {
	RPS           float64
	Burst         int
	Attempts      uint
	CallTimeout   time.Duration
	CBMaxRequests uint32
	CBInterval    time.Duration
	CBTimeout     time.Duration
}

// Reliability оборачивает QueryClient в rate limiter, circuit breaker
// и ретраи. Важно: ретраится только транспортный уровень (троттлинг,
// сетевые сбои). ErrSizeExceeded пролетает насквозь без повторов —
// это не сбой, а сигнал коллектору делить окно.
type Reliability struct {
	next    QueryClient
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	opts    ReliabilityOptions
}

func NewReliability(next QueryClient, opts ReliabilityOptions) *Reliability {
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 90 * time.Second
	}
	if opts.CBMaxRequests == 0 {
		opts.CBMaxRequests = 3
	}
	if opts.CBInterval <= 0 {
		opts.CBInterval = 30 * time.Second
	}
	if opts.CBTimeout <= 0 {
		opts.CBTimeout = 60 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "logstore-query",
		MaxRequests: opts.CBMaxRequests,
		Interval:    opts.CBInterval,
		Timeout:     opts.CBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			// SizeExceeded — штатный ответ хранилища, предохранитель
			// на нем открываться не должен.
			return err == nil || errors.Is(err, ErrSizeExceeded)
		},
	})

	return &Reliability{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		opts:    opts,
	}
}

func (w *Reliability) QueryDistinctCalls(ctx context.Context, principalID string, win domain.ActivityWindow) ([]domain.RawActivity, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var rows []domain.RawActivity

	// 2. Circuit Breaker
	_, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(w.opts.Attempts),
			retry.RetryIf(func(err error) bool {
				// Размерный отказ и отмена контекста повторять бессмысленно.
				if errors.Is(err, ErrSizeExceeded) || errors.Is(err, context.Canceled) {
					return false
				}
				return true
			}),
			// Умный расчет задержки
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Хранилище само сказало, когда вернуться (Retry-After).
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				// Иначе стандартный экспоненциальный бэкофф.
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.opts.CallTimeout)
			defer cancel()

			var callErr error
			rows, callErr = w.next.QueryDistinctCalls(tCtx, principalID, win)
			return callErr
		})

		return nil, retryErr
	})

	if err != nil {
		return nil, err
	}
	return rows, nil
}
