package logstore

import (
	"errors"
	"fmt"
	"time"
)

// ErrSizeExceeded — хранилище отказалось отдавать ответ: запрошенный
// диапазон/лимит строк дал бы слишком большой результат. Это единственный
// вид отказа, который коллектор лечит локально (бисекцией окна).
var ErrSizeExceeded = errors.New("logstore: response size limit exceeded")

// ThrottleError — хранилище просит сбавить темп. Несет Retry-After,
// который учитывает расчет задержки в Reliability-обертке.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }
