package logstore

import (
	"context"
	"sync"

	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
)

// FakeStore — сценарная реализация QueryClient для тестов и локальной
// отладки без живого хранилища. Поведение задается функцией-скриптом.
type FakeStore struct {
	mu sync.Mutex

	// Script вызывается на каждый запрос; отвечает данными или ошибкой.
	Script func(principalID string, w domain.ActivityWindow) ([]domain.RawActivity, error)

	// Calls — журнал всех пришедших окон, в порядке поступления.
	Calls []RecordedCall
}

type RecordedCall struct {
	PrincipalID string
	Window      domain.ActivityWindow
}

func (f *FakeStore) QueryDistinctCalls(_ context.Context, principalID string, w domain.ActivityWindow) ([]domain.RawActivity, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, RecordedCall{PrincipalID: principalID, Window: w})
	f.mu.Unlock()

	if f.Script == nil {
		return nil, nil
	}
	return f.Script(principalID, w)
}
