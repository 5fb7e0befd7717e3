package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"github.com/xela07ax/graph-privilege-auditor/internal/logstore"
	"go.uber.org/zap"
)

func window(start time.Time, days, maxEntries int) domain.ActivityWindow {
	return domain.ActivityWindow{Start: start, End: start.AddDate(0, 0, days), MaxEntries: maxEntries}
}

var t0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// Первый запрос упирается в лимит размера: окно 30д/100к должно
// развалиться ровно на [T, T+15д) и [T+15д, T+30д) по 50к каждое.
func TestCollectBisectsOnSizeExceeded(t *testing.T) {
	fake := &logstore.FakeStore{
		Script: func(_ string, w domain.ActivityWindow) ([]domain.RawActivity, error) {
			if w.Duration() >= 30*24*time.Hour {
				return nil, logstore.ErrSizeExceeded
			}
			return []domain.RawActivity{
				{Method: "GET", URI: "/v1.0/users"},
				{Method: "GET", URI: fmt.Sprintf("/v1.0/slice/%d", w.Start.Unix())},
			}, nil
		},
	}

	c := New(fake, zap.NewNop())
	rows, err := c.Collect(context.Background(), "sp-1", window(t0, 30, 100000))
	require.NoError(t, err)

	require.Len(t, fake.Calls, 3)
	left, right := fake.Calls[1].Window, fake.Calls[2].Window
	assert.Equal(t, t0, left.Start)
	assert.Equal(t, t0.AddDate(0, 0, 15), left.End)
	assert.Equal(t, t0.AddDate(0, 0, 15), right.Start)
	assert.Equal(t, t0.AddDate(0, 0, 30), right.End)
	assert.Equal(t, 50000, left.MaxEntries)
	assert.Equal(t, 50000, right.MaxEntries)

	// Дубликат "/v1.0/users" с границы под-окон схлопнулся.
	seen := make(map[domain.RawActivity]int)
	for _, r := range rows {
		seen[r]++
	}
	for r, n := range seen {
		assert.Equal(t, 1, n, "duplicate pair %v", r)
	}
	assert.Len(t, rows, 3)
}

// Один постоянно "тяжелый" день отдается пустым, не ломая остальные срезы.
func TestCollectSizeExceededFloorReturnsEmptySlice(t *testing.T) {
	badDay := t0.AddDate(0, 0, 2)

	fake := &logstore.FakeStore{
		Script: func(_ string, w domain.ActivityWindow) ([]domain.RawActivity, error) {
			// Любое окно, задевающее "плохой" день, слишком велико.
			if badDay.Before(w.End) && !badDay.Before(w.Start) {
				return nil, logstore.ErrSizeExceeded
			}
			return []domain.RawActivity{
				{Method: "GET", URI: fmt.Sprintf("/v1.0/ok/%d", w.Start.Unix())},
			}, nil
		},
	}

	c := New(fake, zap.NewNop())
	rows, err := c.Collect(context.Background(), "sp-1", window(t0, 8, 1000))
	require.NoError(t, err)

	// Данные всех здоровых срезов на месте, плохой день просто отсутствует.
	assert.NotEmpty(t, rows)
	for _, call := range fake.Calls {
		if call.Window.Duration() <= MinWindow && !badDay.Before(call.Window.Start) && badDay.Before(call.Window.End) {
			// Суточное окно с плохим днем запрашивалось, но дальше не делилось.
			assert.Equal(t, 24*time.Hour, call.Window.Duration())
		}
	}
}

// Не-размерные ошибки не ретраятся и не маскируются.
func TestCollectOtherErrorFailsApplication(t *testing.T) {
	boom := errors.New("auth token expired")
	fake := &logstore.FakeStore{
		Script: func(string, domain.ActivityWindow) ([]domain.RawActivity, error) {
			return nil, boom
		},
	}

	c := New(fake, zap.NewNop())
	_, err := c.Collect(context.Background(), "sp-1", window(t0, 30, 1000))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, fake.Calls, 1)
}

func TestCollectEmptyResultIsNotError(t *testing.T) {
	fake := &logstore.FakeStore{}

	c := New(fake, zap.NewNop())
	rows, err := c.Collect(context.Background(), "sp-idle", window(t0, 30, 1000))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// MaxEntries при делении не опускается ниже 1.
func TestBisectMaxEntriesFloor(t *testing.T) {
	w := window(t0, 4, 1)
	left, right := w.Bisect()
	assert.Equal(t, 1, left.MaxEntries)
	assert.Equal(t, 1, right.MaxEntries)
}
