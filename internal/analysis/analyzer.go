// Package analysis собирает конвейер по одному приложению:
// сырые вызовы -> канонизация и дедупликация -> сопоставление
// со справочником -> жадный выбор минимального набора разрешений ->
// итоговый отчет с дельтой против текущих грантов.
package analysis

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"github.com/xela07ax/graph-privilege-auditor/internal/match"
	"github.com/xela07ax/graph-privilege-auditor/internal/scheduler"
	"github.com/xela07ax/graph-privilege-auditor/internal/selector"
	"go.uber.org/zap"
)

// Analyzer — чистая, синхронная часть конвейера. Вся работа с I/O
// (сбор активности) остается в пуле; сюда приходит готовый Outcome.
type Analyzer struct {
	matcher *match.Matcher
	runID   string
	logger  *zap.Logger
}

func New(matcher *match.Matcher, runID string, logger *zap.Logger) *Analyzer {
	if runID == "" {
		runID = uuid.New().String()
	}
	return &Analyzer{
		matcher: matcher,
		runID:   runID,
		logger:  logger.Named("analyzer"),
	}
}

func (a *Analyzer) RunID() string { return a.runID }

// Analyze превращает результат сбора в отчет. Всегда возвращает
// валидный отчет: провал сбора фиксируется в CollectError, а не
// прерывает обработку партии.
func (a *Analyzer) Analyze(out scheduler.Outcome) domain.AssessmentReport {
	start := time.Now()

	report := domain.AssessmentReport{
		ID:          uuid.New().String(),
		RunID:       a.runID,
		Application: out.App,
		GeneratedAt: start,
	}

	if out.Err != nil {
		report.CollectError = out.Err.Error()
		report.DurationMs = time.Since(start).Milliseconds()
		return report
	}

	// 1. Канонизация + схлопывание по ключу. Вызовы без версии Graph
	// выпадают целиком — это не Graph-трафик.
	seen := make(map[domain.ActivityKey]struct{})
	activities := make([]domain.CanonicalActivity, 0, len(out.Activities))
	for _, raw := range out.Activities {
		act, ok := a.matcher.FromRaw(raw)
		if !ok {
			continue
		}
		if _, dup := seen[act.Key()]; dup {
			continue
		}
		seen[act.Key()] = struct{}{}
		activities = append(activities, act)
	}

	// 2. Сопоставление.
	results := make([]domain.MatchResult, 0, len(activities))
	for _, act := range activities {
		results = append(results, a.matcher.Match(act))
	}

	// 3. Минимизация набора.
	sel := selector.Select(results)

	report.Activity = activities
	report.ActivityPermissions = results
	report.OptimalPermissions = sel.Selected
	report.UnmatchedActivities = sel.Unmatched
	report.TotalActivities = sel.TotalActivities
	report.MatchedActivities = sel.MatchedActivities
	report.MatchedAllActivity = len(sel.Unmatched) == 0

	// 4. Дельта против текущих грантов.
	report.ExcessPermissions, report.RequiredPermissions = diffGrants(out.App.CurrentPermissions, sel.PermissionNames())

	report.DurationMs = time.Since(start).Milliseconds()

	a.logger.Info("application assessed",
		zap.String("app_id", out.App.AppID),
		zap.String("display_name", out.App.DisplayName),
		zap.Int("activities", report.TotalActivities),
		zap.Int("matched", report.MatchedActivities),
		zap.Int("selected", len(report.OptimalPermissions)),
		zap.Int("excess", len(report.ExcessPermissions)),
		zap.Bool("matched_all", report.MatchedAllActivity))

	return report
}

// diffGrants сравнивает текущие гранты с рекомендованным набором.
// excess: выдано, но не нужно; required: нужно, но не выдано.
// Оба списка сортируются, чтобы отчеты были diff-стабильными.
func diffGrants(current, recommended []string) (excess, required []string) {
	cur := make(map[string]struct{}, len(current))
	for _, name := range current {
		cur[name] = struct{}{}
	}
	rec := make(map[string]struct{}, len(recommended))
	for _, name := range recommended {
		rec[name] = struct{}{}
	}

	for name := range cur {
		if _, ok := rec[name]; !ok {
			excess = append(excess, name)
		}
	}
	for name := range rec {
		if _, ok := cur[name]; !ok {
			required = append(required, name)
		}
	}

	sort.Strings(excess)
	sort.Strings(required)
	return excess, required
}
