package domain

import "time"

// MatchResult — результат сопоставления одной канонической активности
// со справочником разрешений.
type MatchResult struct {
	Activity    CanonicalActivity      `json:"activity"`
	MatchedPath string                 `json:"matched_path,omitempty"` // путь записи справочника, если нашли
	Candidates  []PermissionDescriptor `json:"candidates"`
	IsMatched   bool                   `json:"is_matched"`
}

// SelectedPermission — разрешение, выбранное жадным алгоритмом.
// ActivitiesCovered — маржинальное покрытие: сколько НОВЫХ ключей
// активности закрыло это разрешение в момент выбора, не общее.
type SelectedPermission struct {
	Descriptor        PermissionDescriptor `json:"descriptor"`
	ActivitiesCovered int                  `json:"activities_covered"`
}

// SelectionResult — итог минимизации набора разрешений для одного приложения.
// Активности, которые алгоритм не смог объяснить, никогда не скрываются:
// они всегда попадают в Unmatched.
type SelectionResult struct {
	Selected          []SelectedPermission `json:"selected"`
	Unmatched         []CanonicalActivity  `json:"unmatched"`
	TotalActivities   int                  `json:"total_activities"`
	MatchedActivities int                  `json:"matched_activities"`
}

// PermissionNames возвращает имена выбранных разрешений в порядке выбора.
// Форма пригодна для прямого diff-а со списком текущих грантов приложения.
func (r SelectionResult) PermissionNames() []string {
	names := make([]string, 0, len(r.Selected))
	for _, s := range r.Selected {
		names = append(names, s.Descriptor.Name)
	}
	return names
}

// Application — обследуемое приложение (service principal) вместе
// с текущими app-only грантами из каталога.
type Application struct {
	ID                 string   `json:"id"`     // objectId service principal-а
	AppID              string   `json:"app_id"` // clientId приложения
	DisplayName        string   `json:"display_name"`
	CurrentPermissions []string `json:"current_permissions"`
}

// AssessmentReport — итоговый отчет по одному приложению, то, что уходит
// в хранилище и наружу (в рендеринг отчетов).
type AssessmentReport struct {
	ID    string `json:"id"`
	RunID string `json:"run_id"`

	Application Application `json:"application"`

	Activity            []CanonicalActivity  `json:"activity"`
	ActivityPermissions []MatchResult        `json:"activity_permissions"`
	OptimalPermissions  []SelectedPermission `json:"optimal_permissions"`
	UnmatchedActivities []CanonicalActivity  `json:"unmatched_activities"`
	MatchedAllActivity  bool                 `json:"matched_all_activity"`

	TotalActivities   int `json:"total_activities"`
	MatchedActivities int `json:"matched_activities"`

	// Дельта относительно текущих грантов.
	ExcessPermissions   []string `json:"excess_permissions"`   // выдано, но не требуется
	RequiredPermissions []string `json:"required_permissions"` // требуется, но не выдано

	// Если сбор активности для приложения упал (не SizeExceeded),
	// здесь текст ошибки; остальные поля отчета в этом случае пустые.
	CollectError string `json:"collect_error,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
	DurationMs  int64     `json:"duration_ms"`
}
