// Package match сопоставляет канонические активности со справочником
// разрешений и отбирает кандидатов с наименьшими привилегиями.
package match

import (
	"github.com/xela07ax/graph-privilege-auditor/internal/canonical"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"github.com/xela07ax/graph-privilege-auditor/internal/permmap"
)

// Matcher не имеет состояния кроме ссылки на read-only индекс,
// поэтому безопасно разделяется всеми воркерами.
type Matcher struct {
	index *permmap.Index
}

func NewMatcher(index *permmap.Index) *Matcher {
	return &Matcher{index: index}
}

// FromRaw превращает сырой вызов в каноническую активность.
// Второе значение false — URI не содержит версии Graph (v1.0/beta):
// это вообще не вызов Graph API, он выпадает из анализа целиком
// и не считается даже как unmatched.
func (m *Matcher) FromRaw(raw domain.RawActivity) (domain.CanonicalActivity, bool) {
	uri := canonical.Canonicalize(raw.URI)
	version, path, ok := canonical.Split(uri)
	if !ok || path == "" {
		return domain.CanonicalActivity{}, false
	}
	return domain.CanonicalActivity{
		Method:  raw.Method,
		Version: version,
		Path:    path,
	}, true
}

// Match разрешает активность в список кандидатов:
//   - записи нет или нет метода — IsMatched=false, кандидаты пустые;
//   - есть Application-кандидаты с флагом least-privileged — берем только их;
//   - флага нет ни у кого — fallback на все Application-дескрипторы;
//   - Delegated не всплывает никогда.
//
// Ошибок не бывает: любой непонятный вход деградирует к unmatched.
func (m *Matcher) Match(activity domain.CanonicalActivity) domain.MatchResult {
	result := domain.MatchResult{Activity: activity}

	entry, ok := m.index.Find(activity.Version, activity.Path)
	if !ok {
		return result
	}

	descriptors := entry.PermissionsForMethod(activity.Method)
	if len(descriptors) == 0 {
		return result
	}

	var application, leastPrivileged []domain.PermissionDescriptor
	for _, d := range descriptors {
		if d.ScopeType != domain.ScopeApplication {
			continue
		}
		application = append(application, d)
		if d.IsLeastPrivileged {
			leastPrivileged = append(leastPrivileged, d)
		}
	}

	result.IsMatched = true
	result.MatchedPath = entry.CanonicalPath

	switch {
	case len(leastPrivileged) > 0:
		result.Candidates = leastPrivileged
	default:
		// В справочнике не размечено наименее привилегированное —
		// честнее предложить все Application-варианты, чем ничего.
		result.Candidates = application
	}

	return result
}
