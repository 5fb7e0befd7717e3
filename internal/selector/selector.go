// Package selector сводит результаты сопоставления одного приложения
// к минимальному набору разрешений, покрывающему все его активности.
//
// Точное минимальное покрытие (set cover) NP-трудно, здесь — жадная
// аппроксимация: разрешения один раз сортируются по общему покрытию
// по убыванию, и на каждом шаге берется первое в этом порядке, у которого
// остался хотя бы один непокрытый ключ. Результат не гарантированно
// оптимален, и это свойство алгоритма, а не дефект.
package selector

import (
	"sort"

	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
)

// coverKey — идентичность разрешения в карте покрытия: имя + scope.
type coverKey struct {
	name  string
	scope domain.ScopeType
}

type coverage struct {
	descriptor domain.PermissionDescriptor
	keys       map[domain.ActivityKey]struct{}
	order      int // порядок первого появления, для стабильности сортировки
}

// Select выбирает минимальный (жадно) набор разрешений по всем MatchResult
// одного приложения. Активность не исчезает никогда: все, что не удалось
// покрыть кандидатами, попадает в Unmatched — включая формально "matched"
// записи с пустым списком кандидатов.
//
// Пустой вход — легитимен, возвращается корректный пустой результат.
func Select(results []domain.MatchResult) domain.SelectionResult {
	var out domain.SelectionResult

	// 1. Разделение: покрываемые / все остальные.
	seenTotal := make(map[domain.ActivityKey]struct{})
	seenUnmatched := make(map[domain.ActivityKey]struct{})
	matched := make([]domain.MatchResult, 0, len(results))

	for _, r := range results {
		key := r.Activity.Key()
		seenTotal[key] = struct{}{}

		if r.IsMatched && len(r.Candidates) > 0 {
			matched = append(matched, r)
			continue
		}
		if _, dup := seenUnmatched[key]; dup {
			continue
		}
		seenUnmatched[key] = struct{}{}
		out.Unmatched = append(out.Unmatched, r.Activity)
	}

	// 2. Карта покрытия: разрешение -> множество ключей, которые оно закрывает.
	covers := make(map[coverKey]*coverage)
	uncovered := make(map[domain.ActivityKey]struct{})

	for _, r := range matched {
		key := r.Activity.Key()
		uncovered[key] = struct{}{}
		for _, d := range r.Candidates {
			ck := coverKey{name: d.Name, scope: d.ScopeType}
			c, ok := covers[ck]
			if !ok {
				c = &coverage{
					descriptor: d,
					keys:       make(map[domain.ActivityKey]struct{}),
					order:      len(covers),
				}
				covers[ck] = c
			}
			c.keys[key] = struct{}{}
		}
	}

	out.TotalActivities = len(seenTotal)
	out.MatchedActivities = len(uncovered)

	// 3. Стабильный порядок: по общему покрытию убыванию, при равенстве —
	// порядок первого появления. Побеждает первый найденный, без смещения
	// в сторону least-privileged при равном покрытии.
	ordered := make([]*coverage, 0, len(covers))
	for _, c := range covers {
		ordered = append(ordered, c)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if len(ordered[i].keys) != len(ordered[j].keys) {
			return len(ordered[i].keys) > len(ordered[j].keys)
		}
		return ordered[i].order < ordered[j].order
	})

	// 4. Жадный цикл. Каждая итерация либо покрывает >=1 новый ключ,
	// либо завершает цикл — зависание исключено по построению.
	for len(uncovered) > 0 {
		var best *coverage
		marginal := 0
		for _, c := range ordered {
			m := 0
			for k := range c.keys {
				if _, ok := uncovered[k]; ok {
					m++
				}
			}
			if m > 0 {
				best, marginal = c, m
				break
			}
		}
		if best == nil {
			// По построению недостижимо (каждый непокрытый ключ пришел
			// хотя бы с одним кандидатом), но цикл обязан завершаться.
			break
		}

		for k := range best.keys {
			delete(uncovered, k)
		}
		out.Selected = append(out.Selected, domain.SelectedPermission{
			Descriptor:        best.descriptor,
			ActivitiesCovered: marginal,
		})
	}

	return out
}
