// Package permmap держит справочник endpoint→permission: какие разрешения
// авторизуют какой путь и метод, отдельно для v1.0 и beta.
package permmap

import (
	"fmt"

	"github.com/xela07ax/graph-privilege-auditor/internal/canonical"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
)

// Index — read-only справочник, собирается один раз на старте процесса
// и дальше разделяется всеми воркерами без блокировок.
type Index struct {
	// версия -> нормализованный путь -> запись
	byVersion map[string]map[string]*domain.EndpointEntry
}

// NewIndex строит индекс из заранее распарсенных коллекций записей.
// Пути записей прогоняются через то же правило подстановки идентификаторов,
// что и живые URI: {user-id} и подобные плейсхолдеры становятся {id},
// поэтому Find работает простым строковым сравнением.
func NewIndex(docs map[string][]domain.EndpointEntry) *Index {
	idx := &Index{byVersion: make(map[string]map[string]*domain.EndpointEntry, len(docs))}

	for version, entries := range docs {
		paths := make(map[string]*domain.EndpointEntry, len(entries))
		for i := range entries {
			e := entries[i]
			key := canonical.TemplatePath(e.CanonicalPath)
			if key == "" {
				continue
			}
			// Дубликаты путей в справочнике сливаем по методам.
			if exist, ok := paths[key]; ok {
				// Первая запись могла прийти без поля methods вовсе.
				if exist.Methods == nil {
					exist.Methods = make(map[string][]domain.PermissionDescriptor, len(e.Methods))
				}
				for m, descs := range e.Methods {
					exist.Methods[m] = append(exist.Methods[m], descs...)
				}
				continue
			}
			e.CanonicalPath = key
			paths[key] = &e
		}
		idx.byVersion[version] = paths
	}

	return idx
}

// Find ищет запись по точному совпадению пути. Никакого префиксного или
// нечеткого поиска: активность без точного совпадения уходит в unmatched,
// а не угадывается.
func (idx *Index) Find(version, path string) (*domain.EndpointEntry, bool) {
	paths, ok := idx.byVersion[version]
	if !ok {
		return nil, false
	}
	e, ok := paths[canonical.TemplatePath(path)]
	return e, ok
}

// Size возвращает количество записей по версиям, для логов старта.
func (idx *Index) Size() map[string]int {
	out := make(map[string]int, len(idx.byVersion))
	for v, paths := range idx.byVersion {
		out[v] = len(paths)
	}
	return out
}

func (idx *Index) String() string {
	return fmt.Sprintf("permmap.Index%v", idx.Size())
}
