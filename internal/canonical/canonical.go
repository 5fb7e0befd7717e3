// Package canonical приводит сырые URI запросов к Graph API к
// версионно-стабильному виду без идентификаторов. Канонизация —
// чистая функция: детерминированная, идемпотентная, без ошибок.
// Некорректный вход возвращается как есть (после trim-а).
package canonical

import (
	"regexp"
	"strings"
)

const placeholder = "{id}"

// Сегмент вида <chars>@<chars>.<chars> — почти наверняка UPN или email.
var emailSegment = regexp.MustCompile(`^[^@/]+@[^@/]+\.[^@/]+$`)

// Canonicalize выполняет полный цикл приведения URI:
//  1. отрезает query string;
//  2. схлопывает повторяющиеся слэши;
//  3. сегмент "me" переписывает в "users/{id}";
//  4. email-подобные сегменты заменяет на {id};
//  5. любой сегмент с цифрой (кроме сегмента версии) заменяет на {id};
//     особый случай — последний сегмент с '(': OData-функция, оставляем
//     имя функции и добавляем "/{id}" вместо аргументов.
//
// Хвостовой слэш у результата убирается.
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}

	// 1. Query string нам не интересен: семантика вызова — метод + путь.
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}

	prefix, path := splitHost(s)
	if path == "" {
		return strings.TrimSuffix(prefix, "/")
	}

	// Относительный путь без ведущего слэша возвращаем в том же виде.
	lead := "/"
	if prefix == "" && !strings.HasPrefix(path, "/") {
		lead = ""
	}

	path = collapseSlashes(path)

	segments := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]string, 0, len(segments)+1)

	for i, seg := range segments {
		if seg == "" {
			continue
		}

		if IsVersion(seg) {
			out = append(out, seg)
			continue
		}

		// /me — алиас текущего пользователя; нормализуем к /users/{id},
		// чтобы вызовы от разных субъектов схлопывались в один ключ.
		if seg == "me" {
			out = append(out, "users", placeholder)
			continue
		}

		if emailSegment.MatchString(seg) {
			out = append(out, placeholder)
			continue
		}

		if containsDigit(seg) {
			// OData-функция в конце пути: getDirectRoutingCalls(from=...,to=...)
			// Имя функции — часть семантики, аргументы — нет.
			if i == len(segments)-1 {
				if p := strings.IndexByte(seg, '('); p >= 0 {
					if p > 0 {
						out = append(out, seg[:p])
					}
					out = append(out, placeholder)
					continue
				}
			}
			out = append(out, placeholder)
			continue
		}

		out = append(out, seg)
	}

	if len(out) == 0 {
		return strings.TrimSuffix(prefix, "/")
	}
	return prefix + lead + strings.Join(out, "/")
}

// IsVersion сообщает, является ли сегмент версией Graph API.
func IsVersion(seg string) bool {
	return seg == "v1.0" || seg == "beta"
}

// Split разбирает канонический URI на версию и путь после нее.
// Второе значение false — URI не указывает ни на v1.0, ни на beta:
// это не вызов Graph, анализу не подлежит.
func Split(canonicalURI string) (version, path string, ok bool) {
	_, p := splitHost(canonicalURI)
	segments := strings.Split(strings.Trim(p, "/"), "/")
	if len(segments) == 0 || !IsVersion(segments[0]) {
		return "", "", false
	}
	rest := "/" + strings.Join(segments[1:], "/")
	if rest == "/" {
		rest = ""
	}
	return segments[0], rest, true
}

// TemplatePath прогоняет путь справочника через то же правило подстановки
// идентификаторов, что и живые URI. Плейсхолдеры вида {user-id}, {message-id}
// приводятся к единому {id}, чтобы обе стороны сравнения совпадали посимвольно.
func TemplatePath(path string) string {
	path = collapseSlashes(strings.TrimSpace(path))
	segments := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			out = append(out, placeholder)
			continue
		}
		if !IsVersion(seg) && containsDigit(seg) {
			out = append(out, placeholder)
			continue
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return ""
	}
	return "/" + strings.Join(out, "/")
}

// splitHost отделяет scheme://host от пути. Для относительных URI
// префикс пустой.
func splitHost(s string) (prefix, path string) {
	i := strings.Index(s, "://")
	if i < 0 {
		// Относительный путь, с ведущим слэшем или без.
		return "", s
	}
	rest := s[i+3:]
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return s, ""
	}
	return s[:i+3+slash], rest[slash:]
}

func collapseSlashes(s string) string {
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	return s
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
