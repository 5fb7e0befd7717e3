package domain

import "time"

// Версии Graph API, которые мы умеем анализировать.
const (
	VersionV1   = "v1.0"
	VersionBeta = "beta"
)

// RawActivity — один фактический вызов API, как его отдает лог-хранилище.
// Хранилище уже дедуплицирует пары (method, uri) в рамках одного приложения,
// но только после обрезки query string и двойных слэшей — подстановку
// идентификаторов мы делаем сами.
type RawActivity struct {
	Method string `json:"method"`
	URI    string `json:"uri"`
}

// CanonicalActivity — вызов, приведенный к версионно-стабильному виду:
// метод + версия API + путь без идентификаторов.
type CanonicalActivity struct {
	Method  string `json:"method"`
	Version string `json:"version"` // "v1.0" или "beta"
	Path    string `json:"path"`    // например "/users/{id}/messages"
}

// ActivityKey — единица покрытия. Разные сырые URI, канонизирующиеся
// в одно и то же, схлопываются в один ключ.
type ActivityKey struct {
	Method  string
	Version string
	Path    string
}

func (a CanonicalActivity) Key() ActivityKey {
	return ActivityKey{Method: a.Method, Version: a.Version, Path: a.Path}
}

// ActivityWindow — единица запроса к лог-хранилищу. Создается один раз
// на приложение и рекурсивно делится пополам при отказе по размеру.
// Между приложениями окна не разделяются.
type ActivityWindow struct {
	Start      time.Time
	End        time.Time
	MaxEntries int
}

// Bisect делит окно по временной середине. Лимит строк для каждой
// половины уменьшается вдвое, но не опускается ниже 1.
func (w ActivityWindow) Bisect() (ActivityWindow, ActivityWindow) {
	mid := w.Start.Add(w.End.Sub(w.Start) / 2)

	half := w.MaxEntries / 2
	if half < 1 {
		half = 1
	}

	left := ActivityWindow{Start: w.Start, End: mid, MaxEntries: half}
	right := ActivityWindow{Start: mid, End: w.End, MaxEntries: half}
	return left, right
}

// Duration возвращает ширину окна.
func (w ActivityWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
