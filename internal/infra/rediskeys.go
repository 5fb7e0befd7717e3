package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "gpa"
)

const (
	// RedisKeyPermMapPrefix — кэш распарсенных справочников разрешений (по версии API).
	RedisKeyPermMapPrefix = RedisNamespace + ":permmap:"

	// RedisKeyRunLock — лок от одновременного запуска двух прогонов по одному тенанту.
	RedisKeyRunLock = RedisNamespace + ":run:lock"
)

// PermissionMapCacheKey возвращает ключ кэша справочника для версии API.
func PermissionMapCacheKey(version string) string {
	return fmt.Sprintf("%s%s", RedisKeyPermMapPrefix, version)
}
