package domain

// ScopeType определяет контекст применения разрешения.
type ScopeType string

const (
	ScopeApplication ScopeType = "Application" // app-only (client credentials)
	ScopeDelegated   ScopeType = "Delegated"   // от имени пользователя
)

// PermissionDescriptor — одно разрешение из справочника endpoint→permission.
type PermissionDescriptor struct {
	Name              string    `json:"name"`                // например "User.ReadBasic.All"
	ScopeType         ScopeType `json:"scope_type"`
	IsLeastPrivileged bool      `json:"is_least_privileged"` // флаг наименьшей привилегии из справочника
}

// EndpointEntry — запись справочника для одного канонического пути:
// какие разрешения авторизуют каждый HTTP-метод.
type EndpointEntry struct {
	CanonicalPath string                            `json:"path"`
	Methods       map[string][]PermissionDescriptor `json:"methods"`
}

// PermissionsForMethod возвращает дескрипторы для метода.
// Отсутствие метода в записи — легитимная ситуация (unmatched), не ошибка.
func (e *EndpointEntry) PermissionsForMethod(method string) []PermissionDescriptor {
	if e == nil {
		return nil
	}
	return e.Methods[method]
}
