package domain

// TenantStats — агрегаты для дашборда консоли по последнему прогону.
type TenantStats struct {
	AppsAssessed        int64   `json:"apps_assessed"`
	AppsFullyMatched    int64   `json:"apps_fully_matched"`
	AppsFailed          int64   `json:"apps_failed"`
	MatchedRatio        float64 `json:"matched_ratio"`        // доля объясненного трафика по всем приложениям
	ExcessPermissions   int64   `json:"excess_permissions"`   // суммарно лишних грантов
	RequiredPermissions int64   `json:"required_permissions"` // суммарно недостающих грантов
}
