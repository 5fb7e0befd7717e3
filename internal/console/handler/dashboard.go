package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
)

// DashboardService Описываем, что нам нужно от сервиса
type DashboardService interface {
	GetTenantStats(ctx context.Context) (*domain.TenantStats, error)
}

type DashboardHandler struct {
	service DashboardService
}

func NewDashboardHandler(s DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetTenantStats(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
