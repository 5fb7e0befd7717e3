package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/graph-privilege-auditor/internal/console/service"
)

type AssessmentHandler struct {
	service *service.AssessmentService
}

func NewAssessmentHandler(s *service.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{service: s}
}

// List отдает последний отчет по каждому приложению.
func (h *AssessmentHandler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.ListAssessments(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch assessments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reports)
}

// Get отдает последний отчет по конкретному приложению.
func (h *AssessmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appID")
	if appID == "" {
		http.Error(w, "appID is required", http.StatusBadRequest)
		return
	}

	report, err := h.service.GetAssessment(r.Context(), appID)
	if err != nil {
		http.Error(w, "Failed to fetch assessment", http.StatusInternalServerError)
		return
	}
	if report == nil {
		http.Error(w, "assessment not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
