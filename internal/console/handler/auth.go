package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xela07ax/graph-privilege-auditor/internal/console/service"
	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(s *service.AuthService) *AuthHandler {
	return &AuthHandler{service: s}
}

// Login обменивает пару логин/пароль на RS256-токен.
// Причина отказа не раскрывается — и неверный пароль, и неизвестный
// логин выглядят снаружи одинаково (защита от перебора учеток).
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp, err := h.service.GenerateToken(r.Context(), req.Username, req.Password)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
