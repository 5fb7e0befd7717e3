package auth

import (
	"context"
	"net/http"

	"github.com/xela07ax/graph-privilege-auditor/internal/domain"
	"go.uber.org/zap"
)

// TokenValidator отвязывает middleware от конкретной реализации проверки.
type TokenValidator interface {
	VerifyToken(tokenStr string) (*domain.CustomClaims, error)
}

// Ключи контекста, под которыми защищенные хендлеры находят
// личность и права вызывающего.
const (
	CtxKeyUserID = "user_id"
	CtxKeyScopes = "user_scopes"
)

// NewMiddleware закрывает группу роутов проверкой RS256-токена.
// Ответ на любой дефект токена одинаковый — 401 без деталей.
func NewMiddleware(v TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.VerifyToken(authHeader)
			if err != nil {
				logger.Warn("auth failure", zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CtxKeyScopes, claims.Scopes)
			ctx = context.WithValue(ctx, CtxKeyUserID, claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
