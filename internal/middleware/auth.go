// Package middleware содержит HTTP middleware сервиса витрины.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/service"
)

// CredentialVerifier проверяет административный bearer-токен.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, token string) error
}

// AdminAuth закрывает мутирующие маршруты проверкой пароля администратора.
//
// Токен в заголовке Authorization — это сам пароль: админ-панель хранит его
// после входа и шлёт с каждым запросом, сессий нет. Токен повторно сверяется
// с сохранённым хэшем на каждом вызове.
type AdminAuth struct {
	verifier CredentialVerifier
	logger   *zap.Logger
}

// NewAdminAuth создаёт middleware проверки административного доступа.
func NewAdminAuth(verifier CredentialVerifier, logger *zap.Logger) *AdminAuth {
	return &AdminAuth{
		verifier: verifier,
		logger:   logger,
	}
}

// Middleware пропускает запрос дальше только с валидным токеном администратора.
// Детали отказа наружу не уходят: только статус.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		if err := a.verifier.VerifyCredential(r.Context(), token); err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			a.logger.Error("verify admin credential", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r)
	})
}
