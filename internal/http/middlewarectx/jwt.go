// Package middlewarectx содержит HTTP middleware проверки JWT, роли и частоты запросов.
//
// JWTMiddleware проверяет токен в заголовке Authorization и кладёт в контекст
// идентификатор учётной записи и роль. При ошибке отвечает 401 Unauthorized.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/clearride/internal/http/response"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// AccountID ключ идентификатора учётной записи в контексте
	AccountID Key = "account_id"
	// Role ключ роли в контексте
	Role Key = "role"
)

// AccountIDFrom достаёт идентификатор учётной записи из контекста.
func AccountIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(AccountID).(string)
	return id, ok && id != ""
}

// JWTMiddleware возвращает middleware, который проверяет JWT в заголовке Authorization.
func JWTMiddleware(authService Service, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Warn("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := authService.ValidateToken(r.Context(), tokenStr)
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), AccountID, claims.AccountID)
			ctx = context.WithValue(ctx, Role, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
