package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/clearride/internal/http/response"
)

// RequireRole пропускает запрос только с указанной ролью. Ставится после JWTMiddleware.
func RequireRole(role string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ := r.Context().Value(Role).(string)
			if got != role {
				log.Warn("access denied by role",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("role", got))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
