// Package clearride собирает HTTP API ClearRide.
package clearride

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/clearride/internal/config"
	appealcreate "github.com/magabrotheeeer/clearride/internal/http/handlers/appeal/create"
	"github.com/magabrotheeeer/clearride/internal/http/handlers/appeal/letter"
	appeallist "github.com/magabrotheeeer/clearride/internal/http/handlers/appeal/list"
	"github.com/magabrotheeeer/clearride/internal/http/handlers/appeal/outcome"
	"github.com/magabrotheeeer/clearride/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/clearride/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/clearride/internal/http/handlers/health"
	"github.com/magabrotheeeer/clearride/internal/http/handlers/hpi/check"
	"github.com/magabrotheeeer/clearride/internal/http/handlers/payment/checkout"
	"github.com/magabrotheeeer/clearride/internal/http/handlers/payment/webhook"
	promocreate "github.com/magabrotheeeer/clearride/internal/http/handlers/promo/create"
	promoread "github.com/magabrotheeeer/clearride/internal/http/handlers/promo/read"
	promoremove "github.com/magabrotheeeer/clearride/internal/http/handlers/promo/remove"
	promoupdate "github.com/magabrotheeeer/clearride/internal/http/handlers/promo/update"
	promovalidate "github.com/magabrotheeeer/clearride/internal/http/handlers/promo/validate"
	"github.com/magabrotheeeer/clearride/internal/http/middlewarectx"
	"github.com/magabrotheeeer/clearride/internal/models"
	appealservice "github.com/magabrotheeeer/clearride/internal/services/appeal"
	authservice "github.com/magabrotheeeer/clearride/internal/services/auth"
	"github.com/magabrotheeeer/clearride/internal/services/discount"
	hpiservice "github.com/magabrotheeeer/clearride/internal/services/hpi"
	paymentservice "github.com/magabrotheeeer/clearride/internal/services/payment"
	promoservice "github.com/magabrotheeeer/clearride/internal/services/promo"
)

// Services сервисы, обслуживающие маршруты API.
type Services struct {
	Auth     *authservice.AuthService
	Appeals  *appealservice.Service
	Hpi      *hpiservice.Service
	Discount *discount.Calculator
	Promo    *promoservice.Service
	Payments *paymentservice.PaymentService
	Health   health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services, limits config.RateLimit, gatherer prometheus.Gatherer) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, limits.RPS, limits.Burst))
			r.Post("/register", register.New(logger, svc.Auth).ServeHTTP)
			r.Post("/login", login.New(logger, svc.Auth).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации, подпись проверяет сервис)
		r.Post("/payments/webhook", webhook.New(logger, svc.Payments).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Auth, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, limits.RPS, limits.Burst))

			r.Post("/appeals", appealcreate.New(logger, svc.Appeals).ServeHTTP)
			r.Get("/appeals", appeallist.New(logger, svc.Appeals).ServeHTTP)
			r.Patch("/appeals/{id}/outcome", outcome.New(logger, svc.Appeals).ServeHTTP)
			r.Get("/appeals/{id}/letter", letter.New(logger, svc.Appeals).ServeHTTP)

			r.Post("/hpi/checks", check.New(logger, svc.Hpi).ServeHTTP)
			r.Post("/promo-codes/validate", promovalidate.New(logger, svc.Discount).ServeHTTP)
			r.Post("/payments/checkout", checkout.New(logger, svc.Payments).ServeHTTP)

			r.Route("/admin/promo-codes", func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(models.RoleAdmin, logger))
				r.Post("/", promocreate.New(logger, svc.Promo).ServeHTTP)
				r.Get("/{code}", promoread.New(logger, svc.Promo).ServeHTTP)
				r.Put("/{code}", promoupdate.New(logger, svc.Promo).ServeHTTP)
				r.Delete("/{code}", promoremove.New(logger, svc.Promo).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, svc.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
