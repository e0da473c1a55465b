package clearride

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/magabrotheeeer/clearride/internal/cache"
	"github.com/magabrotheeeer/clearride/internal/config"
	"github.com/magabrotheeeer/clearride/internal/lib/clock"
	"github.com/magabrotheeeer/clearride/internal/lib/jwt"
	"github.com/magabrotheeeer/clearride/internal/lib/sl"
	"github.com/magabrotheeeer/clearride/internal/metrics"
	"github.com/magabrotheeeer/clearride/internal/migrations"
	"github.com/magabrotheeeer/clearride/internal/paymentprovider"
	appealservice "github.com/magabrotheeeer/clearride/internal/services/appeal"
	authservice "github.com/magabrotheeeer/clearride/internal/services/auth"
	"github.com/magabrotheeeer/clearride/internal/services/discount"
	"github.com/magabrotheeeer/clearride/internal/services/entitlement"
	hpiservice "github.com/magabrotheeeer/clearride/internal/services/hpi"
	paymentservice "github.com/magabrotheeeer/clearride/internal/services/payment"
	promoservice "github.com/magabrotheeeer/clearride/internal/services/promo"
	"github.com/magabrotheeeer/clearride/internal/storage"
)

// App HTTP сервер ClearRide со всеми зависимостями.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
}

// New подключает хранилища, применяет миграции и собирает сервисы.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(registry)

	clk := clock.Real{}
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	resolver := entitlement.New(db, clk, logger, recorder)
	calculator := discount.New(db, cacheRedis, cfg.PromoCacheTTL, clk, logger, recorder)

	if cfg.StripeSecretKey == "" {
		logger.Warn("stripe secret key is empty, checkout sessions will fail")
	}
	provider := paymentprovider.NewStripeClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.SuccessURL, cfg.CancelURL, nil)

	services := Services{
		Auth:     authservice.NewAuthService(db, jwtMaker, clk, cfg.TrialDays, logger),
		Appeals:  appealservice.NewService(db, resolver, clk, logger),
		Hpi:      hpiservice.NewService(db, resolver, clk, logger),
		Discount: calculator,
		Promo:    promoservice.NewService(db, cacheRedis, logger),
		Payments: paymentservice.New(db, calculator, provider,
			paymentservice.NewCatalogue(cfg.Pricing, cfg.Currency), clk, logger, recorder),
		Health: db,
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, services, cfg.RateLimit, registry)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
