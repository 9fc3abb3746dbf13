// Package portal собирает HTTP-приложение портала: маршруты, сервисы и зависимости.
package portal

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	// Регистрация swagger-документа для /docs.
	_ "github.com/magabrotheeeer/worksmart-portal/docs"
	"github.com/magabrotheeeer/worksmart-portal/internal/http/handlers/checkout/checkoutcreate"
	"github.com/magabrotheeeer/worksmart-portal/internal/http/handlers/checkout/checkoutreturn"
	"github.com/magabrotheeeer/worksmart-portal/internal/http/handlers/entitlement/entitlementcheck"
	"github.com/magabrotheeeer/worksmart-portal/internal/http/handlers/entitlement/entitlementlist"
	"github.com/magabrotheeeer/worksmart-portal/internal/http/handlers/health"
	"github.com/magabrotheeeer/worksmart-portal/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/worksmart-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/worksmart-portal/internal/metrics"
)

// Dependencies всё, что нужно обработчикам.
type Dependencies struct {
	Tokens        middlewarectx.TokenParser
	Limiter       *rate.Limiter
	Checkout      checkoutcreate.Service
	Writer        paymentwebhook.Writer
	Entitlements  EntitlementReader
	Reconciler    checkoutreturn.Reconciler
	WebhookSecret string
	Metrics       *metrics.Metrics
	HealthChecks  map[string]health.Pinger
}

// EntitlementReader объединяет список и проверку владения.
type EntitlementReader interface {
	entitlementlist.Service
	entitlementcheck.Service
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Dependencies) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))

			r.With(middlewarectx.RateLimitMiddleware(logger, d.Limiter)).
				Post("/checkout", checkoutcreate.New(logger, d.Checkout).ServeHTTP)
			r.Get("/checkout/return", checkoutreturn.New(logger, d.Reconciler).ServeHTTP)
			r.Get("/entitlements", entitlementlist.New(logger, d.Entitlements).ServeHTTP)
			r.Get("/entitlements/check", entitlementcheck.New(logger, d.Entitlements).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации, проверяется подпись)
		r.Post("/payments/webhook", paymentwebhook.New(logger, d.Writer, d.WebhookSecret, d.Metrics).ServeHTTP)
	})

	r.Get("/healthz", health.New(logger, d.HealthChecks).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
