package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/pkg/middleware"
	"github.com/scribeline/payment-engine/pkg/observability"
)

// RouterConfig bundles the handlers and cross-cutting middleware for the
// public HTTP surface
type RouterConfig struct {
	Checkout   *CheckoutHandler
	Webhook    *WebhookHandler
	Verify     *VerifyHandler
	Admin      *AdminHandler
	Agreements *AgreementHandler
	Limiter    *middleware.RateLimiter
	Logger     *zap.Logger
}

// NewRouter builds the HTTP mux. Webhook routes skip rate limiting since
// gateways control their own delivery pace and a 429 triggers redelivery
// storms.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	limited := func(h http.HandlerFunc) http.Handler {
		if cfg.Limiter == nil {
			return h
		}
		return cfg.Limiter.Middleware(h)
	}

	mux.Handle("POST /agreements",
		observability.MetricsMiddleware("/agreements", limited(cfg.Agreements.CreateAgreement)))
	mux.Handle("GET /agreements/{id}",
		observability.MetricsMiddleware("/agreements/{id}", limited(cfg.Agreements.GetAgreement)))

	mux.Handle("POST /payment/enhanced-checkout",
		observability.MetricsMiddleware("/payment/enhanced-checkout", limited(cfg.Checkout.CreateCheckout)))
	mux.Handle("POST /payment/manual-verify/{reference}",
		observability.MetricsMiddleware("/payment/manual-verify", limited(cfg.Verify.ManualVerify)))

	mux.Handle("POST /webhooks/{gateway}",
		observability.MetricsMiddleware("/webhooks", http.HandlerFunc(cfg.Webhook.HandleWebhook)))

	mux.Handle("POST /admin/fix-payment-statuses",
		observability.MetricsMiddleware("/admin/fix-payment-statuses", http.HandlerFunc(cfg.Admin.FixPaymentStatuses)))
	mux.Handle("POST /admin/fix-payment-calculations",
		observability.MetricsMiddleware("/admin/fix-payment-calculations", http.HandlerFunc(cfg.Admin.FixPaymentCalculations)))
	mux.Handle("POST /admin/reconcile/{agreement_id}",
		observability.MetricsMiddleware("/admin/reconcile", http.HandlerFunc(cfg.Admin.ReconcileAgreement)))

	return middleware.GzipHandler(cfg.Logger)(mux)
}
