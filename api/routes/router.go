package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/healthoasis/wallet-backend/api/controllers"
	admincontrollers "github.com/healthoasis/wallet-backend/api/controllers/admin"
	paymentcontrollers "github.com/healthoasis/wallet-backend/api/controllers/payments"
	walletcontrollers "github.com/healthoasis/wallet-backend/api/controllers/wallet"
	webhookcontrollers "github.com/healthoasis/wallet-backend/api/controllers/webhooks"
	"github.com/healthoasis/wallet-backend/api/middleware"
	"github.com/healthoasis/wallet-backend/internal/auth"
	"github.com/healthoasis/wallet-backend/internal/history"
	"github.com/healthoasis/wallet-backend/internal/settlement"
	"github.com/healthoasis/wallet-backend/internal/topups"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	stripewebhook "github.com/healthoasis/wallet-backend/internal/webhooks/stripe"
	"github.com/healthoasis/wallet-backend/pkg/config"
	"github.com/healthoasis/wallet-backend/pkg/db"
	"github.com/healthoasis/wallet-backend/pkg/logger"
	"github.com/healthoasis/wallet-backend/pkg/redis"
	"github.com/healthoasis/wallet-backend/pkg/stripe"
)

type keyValueStore interface {
	redis.IdempotencyStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
	Ping(ctx context.Context) error
}

// Services bundles everything the HTTP surface calls into.
type Services struct {
	Auth       auth.Service
	Accounts   *wallet.Store
	Settlement *settlement.Service
	History    *history.Service
	Topups     *topups.Service
	Webhooks   *stripewebhook.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	stripeClient *stripe.Client,
	gatherer prometheus.Gatherer,
	svc Services,
) http.Handler {
	// A nil client disables idempotency replay and rate limiting.
	var kv keyValueStore
	pingers := map[string]controllers.Pinger{"db": dbP}
	if redisClient != nil {
		kv = redisClient
		pingers["redis"] = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
		middleware.Idempotency(kv, logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, pingers, logg))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// The signature covers the exact request bytes, so nothing may decode the body first.
	// Older Stripe endpoint configs still deliver to /api/v1/wallet/webhook.
	stripeWebhook := webhookcontrollers.StripeWebhook(svc.Webhooks, stripeClient, logg)
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", stripeWebhook)
	})

	r.Route("/api/v1/wallet", func(r chi.Router) {
		r.With(middleware.RateLimit(middleware.LoginRateLimitPolicy(), kv, logg)).
			Post("/login", walletcontrollers.Login(svc.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, logg)).Get("/me", walletcontrollers.Me(svc.Accounts, logg))
		r.Get("/balance", walletcontrollers.Balance(svc.Accounts, logg))
		r.Get("/balance/detailed", walletcontrollers.BalanceDetailed(svc.Accounts, svc.History, logg))
		r.Get("/history", walletcontrollers.History(svc.History, logg))
		r.Post("/add-money", walletcontrollers.AddMoney(svc.Topups, logg))
		r.Post("/payment-intent", walletcontrollers.PaymentIntent(svc.Topups, logg))
		r.Post("/transfer", walletcontrollers.Transfer(svc.Settlement, logg))
		r.Post("/book-appointment", walletcontrollers.BookAppointment(svc.Settlement, logg))
		r.Post("/appointments/auto-deduct", walletcontrollers.AutoDeduct(svc.Settlement, logg))
		r.Post("/webhook", stripeWebhook)
	})

	r.Route("/api/v1/stripe", func(r chi.Router) {
		r.Post("/checkout-session", paymentcontrollers.CheckoutSession(svc.Topups, logg))
		r.Get("/payments", paymentcontrollers.Payments(svc.Webhooks, logg))
	})

	r.Route("/api/v1/video-call", func(r chi.Router) {
		r.Post("/pay", controllers.VideoCallPay(svc.Settlement, logg))
		r.Get("/fee", controllers.VideoCallFee(svc.Settlement))
	})

	r.Route("/api/v1/transactions", func(r chi.Router) {
		r.Get("/debit", controllers.TransactionDebits(svc.History, logg))
		r.Get("/credit", controllers.TransactionCredits(svc.History, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.AdminKey(cfg.Admin.APIKey, logg))
		r.Get("/wallet", admincontrollers.Wallet(svc.Accounts, logg))
		r.Get("/payment-events", admincontrollers.PaymentEvents(svc.Webhooks, logg))
		r.Post("/payment-events/{eventId}/reprocess", admincontrollers.ReprocessPaymentEvent(svc.Webhooks, logg))
		r.Post("/transactions", admincontrollers.RecordTransaction(svc.Settlement, logg))
	})

	return r
}
