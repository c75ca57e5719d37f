package payments

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/api/responses"
	"github.com/healthoasis/wallet-backend/api/validators"
	"github.com/healthoasis/wallet-backend/internal/topups"
	stripewebhook "github.com/healthoasis/wallet-backend/internal/webhooks/stripe"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

type checkoutService interface {
	CreateCheckoutSession(ctx context.Context, email string, amountUSD decimal.Decimal) (*topups.CheckoutResult, error)
}

type paymentHistory interface {
	PaymentHistory(ctx context.Context, email string) ([]models.ExternalPaymentEvent, error)
}

type checkoutRequest struct {
	Email  string          `json:"email" validate:"required,email"`
	Amount decimal.Decimal `json:"amount" validate:"money"`
}

// CheckoutSession opens a hosted checkout page for a USD top-up. The wallet is
// credited later, when the completed session is reported by webhook.
func CheckoutSession(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CreateCheckoutSession(r.Context(), body.Email, body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"url": result.URL, "sessionId": result.SessionID})
	}
}

// Payments lists the gateway events recorded for a patient.
func Payments(svc paymentHistory, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := validators.RequireQuery(r, "email")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.PaymentHistory(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"payments": stripewebhook.EventsFromModels(events)})
	}
}
