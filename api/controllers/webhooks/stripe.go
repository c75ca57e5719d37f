package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/healthoasis/wallet-backend/api/responses"
	stripewebhook "github.com/healthoasis/wallet-backend/internal/webhooks/stripe"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

const maxPayloadBytes = 1 << 20

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event, payload []byte) (*stripewebhook.Outcome, error)
}

type stripeClient interface {
	SigningSecret() string
}

type ackBody struct {
	Received bool                   `json:"received"`
	Outcome  *stripewebhook.Outcome `json:"outcome,omitempty"`
}

// StripeWebhook verifies and ingests wallet top-up events. Once the signature
// checks out the gateway is always acknowledged; processing problems are kept
// on the stored event for retry.
func StripeWebhook(svc StripeWebhookService, client stripeClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		secret := ""
		if client != nil {
			secret = client.SigningSecret()
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := stripewebhook.VerifySignature(payload, r.Header.Get(stripewebhook.SignatureHeader), secret)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome, err := svc.HandleEvent(ctx, event, payload)
		if err != nil {
			if logg != nil {
				logg.Error(logg.WithField(ctx, "gateway_event_id", event.ID), "stripe event not ingested", err)
			}
			responses.WriteJSON(w, http.StatusOK, ackBody{Received: true})
			return
		}
		responses.WriteJSON(w, http.StatusOK, ackBody{Received: true, Outcome: outcome})
	}
}
