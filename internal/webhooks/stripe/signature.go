package stripewebhook

import (
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
)

// SignatureHeader carries the gateway's HMAC over the raw request body.
const SignatureHeader = "Stripe-Signature"

// VerifySignature authenticates payload against the signing secret and
// returns the decoded event. Events signed for another API version are
// accepted; only the signature and timestamp are enforced.
func VerifySignature(payload []byte, header, secret string) (*stripe.Event, error) {
	if strings.TrimSpace(header) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "stripe signature missing")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook signing secret not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		msg := "stripe signature invalid"
		if errors.Is(err, webhook.ErrTooOld) {
			msg = "stripe signature expired"
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeSignatureInvalid, err, msg)
	}
	if event.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "stripe event id missing")
	}
	return &event, nil
}
