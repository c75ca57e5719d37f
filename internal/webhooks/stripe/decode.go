package stripewebhook

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/money"
)

// paymentEvent is the normalised view of a gateway event.
type paymentEvent struct {
	GatewayEventID string
	EventType      string
	ObjectID       string
	Amount         decimal.Decimal
	Currency       string
	Status         string
	CustomerEmail  string
	PatientEmail   string
	PaymentRef     string
	Metadata       map[string]string
	// Creditable is set for event types that move money into a wallet.
	Creditable bool
}

func (p *paymentEvent) email() string {
	if p.PatientEmail != "" {
		return p.PatientEmail
	}
	return strings.ToLower(strings.TrimSpace(p.CustomerEmail))
}

func decodeEvent(event *stripe.Event) (*paymentEvent, error) {
	if event == nil || event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	parsed := &paymentEvent{
		GatewayEventID: event.ID,
		EventType:      string(event.Type),
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		parsed.Creditable = true
		parsed.ObjectID = session.ID
		parsed.Metadata = session.Metadata
		parsed.Status = string(session.Status)
		parsed.Currency = normalizeCurrency(string(session.Currency))
		parsed.CustomerEmail = session.CustomerEmail
		if parsed.CustomerEmail == "" && session.CustomerDetails != nil {
			parsed.CustomerEmail = session.CustomerDetails.Email
		}
		if session.AmountTotal > 0 {
			parsed.Amount = money.FromMinorUnits(session.AmountTotal)
		} else if raw, ok := session.Metadata["amount"]; ok {
			if amount, err := decimal.NewFromString(strings.TrimSpace(raw)); err == nil {
				parsed.Amount = amount
			}
		}
		parsed.PaymentRef = session.ID
		if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
			parsed.PaymentRef = session.PaymentIntent.ID
		}
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
		}
		parsed.Creditable = true
		parsed.ObjectID = intent.ID
		parsed.Metadata = intent.Metadata
		parsed.Status = string(intent.Status)
		parsed.Currency = normalizeCurrency(string(intent.Currency))
		parsed.CustomerEmail = intent.ReceiptEmail
		parsed.Amount = money.FromMinorUnits(intent.AmountReceived)
		parsed.PaymentRef = intent.ID
	default:
		parsed.ObjectID = event.GetObjectValue("id")
		parsed.Status = event.GetObjectValue("status")
		parsed.Currency = strings.ToUpper(event.GetObjectValue("currency"))
	}

	if email := strings.ToLower(strings.TrimSpace(parsed.Metadata["email"])); email != "" {
		parsed.PatientEmail = email
	}
	return parsed, nil
}

func normalizeCurrency(raw string) string {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return string(enums.CurrencyUSD)
	}
	return raw
}

func metadataMap(in map[string]string) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
