package topups

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/healthoasis/wallet-backend/internal/fx"
	"github.com/healthoasis/wallet-backend/internal/settlement"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
	"github.com/healthoasis/wallet-backend/pkg/money"
)

const (
	topupPurpose  = "wallet_topup"
	checkoutName  = "Wallet Top-Up"
	manualTopup   = "Added money to wallet"
	stripeTopup   = "Added money via Stripe"
	checkoutQuery = "/success?session_id={CHECKOUT_SESSION_ID}&email="
)

type converter interface {
	ToNative(ctx context.Context, amount decimal.Decimal, currency enums.Currency) (fx.Conversion, error)
}

type depositor interface {
	Deposit(ctx context.Context, input settlement.DepositInput) (*settlement.DepositResult, error)
}

// Service moves outside money into patient wallets.
type Service struct {
	gateway   PaymentGateway
	deposits  depositor
	converter converter
	clientURL string
	logg      *logger.Logger
	now       func() time.Time
}

type ServiceParams struct {
	// Gateway may be nil when Stripe is not configured; only manual
	// top-ups are available then.
	Gateway   PaymentGateway
	Deposits  depositor
	Converter converter
	ClientURL string
	Logger    *logger.Logger
	Now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Deposits == nil {
		return nil, fmt.Errorf("deposit service required")
	}
	if params.Converter == nil {
		return nil, fmt.Errorf("currency converter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		gateway:   params.Gateway,
		deposits:  params.Deposits,
		converter: params.Converter,
		clientURL: strings.TrimRight(strings.TrimSpace(params.ClientURL), "/"),
		logg:      params.Logger,
		now:       now,
	}, nil
}

type AddMoneyInput struct {
	Email           string
	Amount          decimal.Decimal
	Currency        enums.Currency
	PaymentMethodID string
}

type AddMoneyResult struct {
	TransactionID   string          `json:"transactionId"`
	Amount          decimal.Decimal `json:"amount"`
	Balance         decimal.Decimal `json:"newBalance"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
}

// AddMoney credits the patient's wallet. With a payment method the charge is
// confirmed through Stripe first and the wallet is credited only when the
// intent succeeded; the intent id becomes the record's external reference so
// the later webhook for the same intent is a no-op.
func (s *Service) AddMoney(ctx context.Context, input AddMoneyInput) (*AddMoneyResult, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	conversion, err := s.converter.ToNative(ctx, input.Amount, input.Currency)
	if err != nil {
		return nil, err
	}

	deposit := settlement.DepositInput{
		Email:         email,
		Amount:        conversion.Amount,
		PaymentMethod: enums.PaymentMethodManual,
		Description:   manualTopup,
		Metadata:      conversion.Metadata(),
	}

	methodID := strings.TrimSpace(input.PaymentMethodID)
	if methodID != "" {
		gateway, err := s.requireGateway()
		if err != nil {
			return nil, err
		}
		params := &stripe.PaymentIntentParams{
			Amount:        stripe.Int64(money.ToMinorUnits(conversion.Amount)),
			Currency:      stripe.String(enums.CurrencyINR.Gateway()),
			PaymentMethod: stripe.String(methodID),
			Confirm:       stripe.Bool(true),
			Description:   stripe.String("Wallet top-up for " + email),
			AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
				Enabled:        stripe.Bool(true),
				AllowRedirects: stripe.String("never"),
			},
		}
		params.AddMetadata("email", email)
		params.AddMetadata("type", topupPurpose)

		intent, err := gateway.CreatePaymentIntent(ctx, params)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment processing failed")
		}
		if intent.Status != stripe.PaymentIntentStatusSucceeded {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment processing failed").
				WithDetails(map[string]any{"paymentIntentId": intent.ID, "status": intent.Status})
		}
		deposit.PaymentMethod = enums.PaymentMethodStripe
		deposit.ExternalRef = intent.ID
		deposit.Description = stripeTopup
		deposit.Metadata["paymentIntentId"] = intent.ID
	}

	result, err := s.deposits.Deposit(ctx, deposit)
	if err != nil {
		return nil, err
	}
	return &AddMoneyResult{
		TransactionID:   result.TransactionID,
		Amount:          conversion.Amount,
		Balance:         result.Balance,
		PaymentMethod:   string(deposit.PaymentMethod),
		PaymentIntentID: deposit.ExternalRef,
	}, nil
}

type PaymentIntentResult struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Amount          decimal.Decimal `json:"amount"`
	OriginalAmount  decimal.Decimal `json:"originalAmount"`
	Rate            decimal.Decimal `json:"conversionRate"`
	PublishableKey  string          `json:"publishableKey"`
}

// CreatePaymentIntent opens an INR intent for a USD amount that the browser
// confirms itself. The wallet is credited by the webhook.
func (s *Service) CreatePaymentIntent(ctx context.Context, email string, amountUSD decimal.Decimal) (*PaymentIntentResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	gateway, err := s.requireGateway()
	if err != nil {
		return nil, err
	}
	conversion, err := s.converter.ToNative(ctx, amountUSD, enums.CurrencyUSD)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(money.ToMinorUnits(conversion.Amount)),
		Currency: stripe.String(enums.CurrencyINR.Gateway()),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("email", email)
	params.AddMetadata("type", topupPurpose)
	params.AddMetadata("originalAmount", conversion.OriginalAmount.StringFixed(2))
	params.AddMetadata("conversionRate", conversion.Rate.String())

	intent, err := gateway.CreatePaymentIntent(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create payment intent")
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"payment_intent_id": intent.ID, "rate_source": string(conversion.Source)})
		s.logg.Info(ctx, "payment intent created")
	}
	return &PaymentIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          conversion.Amount,
		OriginalAmount:  conversion.OriginalAmount,
		Rate:            conversion.Rate,
		PublishableKey:  gateway.PublishableKey(),
	}, nil
}

type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// CreateCheckoutSession opens a hosted USD checkout page. The amount is
// carried in both the session and payment intent metadata so either webhook
// can resolve it.
func (s *Service) CreateCheckoutSession(ctx context.Context, email string, amountUSD decimal.Decimal) (*CheckoutResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	amount, err := money.Normalize(amountUSD)
	if err != nil {
		return nil, err
	}
	gateway, err := s.requireGateway()
	if err != nil {
		return nil, err
	}

	meta := map[string]string{
		"email":     email,
		"amount":    amount.StringFixed(2),
		"timestamp": s.now().UTC().Format(time.RFC3339),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(enums.CurrencyUSD.Gateway()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(checkoutName),
						Description: stripe.String("Top-up wallet for " + email),
					},
					UnitAmount: stripe.Int64(money.ToMinorUnits(amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:    stripe.String(s.clientURL + checkoutQuery + url.QueryEscape(email)),
		CancelURL:     stripe.String(s.clientURL + "/cancel"),
		CustomerEmail: stripe.String(email),
		Metadata:      meta,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: copyMeta(meta),
		},
	}

	sess, err := gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to create checkout session")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "checkout_session_id", sess.ID), "checkout session created")
	}
	return &CheckoutResult{URL: sess.URL, SessionID: sess.ID}, nil
}

func (s *Service) requireGateway() (PaymentGateway, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not configured")
	}
	return s.gateway, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !strings.Contains(email, "@") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid email %q", raw))
	}
	return email, nil
}

func copyMeta(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
