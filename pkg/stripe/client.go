package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/healthoasis/wallet-backend/pkg/config"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

// Mode is the Stripe account mode the keys belong to.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

var (
	// ErrNotConfigured means no Stripe credentials were provided at all. The
	// API still starts; card top-ups are simply unavailable.
	ErrNotConfigured  = errors.New("stripe is not configured")
	errAPIKeyRequired = errors.New("stripe api key is required")
	errSecretRequired = errors.New("stripe webhook secret is required")
	errUnknownMode    = fmt.Errorf("stripe environment must be %q or %q", ModeTest, ModeLive)
)

// Secret and restricted keys accepted per mode, and the matching browser key.
var keyPrefixes = map[Mode]struct {
	secret      []string
	publishable string
}{
	ModeTest: {secret: []string{"sk_test_", "rk_test_"}, publishable: "pk_test_"},
	ModeLive: {secret: []string{"sk_live_", "rk_live_"}, publishable: "pk_live_"},
}

// Client holds the account credentials validated against a single mode so a
// live key can never be paired with test webhooks by accident.
type Client struct {
	api            *stripe.Client
	mode           Mode
	signingSecret  string
	publishableKey string
}

func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode, err := parseMode(cfg.Environment())
	if err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	secret := strings.TrimSpace(cfg.Secret)
	publishable := strings.TrimSpace(cfg.PublishableKey)

	switch {
	case apiKey == "" && secret == "":
		return nil, ErrNotConfigured
	case apiKey == "":
		return nil, errAPIKeyRequired
	case secret == "":
		return nil, errSecretRequired
	}
	if err := checkKeys(mode, apiKey, publishable); err != nil {
		return nil, err
	}

	// The resource packages (paymentintent, checkout/session) read the
	// package-level key.
	stripe.Key = apiKey
	c := &Client{
		api:            stripe.NewClient(apiKey),
		mode:           mode,
		signingSecret:  secret,
		publishableKey: publishable,
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_mode", string(mode)), "stripe client ready")
	}
	return c, nil
}

func parseMode(raw string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return ModeTest, nil
	case ModeTest, ModeLive:
		return mode, nil
	default:
		return "", errUnknownMode
	}
}

func checkKeys(mode Mode, apiKey, publishable string) error {
	prefixes := keyPrefixes[mode]
	matched := false
	for _, p := range prefixes.secret {
		if strings.HasPrefix(apiKey, p) {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("stripe %s mode needs a key starting with %s", mode, strings.Join(prefixes.secret, " or "))
	}
	if publishable != "" && !strings.HasPrefix(publishable, prefixes.publishable) {
		return fmt.Errorf("stripe %s mode needs a publishable key starting with %s", mode, prefixes.publishable)
	}
	return nil
}

// The accessors below are safe on a nil client, which stands for "Stripe
// not configured".

func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return string(c.mode)
}

func (c *Client) Live() bool {
	return c != nil && c.mode == ModeLive
}

// SigningSecret verifies Stripe-Signature headers on incoming webhooks.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// PublishableKey is returned to apps that confirm payment intents client side.
func (c *Client) PublishableKey() string {
	if c == nil {
		return ""
	}
	return c.publishableKey
}
