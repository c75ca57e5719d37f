package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/pkg/config"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
	"github.com/healthoasis/wallet-backend/pkg/metrics"
	"github.com/healthoasis/wallet-backend/pkg/money"
	"github.com/healthoasis/wallet-backend/pkg/redis"
)

// Source records where a rate came from.
type Source string

const (
	SourceIdentity   Source = "identity"
	SourceLive       Source = "live"
	SourceCache      Source = "cache"
	SourceStaleCache Source = "stale_cache"
	SourceFallback   Source = "fallback"
)

// Quote is a USD->INR rate with provenance.
type Quote struct {
	Rate      decimal.Decimal
	Source    Source
	FetchedAt time.Time
}

// Conversion is an inbound amount expressed in the native currency.
type Conversion struct {
	Amount           decimal.Decimal
	OriginalAmount   decimal.Decimal
	OriginalCurrency enums.Currency
	Rate             decimal.Decimal
	Source           Source
}

// Metadata renders the conversion audit fields stored with a credit.
func (c Conversion) Metadata() map[string]any {
	return map[string]any{
		"originalAmount":   c.OriginalAmount.String(),
		"originalCurrency": string(c.OriginalCurrency),
		"conversionRate":   c.Rate.String(),
		"rateSource":       string(c.Source),
	}
}

type rateCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FXRateKey(base, quote string) string
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ConverterParams struct {
	Config     config.FXConfig
	Cache      rateCache
	HTTPClient httpDoer
	Logger     *logger.Logger
	Metrics    *metrics.LedgerMetrics
	Now        func() time.Time
}

// Converter turns gateway amounts into INR. It never fails for lack of a
// rate: live lookups fall back to a cached rate and finally to the configured
// constant.
type Converter struct {
	cfg     config.FXConfig
	cache   rateCache
	http    httpDoer
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

type cachedRate struct {
	Rate      string    `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
}

type ratesResponse struct {
	Rates map[string]decimal.Decimal `json:"rates"`
}

func NewConverter(params ConverterParams) (*Converter, error) {
	if !params.Config.FallbackRate.IsPositive() {
		return nil, fmt.Errorf("fx fallback rate must be positive")
	}
	if strings.TrimSpace(params.Config.RateURL) == "" {
		return nil, fmt.Errorf("fx rate url is required")
	}
	doer := params.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: params.Config.Timeout}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Converter{
		cfg:     params.Config,
		cache:   params.Cache,
		http:    doer,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// ToNative converts amount from currency to INR. USD amounts are rounded to
// whole rupees; INR amounts are only normalised.
func (c *Converter) ToNative(ctx context.Context, amount decimal.Decimal, currency enums.Currency) (Conversion, error) {
	if currency == "" {
		currency = enums.CurrencyINR
	}
	switch currency {
	case enums.CurrencyINR:
		normalized, err := money.Normalize(amount)
		if err != nil {
			return Conversion{}, err
		}
		return Conversion{
			Amount:           normalized,
			OriginalAmount:   normalized,
			OriginalCurrency: currency,
			Rate:             decimal.NewFromInt(1),
			Source:           SourceIdentity,
		}, nil
	case enums.CurrencyUSD:
		if !amount.IsPositive() {
			return Conversion{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
		}
		quote := c.Rate(ctx)
		converted, err := money.Normalize(amount.Mul(quote.Rate).Round(0))
		if err != nil {
			return Conversion{}, err
		}
		return Conversion{
			Amount:           converted,
			OriginalAmount:   amount,
			OriginalCurrency: currency,
			Rate:             quote.Rate,
			Source:           quote.Source,
		}, nil
	default:
		return Conversion{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", currency))
	}
}

// Rate resolves the current USD->INR rate.
func (c *Converter) Rate(ctx context.Context) Quote {
	cached, haveCached := c.readCache(ctx)
	if haveCached && c.now().Sub(cached.FetchedAt) < c.cfg.CacheTTL {
		return c.observe(Quote{Rate: cached.Rate, Source: SourceCache, FetchedAt: cached.FetchedAt})
	}

	live, err := c.Refresh(ctx)
	if err == nil {
		return live
	}

	if haveCached && c.now().Sub(cached.FetchedAt) < c.cfg.MaxStaleness {
		c.warn(ctx, "fx live lookup failed, using cached rate", err, SourceStaleCache)
		return c.observe(Quote{Rate: cached.Rate, Source: SourceStaleCache, FetchedAt: cached.FetchedAt})
	}

	c.warn(ctx, "fx live lookup failed, using fallback rate", err, SourceFallback)
	return c.observe(Quote{Rate: c.cfg.FallbackRate, Source: SourceFallback, FetchedAt: c.now()})
}

// Refresh performs a live lookup and stores the result in the cache.
func (c *Converter) Refresh(ctx context.Context) (Quote, error) {
	rate, err := c.fetch(ctx)
	if err != nil {
		return Quote{}, err
	}
	quote := Quote{Rate: rate, Source: SourceLive, FetchedAt: c.now()}
	c.writeCache(ctx, quote)
	return c.observe(quote), nil
}

func (c *Converter) fetch(ctx context.Context) (decimal.Decimal, error) {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.RateURL, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build fx request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fx request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("fx request: unexpected status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode fx response: %w", err)
	}
	rate, ok := body.Rates[string(enums.CurrencyINR)]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, errors.New("fx response missing INR rate")
	}
	return rate, nil
}

func (c *Converter) cacheKey() string {
	return c.cache.FXRateKey(string(enums.CurrencyUSD), string(enums.CurrencyINR))
}

func (c *Converter) readCache(ctx context.Context) (Quote, bool) {
	if c.cache == nil {
		return Quote{}, false
	}
	raw, err := c.cache.Get(ctx, c.cacheKey())
	if err != nil {
		if !redis.IsNil(err) && c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "fx cache read failed")
		}
		return Quote{}, false
	}
	var cached cachedRate
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return Quote{}, false
	}
	rate, err := decimal.NewFromString(cached.Rate)
	if err != nil || !rate.IsPositive() {
		return Quote{}, false
	}
	return Quote{Rate: rate, Source: SourceCache, FetchedAt: cached.FetchedAt}, true
}

func (c *Converter) writeCache(ctx context.Context, quote Quote) {
	if c.cache == nil {
		return
	}
	payload, err := json.Marshal(cachedRate{Rate: quote.Rate.String(), FetchedAt: quote.FetchedAt.UTC()})
	if err != nil {
		return
	}
	ttl := c.cfg.MaxStaleness
	if ttl < c.cfg.CacheTTL {
		ttl = c.cfg.CacheTTL
	}
	if err := c.cache.Set(ctx, c.cacheKey(), string(payload), ttl); err != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "fx cache write failed")
	}
}

func (c *Converter) observe(quote Quote) Quote {
	c.metrics.ObserveFXLookup(string(quote.Source))
	return quote
}

func (c *Converter) warn(ctx context.Context, msg string, err error, source Source) {
	if c.logg == nil {
		return
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"rate_source": string(source),
		"error":       err.Error(),
	})
	c.logg.Warn(ctx, msg)
}
