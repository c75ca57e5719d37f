package enums

// Currency is an ISO code accepted at the gateway boundary. Balances are
// always held in INR.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

var currencies = set[Currency]{CurrencyINR, CurrencyUSD}

func (v Currency) String() string { return string(v) }

func (v Currency) IsValid() bool { return currencies.has(v) }

// Gateway is the lowercase form Stripe expects.
func (v Currency) Gateway() string {
	switch v {
	case CurrencyINR:
		return "inr"
	case CurrencyUSD:
		return "usd"
	}
	return ""
}

// ParseCurrency ignores case; gateways report "inr", clients send "INR".
func ParseCurrency(value string) (Currency, error) {
	return currencies.parseFold("currency", value)
}
