package enums

// PaymentMethod records how money entered or moved through the wallet.
type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodStripe PaymentMethod = "stripe"
	PaymentMethodManual PaymentMethod = "manual"
)

var paymentMethods = set[PaymentMethod]{PaymentMethodWallet, PaymentMethodStripe, PaymentMethodManual}

func (v PaymentMethod) String() string { return string(v) }

func (v PaymentMethod) IsValid() bool { return paymentMethods.has(v) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return paymentMethods.parse("payment method", value)
}
