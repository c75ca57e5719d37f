package enums

// PaymentEventStatus tracks how an ingested gateway event was handled.
type PaymentEventStatus string

const (
	PaymentEventStatusApplied    PaymentEventStatus = "applied"
	PaymentEventStatusIgnored    PaymentEventStatus = "ignored"
	PaymentEventStatusUnresolved PaymentEventStatus = "unresolved"
	PaymentEventStatusFailed     PaymentEventStatus = "failed"
)

var paymentEventStatuses = set[PaymentEventStatus]{
	PaymentEventStatusApplied,
	PaymentEventStatusIgnored,
	PaymentEventStatusUnresolved,
	PaymentEventStatusFailed,
}

func (v PaymentEventStatus) String() string { return string(v) }

func (v PaymentEventStatus) IsValid() bool { return paymentEventStatuses.has(v) }

func ParsePaymentEventStatus(value string) (PaymentEventStatus, error) {
	return paymentEventStatuses.parse("payment event status", value)
}
