package enums

// TransactionStatus is the lifecycle state of a transaction record. Records
// are only written once settled.
type TransactionStatus string

const TransactionStatusCompleted TransactionStatus = "completed"

var transactionStatuses = set[TransactionStatus]{TransactionStatusCompleted}

func (v TransactionStatus) String() string { return string(v) }

func (v TransactionStatus) IsValid() bool { return transactionStatuses.has(v) }

func ParseTransactionStatus(value string) (TransactionStatus, error) {
	return transactionStatuses.parse("transaction status", value)
}
