package enums

// TransactionType classifies a ledger record.
type TransactionType string

const (
	TransactionTypeCredit   TransactionType = "credit"
	TransactionTypeDebit    TransactionType = "debit"
	TransactionTypeTransfer TransactionType = "transfer"
)

var transactionTypes = set[TransactionType]{TransactionTypeCredit, TransactionTypeDebit, TransactionTypeTransfer}

func (v TransactionType) String() string { return string(v) }

func (v TransactionType) IsValid() bool { return transactionTypes.has(v) }

func ParseTransactionType(value string) (TransactionType, error) {
	return transactionTypes.parse("transaction type", value)
}
