package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// AccountDTO exposes a wallet balance in API responses.
type AccountDTO struct {
	Kind      enums.AccountKind `json:"kind"`
	Key       string            `json:"key"`
	Balance   decimal.Decimal   `json:"balance"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func FromModel(m *models.WalletAccount) *AccountDTO {
	if m == nil {
		return nil
	}
	return &AccountDTO{
		Kind:      m.Kind,
		Key:       m.AccountKey,
		Balance:   m.Balance,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
