package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// WalletAccount is the balance holder for a patient, doctor or the admin singleton.
type WalletAccount struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Kind       enums.AccountKind `gorm:"column:kind;type:text;not null;uniqueIndex:ux_wallet_accounts_kind_key,priority:1"`
	AccountKey string            `gorm:"column:account_key;type:text;not null;uniqueIndex:ux_wallet_accounts_kind_key,priority:2"`
	Balance    decimal.Decimal   `gorm:"column:balance;type:decimal(18,2);not null;default:0"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (WalletAccount) TableName() string { return "wallet_accounts" }

func (a *WalletAccount) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
