package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// ErrImmutableRecord is returned when code attempts to update a write-once row.
var ErrImmutableRecord = errors.New("ledger rows are write-once")

// WalletAccountEntry is one line of an account's own transaction log. Its ID is
// the leg id shared with the matching TransactionRecord.
type WalletAccountEntry struct {
	ID           string                `gorm:"column:id;type:text;primaryKey"`
	AccountID    uuid.UUID             `gorm:"column:account_id;type:uuid;not null;uniqueIndex:ux_wallet_entries_account_seq,priority:1"`
	Sequence     int64                 `gorm:"column:sequence;not null;uniqueIndex:ux_wallet_entries_account_seq,priority:2"`
	Type         enums.TransactionType `gorm:"column:type;type:text;not null"`
	Amount       decimal.Decimal       `gorm:"column:amount;type:decimal(18,2);not null"`
	BalanceAfter decimal.Decimal       `gorm:"column:balance_after;type:decimal(18,2);not null"`
	Description  string                `gorm:"column:description;type:text;not null"`
	Metadata     datatypes.JSONMap     `gorm:"column:metadata"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (WalletAccountEntry) TableName() string { return "wallet_account_entries" }

func (WalletAccountEntry) BeforeUpdate(*gorm.DB) error {
	return ErrImmutableRecord
}
