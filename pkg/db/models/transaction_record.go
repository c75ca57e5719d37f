package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// TransactionRecord is the global, write-once history row for a single leg of
// a money movement.
type TransactionRecord struct {
	ID            string                  `gorm:"column:id;type:text;primaryKey"`
	Type          enums.TransactionType   `gorm:"column:type;type:text;not null"`
	Amount        decimal.Decimal         `gorm:"column:amount;type:decimal(18,2);not null"`
	Description   string                  `gorm:"column:description;type:text;not null"`
	SenderType    enums.PartyType         `gorm:"column:sender_type;type:text;not null;index:idx_transaction_records_sender,priority:1"`
	SenderID      string                  `gorm:"column:sender_id;type:text;not null;index:idx_transaction_records_sender,priority:2"`
	ReceiverType  enums.PartyType         `gorm:"column:receiver_type;type:text;not null;index:idx_transaction_records_receiver,priority:1"`
	ReceiverID    string                  `gorm:"column:receiver_id;type:text;not null;index:idx_transaction_records_receiver,priority:2"`
	PaymentMethod enums.PaymentMethod     `gorm:"column:payment_method;type:text;not null"`
	Status        enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'completed'"`
	ExternalRef   *string                 `gorm:"column:external_ref;type:text;uniqueIndex:ux_transaction_records_external_ref"`
	Metadata      datatypes.JSONMap       `gorm:"column:metadata"`
	CreatedAt     time.Time               `gorm:"column:created_at;index:idx_transaction_records_created_at"`
}

func (TransactionRecord) TableName() string { return "transaction_records" }

func (r *TransactionRecord) BeforeCreate(*gorm.DB) error {
	if r.Status == "" {
		r.Status = enums.TransactionStatusCompleted
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (TransactionRecord) BeforeUpdate(*gorm.DB) error {
	return ErrImmutableRecord
}
