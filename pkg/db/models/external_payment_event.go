package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// ExternalPaymentEvent is the durable copy of a verified gateway notification.
type ExternalPaymentEvent struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	GatewayEventID   string                   `gorm:"column:gateway_event_id;type:text;not null;uniqueIndex:ux_external_payment_events_gateway_id"`
	ObjectID         string                   `gorm:"column:object_id;type:text"`
	EventType        string                   `gorm:"column:event_type;type:text;not null"`
	Amount           decimal.Decimal          `gorm:"column:amount;type:decimal(18,2);not null;default:0"`
	Currency         string                   `gorm:"column:currency;type:text"`
	Status           string                   `gorm:"column:status;type:text"`
	CustomerEmail    string                   `gorm:"column:customer_email;type:text"`
	PatientEmail     string                   `gorm:"column:patient_email;type:text;index:idx_external_payment_events_patient"`
	PaymentRef       string                   `gorm:"column:payment_ref;type:text"`
	Metadata         datatypes.JSONMap        `gorm:"column:metadata"`
	RawPayload       string                   `gorm:"column:raw_payload;type:text"`
	ProcessingStatus enums.PaymentEventStatus `gorm:"column:processing_status;type:text;not null;index:idx_external_payment_events_status"`
	ProcessingError  *string                  `gorm:"column:processing_error;type:text"`
	TransactionID    *string                  `gorm:"column:transaction_id;type:text"`
	Attempts         int                      `gorm:"column:attempts;not null;default:1"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt      *time.Time               `gorm:"column:processed_at"`
}

func (ExternalPaymentEvent) TableName() string { return "external_payment_events" }

func (e *ExternalPaymentEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
