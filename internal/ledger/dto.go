package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// RecordDTO exposes a transaction record in API responses.
type RecordDTO struct {
	ID            string                  `json:"id"`
	Type          enums.TransactionType   `json:"type"`
	Amount        decimal.Decimal         `json:"amount"`
	Description   string                  `json:"description"`
	SenderType    enums.PartyType         `json:"senderType"`
	SenderID      string                  `json:"senderId"`
	ReceiverType  enums.PartyType         `json:"receiverType"`
	ReceiverID    string                  `json:"receiverId"`
	PaymentMethod enums.PaymentMethod     `json:"paymentMethod"`
	Status        enums.TransactionStatus `json:"status"`
	ExternalRef   *string                 `json:"externalRef,omitempty"`
	Metadata      map[string]any          `json:"metadata,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
}

// FromModel maps the persisted record into a DTO.
func FromModel(m *models.TransactionRecord) *RecordDTO {
	if m == nil {
		return nil
	}
	return &RecordDTO{
		ID:            m.ID,
		Type:          m.Type,
		Amount:        m.Amount,
		Description:   m.Description,
		SenderType:    m.SenderType,
		SenderID:      m.SenderID,
		ReceiverType:  m.ReceiverType,
		ReceiverID:    m.ReceiverID,
		PaymentMethod: m.PaymentMethod,
		Status:        m.Status,
		ExternalRef:   m.ExternalRef,
		Metadata:      map[string]any(m.Metadata),
		CreatedAt:     m.CreatedAt,
	}
}

// FromModels maps a slice, never returning nil.
func FromModels(records []models.TransactionRecord) []RecordDTO {
	out := make([]RecordDTO, 0, len(records))
	for i := range records {
		out = append(out, *FromModel(&records[i]))
	}
	return out
}
