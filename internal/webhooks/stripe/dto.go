package stripewebhook

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// EventDTO is the operator view of a stored gateway event. The raw payload
// stays server side.
type EventDTO struct {
	GatewayEventID   string                   `json:"eventId"`
	ObjectID         string                   `json:"objectId,omitempty"`
	EventType        string                   `json:"eventType"`
	Amount           decimal.Decimal          `json:"amount"`
	Currency         string                   `json:"currency,omitempty"`
	Status           string                   `json:"status,omitempty"`
	CustomerEmail    string                   `json:"customerEmail,omitempty"`
	PatientEmail     string                   `json:"patientEmail,omitempty"`
	PaymentRef       string                   `json:"paymentRef,omitempty"`
	Metadata         map[string]any           `json:"metadata,omitempty"`
	ProcessingStatus enums.PaymentEventStatus `json:"processingStatus"`
	ProcessingError  *string                  `json:"processingError,omitempty"`
	TransactionID    *string                  `json:"transactionId,omitempty"`
	Attempts         int                      `json:"attempts"`
	CreatedAt        time.Time                `json:"createdAt"`
	ProcessedAt      *time.Time               `json:"processedAt,omitempty"`
}

func EventFromModel(m *models.ExternalPaymentEvent) EventDTO {
	return EventDTO{
		GatewayEventID:   m.GatewayEventID,
		ObjectID:         m.ObjectID,
		EventType:        m.EventType,
		Amount:           m.Amount,
		Currency:         m.Currency,
		Status:           m.Status,
		CustomerEmail:    m.CustomerEmail,
		PatientEmail:     m.PatientEmail,
		PaymentRef:       m.PaymentRef,
		Metadata:         map[string]any(m.Metadata),
		ProcessingStatus: m.ProcessingStatus,
		ProcessingError:  m.ProcessingError,
		TransactionID:    m.TransactionID,
		Attempts:         m.Attempts,
		CreatedAt:        m.CreatedAt,
		ProcessedAt:      m.ProcessedAt,
	}
}

func EventsFromModels(rows []models.ExternalPaymentEvent) []EventDTO {
	out := make([]EventDTO, 0, len(rows))
	for i := range rows {
		out = append(out, EventFromModel(&rows[i]))
	}
	return out
}
