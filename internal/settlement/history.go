package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// StandaloneRecord mirrors a money movement applied elsewhere into the
// global history. Balances are not touched.
type StandaloneRecord struct {
	ID            string
	Type          enums.TransactionType
	Amount        decimal.Decimal
	Description   string
	Sender        ledger.Party
	Receiver      ledger.Party
	PaymentMethod enums.PaymentMethod
	Metadata      map[string]any
	CreatedAt     time.Time
}

func (s *Service) RecordStandaloneHistory(ctx context.Context, input StandaloneRecord) (*models.TransactionRecord, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = fmt.Sprintf("%s-%s", prefixHistory, s.newID())
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.stamp()
	}

	var record *models.TransactionRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		record, err = s.ledger.WithTx(tx).Record(ctx, ledger.RecordInput{
			ID:            id,
			Type:          input.Type,
			Amount:        input.Amount,
			Description:   input.Description,
			Sender:        input.Sender,
			Receiver:      input.Receiver,
			PaymentMethod: input.PaymentMethod,
			Metadata:      input.Metadata,
			CreatedAt:     createdAt,
		})
		return err
	})
	s.observe(opHistory, err)
	if err != nil {
		s.logFailure(ctx, "standalone history record failed", err)
		return nil, err
	}
	return record, nil
}
