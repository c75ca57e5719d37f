package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/pkg/db"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/money"
)

// Service records the immutable global history of money movements.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, input RecordInput) (*models.TransactionRecord, error)
	RecordBatch(ctx context.Context, inputs []RecordInput) ([]*models.TransactionRecord, error)
	Repository() Repository
}

type service struct {
	repo Repository
}

// RecordInput captures the data a transaction record requires.
type RecordInput struct {
	ID            string
	Type          enums.TransactionType
	Amount        decimal.Decimal
	Description   string
	Sender        Party
	Receiver      Party
	PaymentMethod enums.PaymentMethod
	ExternalRef   string
	Metadata      map[string]any
	CreatedAt     time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Repository() Repository {
	return s.repo
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.TransactionRecord, error) {
	record, err := buildRecord(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, persistError(err, "persist transaction record")
	}
	return record, nil
}

func (s *service) RecordBatch(ctx context.Context, inputs []RecordInput) ([]*models.TransactionRecord, error) {
	records := make([]*models.TransactionRecord, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, input := range inputs {
		record, err := buildRecord(input)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[record.ID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate transaction id in batch").
				WithDetails(map[string]any{"id": record.ID})
		}
		seen[record.ID] = struct{}{}
		records = append(records, record)
	}
	if err := s.repo.CreateBatch(ctx, records); err != nil {
		return nil, persistError(err, "persist transaction records")
	}
	return records, nil
}

func buildRecord(input RecordInput) (*models.TransactionRecord, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	amount, err := money.Normalize(input.Amount)
	if err != nil {
		return nil, err
	}
	if err := validateParty("sender", input.Sender); err != nil {
		return nil, err
	}
	if err := validateParty("receiver", input.Receiver); err != nil {
		return nil, err
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodWallet
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}

	record := &models.TransactionRecord{
		ID:            id,
		Type:          input.Type,
		Amount:        amount,
		Description:   strings.TrimSpace(input.Description),
		SenderType:    input.Sender.Type,
		SenderID:      input.Sender.ID,
		ReceiverType:  input.Receiver.Type,
		ReceiverID:    input.Receiver.ID,
		PaymentMethod: method,
		Status:        enums.TransactionStatusCompleted,
		CreatedAt:     input.CreatedAt.UTC(),
	}
	if ref := strings.TrimSpace(input.ExternalRef); ref != "" {
		record.ExternalRef = &ref
	}
	if len(input.Metadata) > 0 {
		record.Metadata = datatypes.JSONMap(input.Metadata)
	}
	return record, nil
}

func validateParty(side string, party Party) error {
	if !party.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid %s type %q", side, party.Type))
	}
	if strings.TrimSpace(party.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s id is required", side))
	}
	return nil
}

func persistError(err error, msg string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "transaction record already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
