package settlement

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/money"
)

// DepositInput credits a patient with money arriving from outside the
// wallet system. Amount is already in the native currency.
type DepositInput struct {
	Email         string
	Amount        decimal.Decimal
	PaymentMethod enums.PaymentMethod
	// ExternalRef is the gateway payment reference; it is unique across records.
	ExternalRef string
	Description string
	Metadata    map[string]any
	ID          string
}

type DepositResult struct {
	TransactionID string
	Balance       decimal.Decimal
	Record        *models.TransactionRecord
}

// Deposit credits a patient wallet in its own atomic unit.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (*DepositResult, error) {
	var result *DepositResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.deposit(ctx, tx, input)
		return err
	})
	s.observe(opDeposit, err)
	if err != nil {
		s.logFailure(ctx, "wallet deposit failed", err)
		return nil, err
	}
	s.logDeposit(ctx, input, result)
	return result, nil
}

// DepositWithTx credits a patient wallet inside the caller's transaction.
func (s *Service) DepositWithTx(ctx context.Context, tx *gorm.DB, input DepositInput) (*DepositResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	result, err := s.deposit(ctx, tx, input)
	s.observe(opDeposit, err)
	if err != nil {
		return nil, err
	}
	s.logDeposit(ctx, input, result)
	return result, nil
}

func (s *Service) deposit(ctx context.Context, tx *gorm.DB, input DepositInput) (*DepositResult, error) {
	store := s.store.WithTx(tx)
	patient, err := store.Normalize(wallet.Patient(input.Email))
	if err != nil {
		return nil, err
	}
	amount, err := money.Normalize(input.Amount)
	if err != nil {
		return nil, err
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodManual
	}
	if method == enums.PaymentMethodWallet {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposits must come from outside the wallet")
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}

	ledgerSvc := s.ledger.WithTx(tx)
	externalRef := strings.TrimSpace(input.ExternalRef)
	if externalRef != "" {
		exists, err := ledgerSvc.Repository().ExistsByExternalRef(ctx, externalRef)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check external reference")
		}
		if exists {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already credited").
				WithDetails(map[string]any{"externalRef": externalRef})
		}
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = fmt.Sprintf("%s-%s", prefixDeposit, s.newID())
	}
	description := trimmedOr(input.Description, fmt.Sprintf("Wallet top-up for %s", patient.Key))
	createdAt := s.stamp()
	meta := mergeMetadata(map[string]any{}, input.Metadata)
	if externalRef != "" {
		meta["paymentRef"] = externalRef
	}

	if _, err := store.Ensure(ctx, patient); err != nil {
		return nil, err
	}
	credited, err := store.Credit(ctx, patient, amount, wallet.EntryInput{
		ID:          id,
		Description: description,
		Metadata:    meta,
		CreatedAt:   createdAt,
	})
	if err != nil {
		return nil, err
	}
	record, err := ledgerSvc.Record(ctx, ledger.RecordInput{
		ID:            id,
		Type:          enums.TransactionTypeCredit,
		Amount:        amount,
		Description:   description,
		Sender:        ledger.Party{Type: enums.PartyTypeSystem, ID: string(method)},
		Receiver:      party(patient),
		PaymentMethod: method,
		ExternalRef:   externalRef,
		Metadata:      meta,
		CreatedAt:     createdAt,
	})
	if err != nil {
		return nil, err
	}
	return &DepositResult{TransactionID: id, Balance: credited.Account.Balance, Record: record}, nil
}

func (s *Service) logDeposit(ctx context.Context, input DepositInput, result *DepositResult) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithParty(ctx, string(enums.PartyTypePatient), normalizeEmail(input.Email))
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"transaction_id": result.TransactionID,
		"amount":         result.Record.Amount.String(),
		"payment_method": string(result.Record.PaymentMethod),
	})
	s.logg.Info(logCtx, "wallet credited")
}
