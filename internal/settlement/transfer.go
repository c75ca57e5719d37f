package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/money"
)

type TransferInput struct {
	From        wallet.AccountRef
	To          wallet.AccountRef
	Amount      decimal.Decimal
	Description string
}

type TransferResult struct {
	TransferID  string
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
	Records     []*models.TransactionRecord
}

// TransferSingle moves amount from one wallet to another. The sender must
// exist; the receiver is created on first use.
func (s *Service) TransferSingle(ctx context.Context, input TransferInput) (*TransferResult, error) {
	result, err := s.transfer(ctx, input)
	s.observe(opTransfer, err)
	if err != nil {
		s.logFailure(ctx, "wallet transfer failed", err)
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"transfer_id": result.TransferID,
			"from":        input.From.String(),
			"to":          input.To.String(),
			"amount":      input.Amount.String(),
		})
		s.logg.Info(logCtx, "wallet transfer committed")
	}
	return result, nil
}

func (s *Service) transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	from, err := s.store.Normalize(input.From)
	if err != nil {
		return nil, err
	}
	to, err := s.store.Normalize(input.To)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer to the same wallet")
	}
	amount, err := money.Normalize(input.Amount)
	if err != nil {
		return nil, err
	}

	transferID := fmt.Sprintf("%s-%s", prefixTransfer, s.newID())
	createdAt := s.stamp()
	debitDesc := trimmedOr(input.Description, fmt.Sprintf("Transfer to %s %s", to.Kind, to.Key))
	creditDesc := trimmedOr(input.Description, fmt.Sprintf("Transfer from %s %s", from.Kind, from.Key))
	meta := map[string]any{"transferId": transferID}

	var result *TransferResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)

		if _, err := store.Get(ctx, from); err != nil {
			return err
		}
		if _, err := store.Ensure(ctx, to); err != nil {
			return err
		}
		if _, err := store.Lock(ctx, from, to); err != nil {
			return err
		}

		debited, err := store.Debit(ctx, from, amount, wallet.EntryInput{
			ID:          transferID + suffixFrom,
			Description: debitDesc,
			Metadata:    meta,
			CreatedAt:   createdAt,
		})
		if err != nil {
			return err
		}
		credited, err := store.Credit(ctx, to, amount, wallet.EntryInput{
			ID:          transferID + suffixTo,
			Description: creditDesc,
			Metadata:    meta,
			CreatedAt:   createdAt,
		})
		if err != nil {
			return err
		}

		records, err := s.ledger.WithTx(tx).RecordBatch(ctx, []ledger.RecordInput{
			{
				ID:          transferID + suffixFrom,
				Type:        enums.TransactionTypeDebit,
				Amount:      amount,
				Description: debitDesc,
				Sender:      party(from),
				Receiver:    party(to),
				Metadata:    meta,
				CreatedAt:   createdAt,
			},
			{
				ID:          transferID + suffixTo,
				Type:        enums.TransactionTypeCredit,
				Amount:      amount,
				Description: creditDesc,
				Sender:      party(from),
				Receiver:    party(to),
				Metadata:    meta,
				CreatedAt:   createdAt,
			},
		})
		if err != nil {
			return err
		}

		result = &TransferResult{
			TransferID:  transferID,
			FromBalance: debited.Account.Balance,
			ToBalance:   credited.Account.Balance,
			Records:     records,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
