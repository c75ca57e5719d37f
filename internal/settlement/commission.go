package settlement

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/internal/doctors"
	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/money"
)

// Descriptions overrides the entry text of each settlement leg.
type Descriptions struct {
	Payer  string
	Admin  string
	Doctor string
}

type SettlementInput struct {
	Payer  wallet.AccountRef
	Doctor doctors.Ref
	Gross  decimal.Decimal
	// Rate overrides the configured commission when set.
	Rate *decimal.Decimal
	// Reference replaces the TRX id prefix, e.g. "APPT-<appointmentId>".
	Reference    string
	Descriptions Descriptions
	Metadata     map[string]any
}

type SettlementResult struct {
	SettlementID     string
	PayerBalance     decimal.Decimal
	Gross            decimal.Decimal
	AdminShare       decimal.Decimal
	DoctorShare      decimal.Decimal
	CommissionRate   decimal.Decimal
	DoctorAccount    string
	DoctorName       string
	DoctorResolution doctors.Resolution
	Records          []*models.TransactionRecord
}

// SettleWithCommission debits the payer the gross amount once and splits it
// between the admin singleton and the doctor. Validation, doctor resolution
// and the balance check all happen before the first mutation.
func (s *Service) SettleWithCommission(ctx context.Context, input SettlementInput) (*SettlementResult, error) {
	result, err := s.settle(ctx, input)
	s.observe(opSettlement, err)
	if err != nil {
		s.logFailure(ctx, "settlement failed", err)
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"settlement_id":     result.SettlementID,
			"payer":             input.Payer.String(),
			"doctor_account":    result.DoctorAccount,
			"doctor_resolution": string(result.DoctorResolution),
			"gross":             result.Gross.String(),
			"admin_share":       result.AdminShare.String(),
			"doctor_share":      result.DoctorShare.String(),
		})
		s.logg.Info(logCtx, "settlement committed")
	}
	return result, nil
}

func (s *Service) settle(ctx context.Context, input SettlementInput) (*SettlementResult, error) {
	payer, err := s.store.Normalize(input.Payer)
	if err != nil {
		return nil, err
	}
	rate := s.commissionRate
	if input.Rate != nil {
		rate = *input.Rate
	}
	adminShare, doctorShare, err := money.Split(input.Gross, rate)
	if err != nil {
		return nil, err
	}
	gross := adminShare.Add(doctorShare)
	// Every settlement writes a payer, admin and doctor leg.
	if !adminShare.IsPositive() || !doctorShare.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount is too small to split between doctor and admin").WithDetails(map[string]any{
			"gross":       gross.String(),
			"adminShare":  adminShare.String(),
			"doctorShare": doctorShare.String(),
		})
	}

	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		reference = prefixSettlement
	}
	settlementID := fmt.Sprintf("%s-%s", reference, s.newID())
	createdAt := s.stamp()

	var result *SettlementResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)

		resolved, err := s.doctors.WithTx(tx).Resolve(ctx, input.Doctor)
		if err != nil {
			return err
		}
		doctor, err := store.Normalize(wallet.Doctor(resolved.AccountKey))
		if err != nil {
			return err
		}
		if doctor == payer {
			return pkgerrors.New(pkgerrors.CodeValidation, "payer and payee must differ")
		}
		admin, err := store.Normalize(wallet.Admin())
		if err != nil {
			return err
		}

		payerAccount, err := store.Get(ctx, payer)
		if err != nil {
			return err
		}
		if gross.GreaterThan(payerAccount.Balance) {
			return pkgerrors.InsufficientFunds(payer.Key, payerAccount.Balance, gross)
		}
		if _, err := store.Ensure(ctx, admin); err != nil {
			return err
		}
		if _, err := store.Ensure(ctx, doctor); err != nil {
			return err
		}
		if _, err := store.Lock(ctx, payer, admin, doctor); err != nil {
			return err
		}

		meta := mergeMetadata(map[string]any{
			"settlementId":     settlementID,
			"commissionRate":   rate.String(),
			"doctorShare":      doctorShare.String(),
			"adminShare":       adminShare.String(),
			"doctorId":         doctor.Key,
			"doctorResolution": string(resolved.Resolution),
		}, input.Metadata)
		if resolved.Name != "" {
			if _, ok := meta["doctorName"]; !ok {
				meta["doctorName"] = resolved.Name
			}
		}

		payerDesc := trimmedOr(input.Descriptions.Payer, fmt.Sprintf("Payment to doctor %s", doctor.Key))
		adminDesc := trimmedOr(input.Descriptions.Admin, fmt.Sprintf("Commission from payment by %s", payer.Key))
		doctorDesc := trimmedOr(input.Descriptions.Doctor, fmt.Sprintf("Payment received from %s %s", payer.Kind, payer.Key))

		debited, err := store.Debit(ctx, payer, gross, wallet.EntryInput{
			ID:          settlementID,
			Description: payerDesc,
			Metadata:    meta,
			CreatedAt:   createdAt,
		})
		if err != nil {
			return err
		}

		records := []ledger.RecordInput{{
			ID:          settlementID,
			Type:        enums.TransactionTypeDebit,
			Amount:      gross,
			Description: payerDesc,
			Sender:      party(payer),
			Receiver:    party(doctor),
			Metadata:    meta,
			CreatedAt:   createdAt,
		}}

		adminMeta := mergeMetadata(map[string]any{"share": money.Percent(rate)}, meta)
		if _, err := store.Credit(ctx, admin, adminShare, wallet.EntryInput{
			ID:          settlementID + suffixAdmin,
			Description: adminDesc,
			Metadata:    adminMeta,
			CreatedAt:   createdAt,
		}); err != nil {
			return err
		}
		records = append(records, ledger.RecordInput{
			ID:          settlementID + suffixAdmin,
			Type:        enums.TransactionTypeCredit,
			Amount:      adminShare,
			Description: adminDesc,
			Sender:      party(payer),
			Receiver:    party(admin),
			Metadata:    adminMeta,
			CreatedAt:   createdAt,
		})

		doctorMeta := mergeMetadata(map[string]any{"share": money.Percent(decimal.NewFromInt(1).Sub(rate))}, meta)
		if _, err := store.Credit(ctx, doctor, doctorShare, wallet.EntryInput{
			ID:          settlementID + suffixDoctor,
			Description: doctorDesc,
			Metadata:    doctorMeta,
			CreatedAt:   createdAt,
		}); err != nil {
			return err
		}
		records = append(records, ledger.RecordInput{
			ID:          settlementID + suffixDoctor,
			Type:        enums.TransactionTypeCredit,
			Amount:      doctorShare,
			Description: doctorDesc,
			Sender:      party(payer),
			Receiver:    party(doctor),
			Metadata:    doctorMeta,
			CreatedAt:   createdAt,
		})

		written, err := s.ledger.WithTx(tx).RecordBatch(ctx, records)
		if err != nil {
			return err
		}

		result = &SettlementResult{
			SettlementID:     settlementID,
			PayerBalance:     debited.Account.Balance,
			Gross:            gross,
			AdminShare:       adminShare,
			DoctorShare:      doctorShare,
			CommissionRate:   rate,
			DoctorAccount:    doctor.Key,
			DoctorName:       resolved.Name,
			DoctorResolution: resolved.Resolution,
			Records:          written,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
