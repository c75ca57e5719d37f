package settlement

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/internal/doctors"
	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	"github.com/healthoasis/wallet-backend/pkg/config"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
	"github.com/healthoasis/wallet-backend/pkg/metrics"
)

const (
	prefixSettlement  = "TRX"
	prefixAppointment = "APPT"
	prefixTransfer    = "TRF"
	prefixDeposit     = "ADD"
	prefixHistory     = "HIS"

	suffixAdmin  = "-ADMIN"
	suffixDoctor = "-DOC"
	suffixFrom   = "-FROM"
	suffixTo     = "-TO"
)

const (
	opTransfer   = "transfer"
	opSettlement = "settlement"
	opDeposit    = "deposit"
	opHistory    = "standalone_history"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service moves money between wallets. Every operation runs as one atomic
// unit: balances, entry logs and transaction records commit together or not
// at all.
type Service struct {
	tx             txRunner
	store          *wallet.Store
	ledger         ledger.Service
	doctors        *doctors.Resolver
	commissionRate decimal.Decimal
	videoCallFee   decimal.Decimal
	logg           *logger.Logger
	metrics        *metrics.LedgerMetrics
	now            func() time.Time
	newID          func() string
}

type ServiceParams struct {
	TxRunner txRunner
	Store    *wallet.Store
	Ledger   ledger.Service
	Doctors  *doctors.Resolver
	Config   config.WalletConfig
	Logger   *logger.Logger
	Metrics  *metrics.LedgerMetrics
	Now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("wallet store required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Doctors == nil {
		return nil, fmt.Errorf("doctor resolver required")
	}
	rate := params.Config.CommissionRate
	if !rate.IsPositive() || !rate.LessThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate must be above 0 and below 1")
	}
	if !params.Config.VideoCallFee.IsPositive() {
		return nil, fmt.Errorf("video call fee must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		tx:             params.TxRunner,
		store:          params.Store,
		ledger:         params.Ledger,
		doctors:        params.Doctors,
		commissionRate: rate,
		videoCallFee:   params.Config.VideoCallFee,
		logg:           params.Logger,
		metrics:        params.Metrics,
		now:            now,
		newID:          func() string { return uuid.NewString() },
	}, nil
}

// CommissionRate is the default admin share of a settlement.
func (s *Service) CommissionRate() decimal.Decimal {
	return s.commissionRate
}

// VideoCallFee is the fixed price of a video consultation.
func (s *Service) VideoCallFee() decimal.Decimal {
	return s.videoCallFee
}

// Store exposes the wallet store for read paths.
func (s *Service) Store() *wallet.Store {
	return s.store
}

func party(ref wallet.AccountRef) ledger.Party {
	return ledger.Party{Type: ref.Kind.PartyType(), ID: ref.Key}
}

func (s *Service) stamp() time.Time {
	return s.now().UTC()
}

func (s *Service) observe(operation string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds):
		outcome = "insufficient_funds"
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		outcome = "invalid"
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	s.metrics.ObserveSettlement(operation, outcome)
}

func (s *Service) logFailure(ctx context.Context, msg string, err error) {
	if s.logg == nil || err == nil {
		return
	}
	if pkgerrors.StatusOf(err) < http.StatusInternalServerError {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
		return
	}
	s.logg.Error(ctx, msg, err)
}

func mergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range base {
		out[k] = v
	}
	return out
}

func trimmedOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
