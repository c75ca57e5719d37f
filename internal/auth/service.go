package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/healthoasis/wallet-backend/internal/wallet"
	pkgAuth "github.com/healthoasis/wallet-backend/pkg/auth"
	"github.com/healthoasis/wallet-backend/pkg/config"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type accountStore interface {
	Ensure(ctx context.Context, ref wallet.AccountRef) (*models.WalletAccount, error)
}

type service struct {
	accounts accountStore
	jwtCfg   config.JWTConfig
	logg     *logger.Logger
	now      func() time.Time
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Accounts  accountStore
	JWTConfig config.JWTConfig
	Logger    *logger.Logger
	Now       func() time.Time
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Accounts == nil {
		return nil, fmt.Errorf("wallet store is required")
	}
	if params.JWTConfig.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		accounts: params.Accounts,
		jwtCfg:   params.JWTConfig,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Login opens (or creates) the patient's wallet and issues an access token
// for it.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	account, err := s.accounts.Ensure(ctx, wallet.Patient(req.Email))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		Email:     account.AccountKey,
		PartyType: enums.PartyTypePatient,
		JTI:       uuid.NewString(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithParty(ctx, string(enums.PartyTypePatient), account.AccountKey), "wallet login")
	}

	return &LoginResponse{
		AccessToken: token,
		ExpiresAt:   now.Add(s.jwtCfg.TTL()),
		Wallet: WalletSnapshot{
			Email:   account.AccountKey,
			Balance: account.Balance,
		},
	}, nil
}
