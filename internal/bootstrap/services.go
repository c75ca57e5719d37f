// Package bootstrap assembles the wallet services shared by the api, cron and
// seed binaries.
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/healthoasis/wallet-backend/internal/auth"
	"github.com/healthoasis/wallet-backend/internal/doctors"
	"github.com/healthoasis/wallet-backend/internal/fx"
	"github.com/healthoasis/wallet-backend/internal/history"
	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/internal/settlement"
	"github.com/healthoasis/wallet-backend/internal/topups"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	stripewebhook "github.com/healthoasis/wallet-backend/internal/webhooks/stripe"
	"github.com/healthoasis/wallet-backend/pkg/config"
	"github.com/healthoasis/wallet-backend/pkg/db"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	"github.com/healthoasis/wallet-backend/pkg/logger"
	"github.com/healthoasis/wallet-backend/pkg/metrics"
	"github.com/healthoasis/wallet-backend/pkg/redis"
	pkgstripe "github.com/healthoasis/wallet-backend/pkg/stripe"
)

type ServiceParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client
	Stripe  *pkgstripe.Client
	Metrics *metrics.LedgerMetrics
}

// Services is the wired service graph. Redis and Stripe are optional: without
// redis the fx cache and webhook claim guard are skipped, without Stripe only
// manual top-ups work.
type Services struct {
	Accounts   *wallet.Store
	Records    ledger.Repository
	Ledger     ledger.Service
	Doctors    *doctors.Resolver
	Directory  doctors.Repository
	Settlement *settlement.Service
	History    *history.Service
	Converter  *fx.Converter
	Topups     *topups.Service
	Webhooks   *stripewebhook.Service
	Auth       auth.Service
}

func NewServices(params ServiceParams) (*Services, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	cfg := params.Config
	logg := params.Logger
	gdb := params.DB.DB()

	accounts := wallet.NewStore(gdb, cfg.Wallet.AdminAccountKey)
	records := ledger.NewRepository(gdb)
	ledgerSvc, err := ledger.NewService(records)
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	directory := doctors.NewRepository(gdb)
	resolver, err := doctors.NewResolver(doctors.ResolverParams{
		Repository:     directory,
		Policy:         enums.DoctorFallbackPolicy(strings.ToLower(strings.TrimSpace(cfg.Wallet.DoctorFallbackPolicy))),
		HoldingAccount: cfg.Wallet.DoctorFallbackAccount,
		Logger:         logg,
	})
	if err != nil {
		return nil, fmt.Errorf("doctor resolver: %w", err)
	}

	settlementSvc, err := settlement.NewService(settlement.ServiceParams{
		TxRunner: params.DB,
		Store:    accounts,
		Ledger:   ledgerSvc,
		Doctors:  resolver,
		Config:   cfg.Wallet,
		Logger:   logg,
		Metrics:  params.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("settlement service: %w", err)
	}

	historySvc, err := history.NewService(records, resolver, cfg.Wallet.AdminAccountKey)
	if err != nil {
		return nil, fmt.Errorf("history service: %w", err)
	}

	converterParams := fx.ConverterParams{
		Config:  cfg.FX,
		Logger:  logg,
		Metrics: params.Metrics,
	}
	if params.Redis != nil {
		converterParams.Cache = params.Redis
	}
	converter, err := fx.NewConverter(converterParams)
	if err != nil {
		return nil, fmt.Errorf("fx converter: %w", err)
	}

	topupParams := topups.ServiceParams{
		Deposits:  settlementSvc,
		Converter: converter,
		ClientURL: cfg.Stripe.ClientURL,
		Logger:    logg,
	}
	if params.Stripe != nil {
		topupParams.Gateway = topups.NewStripeGateway(params.Stripe)
	}
	topupSvc, err := topups.NewService(topupParams)
	if err != nil {
		return nil, fmt.Errorf("topup service: %w", err)
	}

	webhookParams := stripewebhook.ServiceParams{
		Events:            stripewebhook.NewRepository(gdb),
		Records:           records,
		Deposits:          settlementSvc,
		Converter:         converter,
		TransactionRunner: params.DB,
		Logger:            logg,
		Metrics:           params.Metrics,
		ConversionTimeout: cfg.FX.Timeout,
	}
	if params.Redis != nil {
		guard, err := stripewebhook.NewDeliveryGuard(params.Redis, cfg.Webhook.IdempotencyTTL, stripewebhook.Provider)
		if err != nil {
			return nil, fmt.Errorf("webhook guard: %w", err)
		}
		webhookParams.Guard = guard
	}
	webhookSvc, err := stripewebhook.NewService(webhookParams)
	if err != nil {
		return nil, fmt.Errorf("webhook service: %w", err)
	}

	authSvc, err := auth.NewService(auth.ServiceParams{
		Accounts:  accounts,
		JWTConfig: cfg.JWT,
		Logger:    logg,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	return &Services{
		Accounts:   accounts,
		Records:    records,
		Ledger:     ledgerSvc,
		Doctors:    resolver,
		Directory:  directory,
		Settlement: settlementSvc,
		History:    historySvc,
		Converter:  converter,
		Topups:     topupSvc,
		Webhooks:   webhookSvc,
		Auth:       authSvc,
	}, nil
}
