package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/internal/bootstrap"
	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/internal/settlement"
	"github.com/healthoasis/wallet-backend/pkg/config"
	"github.com/healthoasis/wallet-backend/pkg/db"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
	"github.com/healthoasis/wallet-backend/pkg/migrate"
)

type demoDebit struct {
	id         string
	patient    string
	doctorID   string
	doctorName string
	amount     int64
}

var directory = []models.Doctor{
	{ID: "1", Name: "John Doe"},
	{ID: "2", Name: "Jane Smith"},
	{ID: "3", Name: "Rahul Kumar"},
}

// Stable ids keep re-runs from duplicating history rows.
var demoDebits = []demoDebit{
	{id: "seed-debit-1", patient: "user1@example.com", doctorID: "1", doctorName: "John Doe", amount: 500},
	{id: "seed-debit-2", patient: "user2@example.com", doctorID: "2", doctorName: "Jane Smith", amount: 1000},
	{id: "seed-debit-3", patient: "user3@example.com", doctorID: "3", doctorName: "Rahul Kumar", amount: 750},
}

func main() {
	withHistory := flag.Bool("history", false, "also record demo video-call debits in the history")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "seed"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithField(context.Background(), "env", cfg.App.Env)

	if cfg.App.IsProd() {
		logg.Warn(ctx, "refusing to seed a production database")
		os.Exit(1)
	}

	dbClient, err := db.Open(ctx, cfg, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	requireResource(ctx, logg, "migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	services, err := bootstrap.NewServices(bootstrap.ServiceParams{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
	})
	requireResource(ctx, logg, "services", err)

	if err := services.Directory.Upsert(ctx, directory); err != nil {
		requireResource(ctx, logg, "doctor directory", err)
	}
	logg.Info(logg.WithField(ctx, "count", len(directory)), "doctor directory seeded")

	if !*withHistory {
		return
	}
	if err := seedHistory(ctx, logg, services.Settlement); err != nil {
		requireResource(ctx, logg, "demo history", err)
	}
}

func seedHistory(ctx context.Context, logg *logger.Logger, svc *settlement.Service) error {
	created := 0
	for _, d := range demoDebits {
		_, err := svc.RecordStandaloneHistory(ctx, settlement.StandaloneRecord{
			ID:            d.id,
			Type:          enums.TransactionTypeDebit,
			Amount:        decimal.NewFromInt(d.amount),
			Description:   "Video call payment to Dr. " + d.doctorName,
			Sender:        ledger.Party{Type: enums.PartyTypePatient, ID: d.patient},
			Receiver:      ledger.Party{Type: enums.PartyTypeDoctor, ID: d.doctorID},
			PaymentMethod: enums.PaymentMethodWallet,
			Metadata: map[string]any{
				"doctorName":      d.doctorName,
				"service":         "video_call",
				"transactionTime": time.Now().UTC().Format(time.RFC3339),
			},
		})
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("record %s: %w", d.id, err)
		}
		created++
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"created": created, "skipped": len(demoDebits) - created}), "demo history seeded")
	return nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
