package auth

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/internal/wallet"
	pkgAuth "github.com/healthoasis/wallet-backend/pkg/auth"
	"github.com/healthoasis/wallet-backend/pkg/config"
	"github.com/healthoasis/wallet-backend/pkg/db/dbtest"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "healthoasis",
	ExpirationMinutes: 30,
}

func TestServiceLoginCreatesWalletAndToken(t *testing.T) {
	client := dbtest.Open(t)
	store := wallet.NewStore(client.DB(), "1")
	now := time.Now().UTC().Truncate(time.Second)

	svc, err := NewService(ServiceParams{Accounts: store, JWTConfig: testJWT, Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	resp, err := svc.Login(context.Background(), LoginRequest{Email: " Pat@Example.com "})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Wallet.Email != "pat@example.com" {
		t.Fatalf("expected normalized email, got %q", resp.Wallet.Email)
	}
	if !resp.Wallet.Balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", resp.Wallet.Balance)
	}
	if !resp.ExpiresAt.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", resp.ExpiresAt)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Email != "pat@example.com" || claims.PartyType != enums.PartyTypePatient {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := store.Get(context.Background(), wallet.Patient("pat@example.com")); err != nil {
		t.Fatalf("expected wallet to be created: %v", err)
	}
}

func TestServiceLoginReturnsExistingBalance(t *testing.T) {
	client := dbtest.Open(t)
	store := wallet.NewStore(client.DB(), "1")
	if _, err := store.Create(context.Background(), wallet.Patient("pat@example.com"), decimal.NewFromInt(250)); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	svc, err := NewService(ServiceParams{Accounts: store, JWTConfig: testJWT})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	resp, err := svc.Login(context.Background(), LoginRequest{Email: "pat@example.com"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !resp.Wallet.Balance.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected balance 250, got %s", resp.Wallet.Balance)
	}
}

func TestServiceLoginRejectsInvalidEmail(t *testing.T) {
	svc, err := NewService(ServiceParams{Accounts: failingStore{}, JWTConfig: testJWT})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	_, err = svc.Login(context.Background(), LoginRequest{Email: "nope"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{JWTConfig: testJWT}); err == nil {
		t.Fatal("expected missing store to fail")
	}
	if _, err := NewService(ServiceParams{Accounts: failingStore{}}); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

type failingStore struct{}

func (failingStore) Ensure(context.Context, wallet.AccountRef) (*models.WalletAccount, error) {
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid patient email")
}
