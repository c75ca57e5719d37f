package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/internal/settlement"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	stripewebhook "github.com/healthoasis/wallet-backend/internal/webhooks/stripe"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
)

type fakeAccounts struct {
	account *models.WalletAccount
}

func (f fakeAccounts) Get(_ context.Context, ref wallet.AccountRef) (*models.WalletAccount, error) {
	if ref.Kind != enums.AccountKindAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin expected")
	}
	if f.account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet account not found")
	}
	return f.account, nil
}

type fakeEvents struct {
	status      enums.PaymentEventStatus
	reprocessed string
}

func (f *fakeEvents) ListEvents(_ context.Context, status enums.PaymentEventStatus, limit int) ([]models.ExternalPaymentEvent, error) {
	f.status = status
	return []models.ExternalPaymentEvent{{GatewayEventID: "evt_1", ProcessingStatus: enums.PaymentEventStatusFailed, RawPayload: "{}"}}, nil
}

func (f *fakeEvents) Reprocess(_ context.Context, id string) (*stripewebhook.Outcome, error) {
	f.reprocessed = id
	if id == "evt_missing" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment event not found")
	}
	return &stripewebhook.Outcome{GatewayEventID: id, Status: enums.PaymentEventStatusApplied}, nil
}

type fakeRecorder struct {
	input settlement.StandaloneRecord
}

func (f *fakeRecorder) RecordStandaloneHistory(_ context.Context, input settlement.StandaloneRecord) (*models.TransactionRecord, error) {
	f.input = input
	return &models.TransactionRecord{ID: "HIS-1", Type: input.Type, Amount: input.Amount}, nil
}

func TestWalletReportsZeroBeforeFirstCommission(t *testing.T) {
	rec := httptest.NewRecorder()
	Wallet(fakeAccounts{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/wallet", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"balance":"0"`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	Wallet(fakeAccounts{account: &models.WalletAccount{Kind: enums.AccountKindAdmin, AccountKey: "1", Balance: decimal.NewFromInt(150)}}, nil).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/wallet", nil))
	if !strings.Contains(rec.Body.String(), `"balance":"150"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestPaymentEventsHidesRawPayload(t *testing.T) {
	svc := &fakeEvents{}
	rec := httptest.NewRecorder()
	PaymentEvents(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/payment-events?status=FAILED", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.status != enums.PaymentEventStatusFailed {
		t.Fatalf("expected lowercased status, got %q", svc.status)
	}
	if strings.Contains(rec.Body.String(), "raw") {
		t.Fatalf("raw payload leaked: %s", rec.Body.String())
	}
}

func TestReprocessPaymentEventUsesRouteParam(t *testing.T) {
	svc := &fakeEvents{}
	router := chi.NewRouter()
	router.Post("/payment-events/{eventId}/reprocess", ReprocessPaymentEvent(svc, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment-events/evt_9/reprocess", nil))
	if rec.Code != http.StatusOK || svc.reprocessed != "evt_9" {
		t.Fatalf("unexpected result %d %q", rec.Code, svc.reprocessed)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment-events/evt_missing/reprocess", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRecordTransaction(t *testing.T) {
	svc := &fakeRecorder{}
	body := `{"type":"debit","amount":250,"description":"Consultation","sender":{"type":"patient","id":"a@x.com"},"receiver":{"type":"doctor","id":"7"}}`
	rec := httptest.NewRecorder()
	RecordTransaction(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/transactions", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.input.PaymentMethod != enums.PaymentMethodWallet || svc.input.Sender.Type != enums.PartyTypePatient {
		t.Fatalf("unexpected input %+v", svc.input)
	}

	rec = httptest.NewRecorder()
	bad := `{"type":"refund","amount":1,"description":"x","sender":{"type":"patient","id":"a"},"receiver":{"type":"doctor","id":"7"}}`
	RecordTransaction(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/transactions", strings.NewReader(bad)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rec.Code)
	}
}
