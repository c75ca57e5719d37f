package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/api/middleware"
	"github.com/healthoasis/wallet-backend/internal/history"
	"github.com/healthoasis/wallet-backend/internal/settlement"
	"github.com/healthoasis/wallet-backend/internal/topups"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/pagination"
)

type fakeAccounts struct {
	accounts map[string]*models.WalletAccount
}

func (f fakeAccounts) Get(_ context.Context, ref wallet.AccountRef) (*models.WalletAccount, error) {
	if acct, ok := f.accounts[strings.ToLower(strings.TrimSpace(ref.Key))]; ok {
		return acct, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet account not found")
}

type fakeHistory struct {
	lastQuery  history.QueryInput
	lastRecent []string
}

func (f *fakeHistory) Query(_ context.Context, input history.QueryInput) (*history.Page, error) {
	f.lastQuery = input
	return &history.Page{
		Transactions: []models.TransactionRecord{{ID: "TRX-1", Type: enums.TransactionTypeDebit}},
		Pagination:   pagination.NewMeta(pagination.Params{Page: input.Page, Limit: input.Limit}, 1),
	}, nil
}

func (f *fakeHistory) Recent(_ context.Context, partyType, partyID string, limit int) ([]models.TransactionRecord, error) {
	f.lastRecent = []string{partyType, partyID}
	return []models.TransactionRecord{{ID: "ADD-1"}}, nil
}

type fakeTopups struct {
	input topups.AddMoneyInput
}

func (f *fakeTopups) AddMoney(_ context.Context, input topups.AddMoneyInput) (*topups.AddMoneyResult, error) {
	f.input = input
	return &topups.AddMoneyResult{TransactionID: "ADD-1", Amount: input.Amount, Balance: input.Amount, PaymentMethod: "manual"}, nil
}

func (f *fakeTopups) CreatePaymentIntent(_ context.Context, email string, amountUSD decimal.Decimal) (*topups.PaymentIntentResult, error) {
	return &topups.PaymentIntentResult{ClientSecret: "cs_1", PaymentIntentID: "pi_1", OriginalAmount: amountUSD}, nil
}

type fakeSettlement struct {
	transfer      settlement.TransferInput
	appointmentID string
}

func (f *fakeSettlement) TransferSingle(_ context.Context, input settlement.TransferInput) (*settlement.TransferResult, error) {
	f.transfer = input
	return &settlement.TransferResult{TransferID: "TRF-1", FromBalance: decimal.NewFromInt(50), ToBalance: input.Amount}, nil
}

func (f *fakeSettlement) BookAppointment(_ context.Context, email, doctorID string, amount decimal.Decimal) (*settlement.SettlementResult, error) {
	return settlementResult(doctorID, amount), nil
}

func (f *fakeSettlement) AutoDeductForAppointment(_ context.Context, email, doctorID string, amount decimal.Decimal, appointmentID string) (*settlement.SettlementResult, error) {
	f.appointmentID = appointmentID
	return settlementResult(doctorID, amount), nil
}

func settlementResult(doctorID string, amount decimal.Decimal) *settlement.SettlementResult {
	admin := amount.Mul(decimal.RequireFromString("0.30")).Round(2)
	return &settlement.SettlementResult{
		SettlementID:   "TRX-1",
		Gross:          amount,
		AdminShare:     admin,
		DoctorShare:    amount.Sub(admin),
		CommissionRate: decimal.RequireFromString("0.30"),
		DoctorAccount:  doctorID,
	}
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return envelope.Data
}

func TestBalanceRequiresEmailAndReportsMissingWallet(t *testing.T) {
	accounts := fakeAccounts{accounts: map[string]*models.WalletAccount{
		"a@x.com": {AccountKey: "a@x.com", Balance: decimal.NewFromInt(120)},
	}}
	handler := Balance(accounts, nil)

	tests := []struct {
		name string
		url  string
		want int
	}{
		{name: "missing email", url: "/api/v1/wallet/balance", want: http.StatusBadRequest},
		{name: "unknown wallet", url: "/api/v1/wallet/balance?email=b@x.com", want: http.StatusNotFound},
		{name: "known wallet", url: "/api/v1/wallet/balance?email=A@x.com", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rec.Code != tt.want {
				t.Fatalf("expected %d got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMeUsesTokenEmail(t *testing.T) {
	accounts := fakeAccounts{accounts: map[string]*models.WalletAccount{
		"a@x.com": {AccountKey: "a@x.com", Balance: decimal.NewFromInt(7)},
	}}
	handler := Me(accounts, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/wallet/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token email, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/me", nil)
	req = req.WithContext(middleware.WithEmail(req.Context(), "a@x.com"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if data := decodeData(t, rec); data["balance"] != "7" {
		t.Fatalf("unexpected balance %v", data["balance"])
	}
}

func TestBalanceDetailedIncludesRecentRecords(t *testing.T) {
	accounts := fakeAccounts{accounts: map[string]*models.WalletAccount{
		"a@x.com": {AccountKey: "a@x.com", Balance: decimal.NewFromInt(7)},
	}}
	records := &fakeHistory{}
	rec := httptest.NewRecorder()
	BalanceDetailed(accounts, records, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance/detailed?email=a@x.com", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	recent, ok := decodeData(t, rec)["recentTransactions"].([]any)
	if !ok || len(recent) != 1 {
		t.Fatalf("expected one recent record, got %v", recent)
	}
	if records.lastRecent[0] != "patient" || records.lastRecent[1] != "a@x.com" {
		t.Fatalf("unexpected recent lookup %v", records.lastRecent)
	}
}

func TestAddMoneyDefaultsCurrencyAndValidates(t *testing.T) {
	svc := &fakeTopups{}
	handler := AddMoney(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/wallet/add-money", strings.NewReader(`{"email":"a@x.com","amount":"100.50"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.input.Currency != enums.CurrencyINR || !svc.input.Amount.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("unexpected input %+v", svc.input)
	}

	for _, body := range []string{
		`{"email":"a@x.com","amount":0}`,
		`{"email":"a@x.com","amount":5,"currency":"eur"}`,
		`{"amount":5}`,
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/wallet/add-money", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, rec.Code)
		}
	}
}

func TestTransferMapsAccountTypes(t *testing.T) {
	svc := &fakeSettlement{}
	handler := Transfer(svc, nil)

	rec := httptest.NewRecorder()
	body := `{"fromType":"patient","fromId":"a@x.com","toType":"doctor","toId":"7","amount":25,"description":"  refund  "}`
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/wallet/transfer", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.transfer.From != wallet.Patient("a@x.com") || svc.transfer.To != wallet.Doctor("7") {
		t.Fatalf("unexpected refs %+v", svc.transfer)
	}
	if svc.transfer.Description != "refund" {
		t.Fatalf("expected trimmed description, got %q", svc.transfer.Description)
	}
	if data := decodeData(t, rec); data["transferId"] != "TRF-1" {
		t.Fatalf("unexpected transfer id %v", data["transferId"])
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/wallet/transfer", strings.NewReader(`{"fromType":"system","toType":"doctor","amount":1}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for system sender, got %d", rec.Code)
	}
}

func TestAutoDeductEchoesAppointment(t *testing.T) {
	svc := &fakeSettlement{}
	rec := httptest.NewRecorder()
	body := `{"email":"a@x.com","doctorId":"7","amount":1000,"appointmentId":"42"}`
	AutoDeduct(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/wallet/appointments/auto-deduct", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	if data["appointmentId"] != "42" || data["adminShare"] != "300" || data["doctorShare"] != "700" {
		t.Fatalf("unexpected payload %v", data)
	}
	if svc.appointmentID != "42" {
		t.Fatalf("appointment id not forwarded")
	}
}

func TestHistoryParsesFilters(t *testing.T) {
	records := &fakeHistory{}
	handler := History(records, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/wallet/history?email=a@x.com&startDate=2024-01-01&endDate=2024-01-31&page=2&limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	q := records.lastQuery
	if q.PartyType != "patient" || q.PartyID != "a@x.com" || q.Page != 2 || q.Limit != 5 {
		t.Fatalf("unexpected query %+v", q)
	}
	if !q.EndDate.Equal(time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC)) {
		t.Fatalf("expected end of day, got %v", q.EndDate)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/wallet/history?type=doctor&id=7&limit=500", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", rec.Code)
	}
}
