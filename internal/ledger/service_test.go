package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
)

type fakeRepository struct {
	createFn      func(ctx context.Context, record *models.TransactionRecord) error
	createBatchFn func(ctx context.Context, records []*models.TransactionRecord) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, record *models.TransactionRecord) error {
	if f.createFn != nil {
		return f.createFn(ctx, record)
	}
	return nil
}

func (f *fakeRepository) CreateBatch(ctx context.Context, records []*models.TransactionRecord) error {
	if f.createBatchFn != nil {
		return f.createBatchFn(ctx, records)
	}
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id string) (*models.TransactionRecord, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ExistsByExternalRef(ctx context.Context, ref string) (bool, error) {
	return false, nil
}

func (f *fakeRepository) Query(ctx context.Context, filter Filter) ([]models.TransactionRecord, int64, error) {
	return nil, 0, nil
}

func (f *fakeRepository) ListDebitsBySender(ctx context.Context, sender Party) ([]models.TransactionRecord, error) {
	return nil, nil
}

func (f *fakeRepository) ListCreditsByReceiver(ctx context.Context, receiver Party) ([]models.TransactionRecord, error) {
	return nil, nil
}

func (f *fakeRepository) ListRecentForParty(ctx context.Context, party Party, limit int) ([]models.TransactionRecord, error) {
	return nil, nil
}

func validInput() RecordInput {
	return RecordInput{
		ID:            "TRX-1",
		Type:          enums.TransactionTypeDebit,
		Amount:        decimal.RequireFromString("1000.004"),
		Description:   " Payment to doctor d1 ",
		Sender:        Party{Type: enums.PartyTypePatient, ID: "a@x.com"},
		Receiver:      Party{Type: enums.PartyTypeDoctor, ID: "d1"},
		PaymentMethod: enums.PaymentMethodWallet,
		ExternalRef:   "pi_123",
		Metadata:      map[string]any{"share": "70%"},
	}
}

func TestService_Record(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	var created *models.TransactionRecord
	repo.createFn = func(ctx context.Context, record *models.TransactionRecord) error {
		created = record
		return nil
	}

	got, err := svc.Record(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if created == nil || got != created {
		t.Fatal("expected the created record to be returned")
	}
	if !created.Amount.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("expected amount rounded to 1000.00, got %s", created.Amount)
	}
	if created.Description != "Payment to doctor d1" {
		t.Fatalf("expected trimmed description, got %q", created.Description)
	}
	if created.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected completed status, got %s", created.Status)
	}
	if created.ExternalRef == nil || *created.ExternalRef != "pi_123" {
		t.Fatalf("expected external ref pi_123, got %v", created.ExternalRef)
	}
	if created.Metadata["share"] != "70%" {
		t.Fatalf("metadata mismatch: %v", created.Metadata)
	}
}

func TestService_RecordValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RecordInput)
	}{
		{name: "missing id", mutate: func(in *RecordInput) { in.ID = " " }},
		{name: "invalid type", mutate: func(in *RecordInput) { in.Type = "refund" }},
		{name: "zero amount", mutate: func(in *RecordInput) { in.Amount = decimal.Zero }},
		{name: "negative amount", mutate: func(in *RecordInput) { in.Amount = decimal.NewFromInt(-1) }},
		{name: "invalid sender type", mutate: func(in *RecordInput) { in.Sender.Type = "nurse" }},
		{name: "missing receiver id", mutate: func(in *RecordInput) { in.Receiver.ID = "" }},
		{name: "invalid payment method", mutate: func(in *RecordInput) { in.PaymentMethod = "cash" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := svc.Record(context.Background(), input)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_RecordDefaultsPaymentMethod(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)
	input := validInput()
	input.PaymentMethod = ""

	got, err := svc.Record(context.Background(), input)
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if got.PaymentMethod != enums.PaymentMethodWallet {
		t.Fatalf("expected wallet default, got %s", got.PaymentMethod)
	}
}

func TestService_RecordBatchRejectsDuplicateIDs(t *testing.T) {
	called := false
	repo := &fakeRepository{createBatchFn: func(ctx context.Context, records []*models.TransactionRecord) error {
		called = true
		return nil
	}}
	svc, _ := NewService(repo)

	_, err := svc.RecordBatch(context.Background(), []RecordInput{validInput(), validInput()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if called {
		t.Fatal("repository should not be called for an invalid batch")
	}
}

func TestService_RecordWrapsRepositoryErrors(t *testing.T) {
	boom := errors.New("boom")
	svc, _ := NewService(&fakeRepository{createFn: func(ctx context.Context, record *models.TransactionRecord) error {
		return boom
	}})

	_, err := svc.Record(context.Background(), validInput())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repository error, got %v", err)
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal code, got %v", err)
	}
}

func TestService_RecordMapsDuplicateIDToConflict(t *testing.T) {
	svc, _ := NewService(&fakeRepository{createFn: func(ctx context.Context, record *models.TransactionRecord) error {
		return errors.New("UNIQUE constraint failed: transaction_records.id")
	}})

	_, err := svc.Record(context.Background(), validInput())
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict code, got %v", err)
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected error for nil repository")
	}
}
