package admin

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/api/responses"
	"github.com/healthoasis/wallet-backend/api/validators"
	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/internal/settlement"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	stripewebhook "github.com/healthoasis/wallet-backend/internal/webhooks/stripe"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

const defaultEventLimit = 50

type accountReader interface {
	Get(ctx context.Context, ref wallet.AccountRef) (*models.WalletAccount, error)
}

type eventService interface {
	ListEvents(ctx context.Context, status enums.PaymentEventStatus, limit int) ([]models.ExternalPaymentEvent, error)
	Reprocess(ctx context.Context, gatewayEventID string) (*stripewebhook.Outcome, error)
}

type historyRecorder interface {
	RecordStandaloneHistory(ctx context.Context, input settlement.StandaloneRecord) (*models.TransactionRecord, error)
}

type partyBody struct {
	Type string `json:"type" validate:"required,oneof=patient doctor admin system"`
	ID   string `json:"id" validate:"required,max=255"`
}

type recordRequest struct {
	ID            string          `json:"id" validate:"omitempty,max=255"`
	Type          string          `json:"type" validate:"required,oneof=credit debit transfer"`
	Amount        decimal.Decimal `json:"amount" validate:"money"`
	Description   string          `json:"description" validate:"required,max=500"`
	Sender        partyBody       `json:"sender"`
	Receiver      partyBody       `json:"receiver"`
	PaymentMethod string          `json:"paymentMethod" validate:"omitempty,oneof=wallet stripe manual"`
	Metadata      map[string]any  `json:"metadata"`
	CreatedAt     *time.Time      `json:"createdAt"`
}

// Wallet reports the commission balance held by the admin singleton.
func Wallet(accounts accountReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := accounts.Get(r.Context(), wallet.Admin())
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				responses.WriteSuccess(w, map[string]any{"balance": decimal.Zero})
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wallet.FromModel(account))
	}
}

func PaymentEvents(svc eventService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", defaultEventLimit, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := enums.PaymentEventStatus(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))))
		events, err := svc.ListEvents(r.Context(), status, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"events": stripewebhook.EventsFromModels(events)})
	}
}

// ReprocessPaymentEvent retries a failed gateway event by its gateway id.
func ReprocessPaymentEvent(svc eventService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID := strings.TrimSpace(chi.URLParam(r, "eventId"))
		if eventID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "eventId is required"))
			return
		}
		outcome, err := svc.Reprocess(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// RecordTransaction backfills a history record without moving money.
func RecordTransaction(svc historyRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body recordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method := enums.PaymentMethodWallet
		if body.PaymentMethod != "" {
			method = enums.PaymentMethod(body.PaymentMethod)
		}
		input := settlement.StandaloneRecord{
			ID:            body.ID,
			Type:          enums.TransactionType(body.Type),
			Amount:        body.Amount,
			Description:   validators.SanitizeString(body.Description, 500),
			Sender:        ledger.Party{Type: enums.PartyType(body.Sender.Type), ID: body.Sender.ID},
			Receiver:      ledger.Party{Type: enums.PartyType(body.Receiver.Type), ID: body.Receiver.ID},
			PaymentMethod: method,
			Metadata:      body.Metadata,
		}
		if body.CreatedAt != nil {
			input.CreatedAt = body.CreatedAt.UTC()
		}

		record, err := svc.RecordStandaloneHistory(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ledger.FromModel(record))
	}
}
