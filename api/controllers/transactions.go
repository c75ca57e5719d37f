package controllers

import (
	"context"
	"net/http"

	"github.com/healthoasis/wallet-backend/api/responses"
	"github.com/healthoasis/wallet-backend/api/validators"
	"github.com/healthoasis/wallet-backend/internal/history"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

type transactionReader interface {
	Debits(ctx context.Context, email string) ([]history.DebitView, error)
	Credits(ctx context.Context, receiverType, receiverID string) ([]history.CreditView, error)
}

// TransactionDebits lists a patient's payments.
func TransactionDebits(svc transactionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := validators.RequireQuery(r, "email")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.Debits(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"transactions": views, "count": len(views)})
	}
}

// TransactionCredits lists payouts received by a doctor or the admin wallet.
func TransactionCredits(svc transactionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		receiverType, err := validators.RequireQuery(r, "receiverType")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.Credits(r.Context(), receiverType, r.URL.Query().Get("receiverId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"transactions": views, "count": len(views)})
	}
}
