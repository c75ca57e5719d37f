package wallet

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/api/middleware"
	"github.com/healthoasis/wallet-backend/api/responses"
	"github.com/healthoasis/wallet-backend/api/validators"
	"github.com/healthoasis/wallet-backend/internal/auth"
	"github.com/healthoasis/wallet-backend/internal/history"
	"github.com/healthoasis/wallet-backend/internal/ledger"
	"github.com/healthoasis/wallet-backend/internal/settlement"
	"github.com/healthoasis/wallet-backend/internal/topups"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	"github.com/healthoasis/wallet-backend/pkg/db/models"
	"github.com/healthoasis/wallet-backend/pkg/enums"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
	"github.com/healthoasis/wallet-backend/pkg/pagination"
)

type accountReader interface {
	Get(ctx context.Context, ref wallet.AccountRef) (*models.WalletAccount, error)
}

type historyReader interface {
	Query(ctx context.Context, input history.QueryInput) (*history.Page, error)
	Recent(ctx context.Context, partyType, partyID string, limit int) ([]models.TransactionRecord, error)
}

type topupService interface {
	AddMoney(ctx context.Context, input topups.AddMoneyInput) (*topups.AddMoneyResult, error)
	CreatePaymentIntent(ctx context.Context, email string, amountUSD decimal.Decimal) (*topups.PaymentIntentResult, error)
}

type settlementService interface {
	TransferSingle(ctx context.Context, input settlement.TransferInput) (*settlement.TransferResult, error)
	BookAppointment(ctx context.Context, email, doctorID string, amount decimal.Decimal) (*settlement.SettlementResult, error)
	AutoDeductForAppointment(ctx context.Context, email, doctorID string, amount decimal.Decimal, appointmentID string) (*settlement.SettlementResult, error)
}

// Login mints a wallet token for the email, creating the wallet on first use.
func Login(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Me returns the balance of the wallet named by the bearer token.
func Me(accounts accountReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := middleware.EmailFromContext(r.Context())
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		writeBalance(w, r, accounts, logg, email)
	}
}

func Balance(accounts accountReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := validators.RequireQuery(r, "email")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeBalance(w, r, accounts, logg, email)
	}
}

// BalanceDetailed adds the latest records touching the wallet.
func BalanceDetailed(accounts accountReader, records historyReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		email, err := validators.RequireQuery(r, "email")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		account, err := accounts.Get(ctx, wallet.Patient(email))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		recent, err := records.Recent(ctx, string(enums.PartyTypePatient), account.AccountKey, history.RecentLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"email":              account.AccountKey,
			"balance":            account.Balance,
			"recentTransactions": ledger.FromModels(recent),
		})
	}
}

func AddMoney(svc topupService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body addMoneyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, err := parseCurrency(body.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AddMoney(r.Context(), topups.AddMoneyInput{
			Email:           body.Email,
			Amount:          body.Amount,
			Currency:        currency,
			PaymentMethodID: body.PaymentMethodID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PaymentIntent prepares a client-confirmed card top-up in USD.
func PaymentIntent(svc topupService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body paymentIntentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CreatePaymentIntent(r.Context(), body.Email, body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Transfer(svc settlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body transferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := accountRef(body.FromType, body.FromID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := accountRef(body.ToType, body.ToID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.TransferSingle(r.Context(), settlement.TransferInput{
			From:        from,
			To:          to,
			Amount:      body.Amount,
			Description: validators.SanitizeString(body.Description, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"transferId":  result.TransferID,
			"fromBalance": result.FromBalance,
			"toBalance":   result.ToBalance,
		})
	}
}

func BookAppointment(svc settlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body bookAppointmentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.BookAppointment(r.Context(), body.Email, body.DoctorID, body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settlementBody(result))
	}
}

// AutoDeduct charges a booked appointment; the appointment id is embedded in every leg.
func AutoDeduct(svc settlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body autoDeductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AutoDeductForAppointment(r.Context(), body.Email, body.DoctorID, body.Amount, body.AppointmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload := settlementBody(result)
		payload["appointmentId"] = strings.TrimSpace(body.AppointmentID)
		responses.WriteSuccess(w, payload)
	}
}

// History pages through one party's records. A bare endDate covers that whole day.
func History(records historyReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		page, err := validators.ParseQueryInt(r, "page", pagination.DefaultPage, 1, 1_000_000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		start, err := validators.ParseQueryDate(r, "startDate", false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		end, err := validators.ParseQueryDate(r, "endDate", true)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		partyType := strings.TrimSpace(q.Get("type"))
		partyID := strings.TrimSpace(q.Get("id"))
		if partyType == "" {
			partyType = string(enums.PartyTypePatient)
			if partyID == "" {
				partyID = strings.TrimSpace(q.Get("email"))
			}
		}

		result, err := records.Query(ctx, history.QueryInput{
			PartyType: partyType,
			PartyID:   partyID,
			StartDate: start,
			EndDate:   end,
			Page:      page,
			Limit:     limit,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"transactions": ledger.FromModels(result.Transactions),
			"pagination":   result.Pagination,
		})
	}
}

func writeBalance(w http.ResponseWriter, r *http.Request, accounts accountReader, logg *logger.Logger, email string) {
	account, err := accounts.Get(r.Context(), wallet.Patient(email))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, balanceResponse{Email: account.AccountKey, Balance: account.Balance})
}

func accountRef(rawType, id string) (wallet.AccountRef, error) {
	kind, err := enums.ParseAccountKind(strings.TrimSpace(rawType))
	if err != nil {
		return wallet.AccountRef{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account type")
	}
	return wallet.AccountRef{Kind: kind, Key: id}, nil
}

func parseCurrency(raw string) (enums.Currency, error) {
	if strings.TrimSpace(raw) == "" {
		return enums.CurrencyINR, nil
	}
	currency, err := enums.ParseCurrency(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
	}
	return currency, nil
}

func settlementBody(result *settlement.SettlementResult) map[string]any {
	return map[string]any{
		"transactionId":  result.SettlementID,
		"amount":         result.Gross,
		"patientBalance": result.PayerBalance,
		"doctorShare":    result.DoctorShare,
		"adminShare":     result.AdminShare,
		"commissionRate": result.CommissionRate,
		"doctorId":       result.DoctorAccount,
	}
}
