package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/api/responses"
	"github.com/healthoasis/wallet-backend/api/validators"
	"github.com/healthoasis/wallet-backend/internal/doctors"
	"github.com/healthoasis/wallet-backend/internal/settlement"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

type videoCallService interface {
	PayVideoCall(ctx context.Context, email string, doctor doctors.Ref) (*settlement.SettlementResult, error)
	VideoCallFee() decimal.Decimal
}

type videoCallRequest struct {
	Email      string `json:"email" validate:"required,email"`
	DoctorID   string `json:"doctorId" validate:"omitempty,max=255"`
	DoctorName string `json:"doctorName" validate:"omitempty,max=255"`
}

// VideoCallPay charges the consultation fee; the doctor may be named instead of identified.
func VideoCallPay(svc videoCallService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body videoCallRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if strings.TrimSpace(body.DoctorID) == "" && strings.TrimSpace(body.DoctorName) == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "doctorId or doctorName is required"))
			return
		}

		result, err := svc.PayVideoCall(r.Context(), body.Email, doctors.Ref{ID: body.DoctorID, Name: body.DoctorName})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"transactionId":    result.SettlementID,
			"fee":              result.Gross,
			"patientBalance":   result.PayerBalance,
			"doctorShare":      result.DoctorShare,
			"adminShare":       result.AdminShare,
			"doctorId":         result.DoctorAccount,
			"doctorName":       result.DoctorName,
			"doctorResolution": result.DoctorResolution,
		})
	}
}

func VideoCallFee(svc videoCallService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"fee": svc.VideoCallFee()})
	}
}
