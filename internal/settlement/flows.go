package settlement

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/healthoasis/wallet-backend/internal/doctors"
	"github.com/healthoasis/wallet-backend/internal/wallet"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
)

const serviceVideoCall = "video_call"

var titled = regexp.MustCompile(`(?i)^dr\.?\s`)

// BookAppointment pays a doctor for a booking out of the patient's wallet.
func (s *Service) BookAppointment(ctx context.Context, email, doctorID string, amount decimal.Decimal) (*SettlementResult, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "doctor id is required")
	}
	return s.SettleWithCommission(ctx, SettlementInput{
		Payer:  wallet.Patient(email),
		Doctor: doctors.Ref{ID: doctorID},
		Gross:  amount,
		Descriptions: Descriptions{
			Payer:  fmt.Sprintf("Payment for appointment with Doctor ID: %s", doctorID),
			Admin:  fmt.Sprintf("Commission from appointment booking by %s with Doctor ID: %s", normalizeEmail(email), doctorID),
			Doctor: fmt.Sprintf("Payment received from patient %s", normalizeEmail(email)),
		},
		Metadata: map[string]any{"service": "appointment"},
	})
}

// AutoDeductForAppointment settles an already scheduled appointment. The
// appointment id is embedded in every leg id and in the metadata.
func (s *Service) AutoDeductForAppointment(ctx context.Context, email, doctorID string, amount decimal.Decimal, appointmentID string) (*SettlementResult, error) {
	doctorID = strings.TrimSpace(doctorID)
	appointmentID = strings.TrimSpace(appointmentID)
	if doctorID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "doctor id is required")
	}
	if appointmentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment id is required")
	}
	patient := normalizeEmail(email)
	return s.SettleWithCommission(ctx, SettlementInput{
		Payer:     wallet.Patient(email),
		Doctor:    doctors.Ref{ID: doctorID},
		Gross:     amount,
		Reference: fmt.Sprintf("%s-%s", prefixAppointment, appointmentID),
		Descriptions: Descriptions{
			Payer:  fmt.Sprintf("Auto-payment for appointment #%s with Doctor ID: %s", appointmentID, doctorID),
			Admin:  fmt.Sprintf("Commission from appointment #%s by %s with Doctor ID: %s", appointmentID, patient, doctorID),
			Doctor: fmt.Sprintf("Payment received for appointment #%s from patient %s", appointmentID, patient),
		},
		Metadata: map[string]any{
			"appointmentId": appointmentID,
			"service":       "appointment",
		},
	})
}

// PayVideoCall charges the fixed video consultation fee. The doctor may be
// given by id or only by display name.
func (s *Service) PayVideoCall(ctx context.Context, email string, doctor doctors.Ref) (*SettlementResult, error) {
	label := strings.TrimSpace(doctor.Name)
	if label == "" {
		label = strings.TrimSpace(doctor.ID)
	}
	patient := normalizeEmail(email)
	meta := map[string]any{"service": serviceVideoCall}
	if name := strings.TrimSpace(doctor.Name); name != "" {
		meta["doctorName"] = name
	}
	return s.SettleWithCommission(ctx, SettlementInput{
		Payer:  wallet.Patient(email),
		Doctor: doctor,
		Gross:  s.videoCallFee,
		Descriptions: Descriptions{
			Payer:  fmt.Sprintf("Video call payment to %s", withTitle(label)),
			Admin:  fmt.Sprintf("Commission from video call by %s", patient),
			Doctor: fmt.Sprintf("Video call with patient %s", patient),
		},
		Metadata: meta,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func withTitle(name string) string {
	if titled.MatchString(name) {
		return name
	}
	return "Dr. " + name
}
