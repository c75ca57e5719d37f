package wallet

import "github.com/shopspring/decimal"

type addMoneyRequest struct {
	Email           string          `json:"email" validate:"required,email"`
	Amount          decimal.Decimal `json:"amount" validate:"money"`
	PaymentMethodID string          `json:"paymentMethodId" validate:"omitempty,max=255"`
	Currency        string          `json:"currency" validate:"omitempty,oneof=inr INR usd USD"`
}

type transferRequest struct {
	FromType    string          `json:"fromType" validate:"required,oneof=patient doctor admin"`
	FromID      string          `json:"fromId" validate:"omitempty,max=255"`
	ToType      string          `json:"toType" validate:"required,oneof=patient doctor admin"`
	ToID        string          `json:"toId" validate:"omitempty,max=255"`
	Amount      decimal.Decimal `json:"amount" validate:"money"`
	Description string          `json:"description" validate:"omitempty,max=500"`
}

type bookAppointmentRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	DoctorID string          `json:"doctorId" validate:"required,max=255"`
	Amount   decimal.Decimal `json:"amount" validate:"money"`
}

type autoDeductRequest struct {
	Email         string          `json:"email" validate:"required,email"`
	DoctorID      string          `json:"doctorId" validate:"required,max=255"`
	Amount        decimal.Decimal `json:"amount" validate:"money"`
	AppointmentID string          `json:"appointmentId" validate:"required,max=255"`
}

type paymentIntentRequest struct {
	Email  string          `json:"email" validate:"required,email"`
	Amount decimal.Decimal `json:"amount" validate:"money"`
}

type balanceResponse struct {
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
}
