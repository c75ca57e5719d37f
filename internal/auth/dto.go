package auth

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoginRequest carries the patient email sent to the login endpoint.
type LoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// WalletSnapshot is the wallet state returned after login.
type WalletSnapshot struct {
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
}

// LoginResponse contains the access token and the caller's wallet.
type LoginResponse struct {
	AccessToken string         `json:"token"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	Wallet      WalletSnapshot `json:"wallet"`
}
