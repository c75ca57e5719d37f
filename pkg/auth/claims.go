package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// AccessTokenPayload is what the login flow knows about the caller.
type AccessTokenPayload struct {
	Email     string
	PartyType enums.PartyType
	// JTI is generated when empty.
	JTI string
}

// AccessTokenClaims is the JWT body handed to wallet clients. Subject and
// Email both carry the normalized email.
type AccessTokenClaims struct {
	Email     string          `json:"email"`
	PartyType enums.PartyType `json:"type"`
	jwt.RegisteredClaims
}

var (
	errMissingEmail = errors.New("token missing email claim")
	errSubjectEmail = errors.New("token subject does not match email")
	errBadPartyType = errors.New("token carries an unknown party type")
)

// Validate runs after the registered claims checks in jwt.Parse.
func (c AccessTokenClaims) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return errMissingEmail
	}
	if c.Subject != "" && !strings.EqualFold(c.Subject, c.Email) {
		return errSubjectEmail
	}
	if !c.PartyType.IsValid() {
		return errBadPartyType
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
