package middleware

import (
	"context"

	"github.com/healthoasis/wallet-backend/pkg/enums"
)

// Caller is the authenticated party behind a request.
type Caller struct {
	Email     string
	PartyType enums.PartyType
	TokenID   string
}

type callerKey struct{}

func WithCaller(ctx context.Context, caller Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext reports false for unauthenticated requests.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok && caller.Email != ""
}

// WithEmail marks the request as coming from a patient wallet.
func WithEmail(ctx context.Context, email string) context.Context {
	return WithCaller(ctx, Caller{Email: email, PartyType: enums.PartyTypePatient})
}

// EmailFromContext is the wallet email of the caller, or "".
func EmailFromContext(ctx context.Context) string {
	caller, _ := CallerFromContext(ctx)
	return caller.Email
}

func PartyTypeFromContext(ctx context.Context) string {
	caller, _ := CallerFromContext(ctx)
	return string(caller.PartyType)
}
