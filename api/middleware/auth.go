package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/healthoasis/wallet-backend/api/responses"
	pkgAuth "github.com/healthoasis/wallet-backend/pkg/auth"
	"github.com/healthoasis/wallet-backend/pkg/config"
	pkgerrors "github.com/healthoasis/wallet-backend/pkg/errors"
	"github.com/healthoasis/wallet-backend/pkg/logger"
)

const bearerScheme = "bearer"

// Auth requires a valid access token and puts the Caller on the context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, raw)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			ctx := WithCaller(r.Context(), Caller{
				Email:     claims.Email,
				PartyType: claims.PartyType,
				TokenID:   claims.ID,
			})
			ctx = logg.WithParty(ctx, string(claims.PartyType), claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts "Bearer <token>" in any case. A bare token without a
// scheme is tolerated for older mobile builds.
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" || strings.EqualFold(header, bearerScheme) {
		return "", false
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found {
		return header, true
	}
	if !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token := strings.TrimSpace(rest)
	return token, token != ""
}
