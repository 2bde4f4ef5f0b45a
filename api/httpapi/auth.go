package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"xdao.co/trustchain/domain"
)

type callerKey struct{}

// IssueToken signs an HS256 bearer token whose subject is the caller
// address.
func IssueToken(secret []byte, caller domain.Address, now time.Time, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is required")
	}
	if caller.IsZero() {
		return "", domain.ErrInvalidAddress
	}
	claims := jwt.RegisteredClaims{
		Subject:  caller.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// authenticator resolves the caller address from a bearer token.
type authenticator struct {
	secret []byte
	now    func() time.Time
}

func (a authenticator) caller(authorization string) (domain.Address, error) {
	token, ok := parseBearer(authorization)
	if !ok {
		return "", errors.New("missing bearer token")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return "", fmt.Errorf("invalid bearer token: %w", err)
	}
	addr, err := domain.ParseAddress(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("invalid token subject: %w", err)
	}
	return addr, nil
}

// middleware rejects requests without a valid token.
func (a authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, err := a.caller(r.Header.Get("Authorization"))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Code: "UNAUTHENTICATED", Kind: string(domain.KindAuthorization), Message: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, addr)))
	})
}

func callerFrom(ctx context.Context) domain.Address {
	addr, _ := ctx.Value(callerKey{}).(domain.Address)
	return addr
}

func parseBearer(authorization string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
	return tok, tok != ""
}
