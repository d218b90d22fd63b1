package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
)

var errNoCaller = errors.New("token has no valid sub claim")

// NewTokenAuth returns an HS256 verifier for the shared secret
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// tokenFromQuery lets WebSocket clients, which cannot set headers in
// browsers, pass the token as ?token=.
func tokenFromQuery(r *http.Request) string {
	return r.URL.Query().Get("token")
}

// Authenticate verifies the bearer token and rejects requests without a
// usable caller id.
func Authenticate(tokenAuth *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	verify := jwtauth.Verify(tokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, tokenFromQuery)
	return func(next http.Handler) http.Handler {
		return verify(jwtauth.Authenticator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := callerFromContext(r.Context()); err != nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})))
	}
}

// callerFromContext reads the caller id from the verified token's sub claim.
func callerFromContext(ctx context.Context) (uuid.UUID, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errNoCaller
	}
	id, err := uuid.Parse(sub)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errNoCaller
	}
	return id, nil
}

// caller is callerFromContext for handlers behind Authenticate.
func caller(r *http.Request) uuid.UUID {
	id, _ := callerFromContext(r.Context())
	return id
}
