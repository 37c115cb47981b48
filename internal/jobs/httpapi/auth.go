package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves the owner behind a request. Session issuance lives
// in a separate service; this side only needs to check the bearer token.
type Authenticator interface {
	Authenticate(r *http.Request) (uuid.UUID, error)
}

// JWTAuthenticator accepts HS256 bearer tokens whose subject is the owner id.
type JWTAuthenticator struct {
	secret []byte
	clock  func() time.Time
}

func NewJWTAuthenticator(secret []byte) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret, clock: time.Now}
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (uuid.UUID, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return uuid.Nil, ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(a.clock),
	)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}

	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return ownerID, nil
}
