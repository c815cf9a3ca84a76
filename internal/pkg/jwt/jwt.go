package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/xxxsen/studyhub/internal/pkg/timeutil"
)

type Claims struct {
	UserID      string `json:"id"`
	Email       string `json:"email"`
	AccountType string `json:"accountType"`
	jwtlib.RegisteredClaims
}

// Subject is the identity a token is issued for.
type Subject struct {
	ID          string
	Email       string
	AccountType string
}

// Issuer signs HS256 session tokens. Any holder of the secret can verify them
// without touching the record store.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  timeutil.Clock
}

func NewIssuer(secret []byte, ttl time.Duration, clock timeutil.Clock) *Issuer {
	if clock == nil {
		clock = timeutil.System
	}
	return &Issuer{secret: secret, ttl: ttl, clock: clock}
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

func (i *Issuer) Issue(sub Subject) (string, error) {
	return GenerateToken(sub, i.secret, i.ttl, i.clock.Now())
}

func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	return ParseToken(tokenString, i.secret, i.clock.Now())
}

func GenerateToken(sub Subject, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		UserID:      sub.ID,
		Email:       sub.Email,
		AccountType: sub.AccountType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   sub.ID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(tokenString string, secret []byte, now time.Time) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwtlib.WithTimeFunc(func() time.Time { return now }), jwtlib.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
