package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "oblivion-api"
	faucetSubject = "faucet"
)

var errWrongSubject = errors.New("token is not a faucet grant")

// FaucetAuth signs and checks the HS256 grants accepted by POST /v1/faucet.
type FaucetAuth struct {
	secret []byte
}

func NewFaucetAuth(secret []byte) *FaucetAuth {
	return &FaucetAuth{secret: secret}
}

// Claims is a faucet grant. An empty Address lets the bearer fund any account.
type Claims struct {
	Address string `json:"address,omitempty"`
	jwt.RegisteredClaims
}

// Allows reports whether the grant may fund addr.
func (c *Claims) Allows(addr string) bool {
	return c.Address == "" || c.Address == addr
}

// GenerateToken issues a grant for address that expires after ttl.
func (a *FaucetAuth) GenerateToken(address string, ttl time.Duration) (string, error) {
	now := time.Now()
	grant := Claims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   faucetSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &grant).SignedString(a.secret)
}

func (a *FaucetAuth) keyFunc(t *jwt.Token) (any, error) {
	if t.Method != jwt.SigningMethodHS256 {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return a.secret, nil
}

// ValidateToken checks signature, issuer and expiry and returns the grant.
func (a *FaucetAuth) ValidateToken(raw string) (*Claims, error) {
	var grant Claims
	if _, err := jwt.ParseWithClaims(raw, &grant, a.keyFunc,
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	); err != nil {
		return nil, err
	}
	if grant.Subject != faucetSubject {
		return nil, errWrongSubject
	}
	return &grant, nil
}
