package httpapi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"go.trai.ch/zerr"
)

const issuer = "storefront"

var (
	ErrNoSecret     = zerr.New("jwt secret is empty")
	ErrInvalidToken = zerr.New("invalid token")
)

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
	parser *jwt.Parser
}

func NewTokens(secret string, ttl time.Duration, clock clockwork.Clock) (*Tokens, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(issuer),
			jwt.WithTimeFunc(clock.Now),
		),
	}, nil
}

// Issue returns a token for subject and its expiry.
func (t *Tokens) Issue(subject string) (string, time.Time, error) {
	now := t.clock.Now()
	exp := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Subject verifies raw and returns its subject.
func (t *Tokens) Subject(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := t.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return "", zerr.Wrap(err, ErrInvalidToken.Error())
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
