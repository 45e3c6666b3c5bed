// Package auth guards the snippet API with signed bearer tokens.
//
// Authentication is optional: with no secret configured the server runs open.
// With a secret, every /api request must carry
//
//	Authorization: Bearer <jwt>
//
// Tokens are minted offline with `snipbox token` and verified here without
// any lookup. The payload only names who the token was issued to:
//
//	{"iss":"snippet-box","sub":"panel","iat":...,"exp":...}
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped on and required of every token.
const Issuer = "snippet-box"

// DefaultSubject names tokens issued without an explicit subject.
const DefaultSubject = "panel"

// DefaultTTL is the lifetime of tokens issued by Issue.
const DefaultTTL = 24 * time.Hour

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 16

// TokenService signs and verifies HS256 tokens with one shared secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: secret must be at least %d characters", MinSecretLength)
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for subject valid for DefaultTTL.
func (s *TokenService) Issue(subject string) (string, error) {
	return s.IssueFor(subject, DefaultTTL)
}

// IssueFor signs a token for subject valid for ttl. An empty subject becomes DefaultSubject.
func (s *TokenService) IssueFor(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	now := s.now()

	c := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies tokenStr and returns its subject.
//
// The signature, the HS256 algorithm, the issuer and a future expiry are all
// required. Pinning the algorithm rejects "alg: none" tokens.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
