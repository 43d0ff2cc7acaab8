// Package auth issues and verifies guest identities. There is no account
// system: a client signs in anonymously, gets a fresh user id and a signed
// token, and presents the token on later requests.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/examdeck/examdeck/internal/errors"
)

const defaultTokenTTL = 30 * 24 * time.Hour

type Config struct {
	// Secret signs guest tokens. Must not be empty.
	Secret string

	// TokenTTL bounds how long an issued token stays valid. Zero means the
	// default of 30 days.
	TokenTTL time.Duration

	Now func() time.Time
}

type Service struct {
	c Config
}

func NewService(c Config) (*Service, error) {
	if c.Secret == "" {
		return nil, errors.New(errors.CodeInvalidConfiguration,
			errors.WithMessagef("auth: empty signing secret"))
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = defaultTokenTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Service{c: c}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

type SignInResponse struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SignInAnonymously mints a fresh guest identity and a token bound to it.
func (s *Service) SignInAnonymously() (*SignInResponse, error) {
	userID := "guest-" + uuid.Must(uuid.NewV7()).String()
	return s.issue(userID)
}

func (s *Service) issue(userID string) (*SignInResponse, error) {
	now := s.c.Now()
	exp := now.Add(s.c.TokenTTL)

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    "examdeck",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	signed, err := t.SignedString([]byte(s.c.Secret))
	if err != nil {
		return nil, errors.New(errors.CodeAuthFailure,
			errors.WithMessagef("auth: sign token"),
			errors.WithCause(err))
	}

	return &SignInResponse{UserID: userID, Token: signed, ExpiresAt: exp}, nil
}

// Verify checks the token signature and expiry and returns the user id it
// was issued for. Any failure maps to AuthFailure.
func (s *Service) Verify(token string) (string, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return []byte(s.c.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.c.Now),
	)
	if err != nil {
		return "", errors.New(errors.CodeAuthFailure,
			errors.WithMessagef("auth: invalid token"),
			errors.WithCause(err))
	}
	if !parsed.Valid || c.Subject == "" {
		return "", errors.New(errors.CodeAuthFailure,
			errors.WithMessagef("auth: invalid token"))
	}
	return c.Subject, nil
}
