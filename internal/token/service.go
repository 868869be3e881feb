package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Harisdckap/Croom/internal/auth"
	"github.com/Harisdckap/Croom/internal/model"
)

type Service struct {
	secret     string
	issuer     string
	ttl        time.Duration
	revocation RevocationSet
}

func NewService(secret, issuer string, ttl time.Duration, revocation RevocationSet) *Service {
	return &Service{secret: secret, issuer: issuer, ttl: ttl, revocation: revocation}
}

func (s *Service) Issue(account model.Account) (string, error) {
	return auth.NewSessionToken(s.secret, s.issuer, uuid.NewString(), s.ttl, auth.Claims{
		AccountID:   account.ID,
		AccountType: account.AccountType,
	})
}

// Validate parses and verifies the token, then checks the revocation set.
// Signature validity alone is not sufficient: a revoked token is rejected for
// the rest of its lifetime.
func (s *Service) Validate(ctx context.Context, tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}

	revoked, err := s.revocation.Contains(ctx, claims.ID)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", model.ErrTokenRevoked
	}
	return claims.AccountID, nil
}

// Revoke adds the token id to the revocation set for the remainder of the
// token's lifetime. Natural expiry takes over afterwards.
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	return s.revocation.Insert(ctx, claims.ID, ttl)
}

func (s *Service) parse(tokenString string) (*auth.Claims, error) {
	claims, err := auth.ParseToken(s.secret, s.issuer, tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.ErrTokenExpired
		}
		return nil, model.ErrInvalidToken
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil, model.ErrInvalidToken
	}
	return claims, nil
}
