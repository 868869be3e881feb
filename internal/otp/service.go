package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/Harisdckap/Croom/internal/model"
)

type ChallengeStore interface {
	CreateChallenge(ctx context.Context, challenge model.OTPChallenge) error
	LatestChallenge(ctx context.Context, accountID string) (model.OTPChallenge, error)
	ConsumeChallenge(ctx context.Context, challengeID string) error
}

type Service struct {
	store ChallengeStore
	ttl   time.Duration
	now   func() time.Time
}

func NewService(store ChallengeStore, ttl time.Duration) *Service {
	return &Service{store: store, ttl: ttl, now: time.Now}
}

// Issue persists a fresh challenge. Earlier challenges for the account are
// left in place; only the newest one is consulted at verification time.
func (s *Service) Issue(ctx context.Context, accountID string) (model.OTPChallenge, error) {
	code, err := randomCode()
	if err != nil {
		return model.OTPChallenge{}, err
	}

	now := s.now().UTC()
	challenge := model.OTPChallenge{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateChallenge(ctx, challenge); err != nil {
		return model.OTPChallenge{}, err
	}
	return challenge, nil
}

// Verify checks the submitted code against the most recently issued
// challenge and consumes it on success. Success happens at most once per
// challenge; a repeat with the same correct code reports ErrChallengeConsumed.
func (s *Service) Verify(ctx context.Context, accountID, submittedCode string) error {
	challenge, err := s.store.LatestChallenge(ctx, accountID)
	if err != nil {
		return err
	}

	if challenge.Consumed {
		return model.ErrChallengeConsumed
	}
	if s.now().UTC().After(challenge.ExpiresAt) {
		return model.ErrChallengeExpired
	}
	if challenge.Code != submittedCode {
		return model.ErrCodeMismatch
	}
	return s.store.ConsumeChallenge(ctx, challenge.ID)
}

func randomCode() (string, error) {
	value, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", value.Int64()), nil
}
