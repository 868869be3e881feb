package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Harisdckap/Croom/internal/model"
)

// MemStore is an in-memory Store equivalent used by package tests and local
// development. Uniqueness checks happen under one lock, mirroring the
// database constraints.
type MemStore struct {
	mu         sync.Mutex
	accounts   map[string]model.Account
	challenges map[string]model.OTPChallenge
}

func NewMemStore() *MemStore {
	return &MemStore{
		accounts:   make(map[string]model.Account),
		challenges: make(map[string]model.OTPChallenge),
	}
}

func (s *MemStore) CreateAccount(_ context.Context, account model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Email == account.Email {
			return model.ErrDuplicateIdentity
		}
		if account.Provider != nil && account.ProviderUserID != nil &&
			existing.Provider != nil && existing.ProviderUserID != nil &&
			*existing.Provider == *account.Provider && *existing.ProviderUserID == *account.ProviderUserID {
			return model.ErrDuplicateIdentity
		}
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *MemStore) GetAccountByEmail(_ context.Context, email string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return model.Account{}, model.ErrAccountNotFound
}

func (s *MemStore) GetAccountByID(_ context.Context, id string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return account, nil
}

func (s *MemStore) GetAccountByExternalID(_ context.Context, provider, providerUserID string) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if account.Provider != nil && account.ProviderUserID != nil &&
			*account.Provider == provider && *account.ProviderUserID == providerUserID {
			return account, nil
		}
	}
	return model.Account{}, model.ErrAccountNotFound
}

func (s *MemStore) UpdateAccount(_ context.Context, account model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[account.ID]
	if !ok {
		return model.ErrAccountNotFound
	}
	for id, existing := range s.accounts {
		if id != account.ID && existing.Email == account.Email {
			return model.ErrDuplicateIdentity
		}
	}
	current.Email = account.Email
	current.Name = account.Name
	current.Gender = account.Gender
	current.Mobile = account.Mobile
	current.Photo = account.Photo
	current.UpdatedAt = account.UpdatedAt
	s.accounts[account.ID] = current
	return nil
}

func (s *MemStore) UpdatePasswordHash(_ context.Context, accountID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return model.ErrAccountNotFound
	}
	account.PasswordHash = hash
	s.accounts[accountID] = account
	return nil
}

func (s *MemStore) MarkVerified(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return model.ErrAccountNotFound
	}
	account.Verified = true
	s.accounts[accountID] = account
	return nil
}

func (s *MemStore) CreateChallenge(_ context.Context, challenge model.OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[challenge.ID] = challenge
	return nil
}

func (s *MemStore) LatestChallenge(_ context.Context, accountID string) (model.OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []model.OTPChallenge
	for _, challenge := range s.challenges {
		if challenge.AccountID == accountID {
			matches = append(matches, challenge)
		}
	}
	if len(matches) == 0 {
		return model.OTPChallenge{}, model.ErrNoChallenge
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches[0], nil
}

func (s *MemStore) ConsumeChallenge(_ context.Context, challengeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.challenges[challengeID]
	if !ok || challenge.Consumed {
		return model.ErrChallengeConsumed
	}
	challenge.Consumed = true
	s.challenges[challengeID] = challenge
	return nil
}
