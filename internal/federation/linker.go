package federation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Harisdckap/Croom/internal/model"
)

type AccountStore interface {
	GetAccountByExternalID(ctx context.Context, provider, providerUserID string) (model.Account, error)
	CreateAccount(ctx context.Context, account model.Account) error
}

// Resolution is the two-outcome result of reconciling a provider assertion
// with the account store.
type Resolution struct {
	Account model.Account
	Created bool
}

type Linker struct {
	store AccountStore
}

func NewLinker(store AccountStore) *Linker {
	return &Linker{store: store}
}

// Resolve finds the account bound to the asserted external id, creating one
// on first login. An account registered with the same email through the
// password path is never merged; the external id alone keys the lookup.
func (l *Linker) Resolve(ctx context.Context, assertion model.ProviderAssertion) (Resolution, error) {
	account, err := l.store.GetAccountByExternalID(ctx, assertion.Provider, assertion.ProviderUserID)
	if err == nil {
		return Resolution{Account: account}, nil
	}
	if !errors.Is(err, model.ErrAccountNotFound) {
		return Resolution{}, err
	}

	now := time.Now().UTC()
	provider := assertion.Provider
	providerUserID := assertion.ProviderUserID
	account = model.Account{
		ID:             uuid.NewString(),
		Email:          strings.TrimSpace(strings.ToLower(assertion.Email)),
		Name:           assertion.Name,
		Photo:          assertion.Photo,
		AccountType:    model.AccountTypeFederated,
		Provider:       &provider,
		ProviderUserID: &providerUserID,
		Verified:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := l.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, model.ErrDuplicateIdentity) {
			// A concurrent login for the same external id may have won the
			// create; its account satisfies the lookup now.
			if existing, lookupErr := l.store.GetAccountByExternalID(ctx, assertion.Provider, assertion.ProviderUserID); lookupErr == nil {
				return Resolution{Account: existing}, nil
			}
		}
		return Resolution{}, err
	}
	return Resolution{Account: account, Created: true}, nil
}
