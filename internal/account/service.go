package account

import (
	"context"
	"errors"
	"log/slog"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Harisdckap/Croom/internal/crypto"
	"github.com/Harisdckap/Croom/internal/federation"
	"github.com/Harisdckap/Croom/internal/mail"
	"github.com/Harisdckap/Croom/internal/model"
	"github.com/Harisdckap/Croom/internal/otp"
	"github.com/Harisdckap/Croom/internal/token"
)

const minPasswordLength = 8

type Store interface {
	CreateAccount(ctx context.Context, account model.Account) error
	GetAccountByEmail(ctx context.Context, email string) (model.Account, error)
	GetAccountByID(ctx context.Context, id string) (model.Account, error)
	GetAccountByExternalID(ctx context.Context, provider, providerUserID string) (model.Account, error)
	UpdateAccount(ctx context.Context, account model.Account) error
	UpdatePasswordHash(ctx context.Context, accountID, hash string) error
	MarkVerified(ctx context.Context, accountID string) error
}

// Service coordinates the identity store, credential handling, OTP issuance
// and session tokens behind the registration and session use cases.
type Service struct {
	store  Store
	tokens *token.Service
	otps   *otp.Service
	linker *federation.Linker
	mailer mail.Mailer
	logger *slog.Logger
}

func NewService(store Store, tokens *token.Service, otps *otp.Service, linker *federation.Linker, mailer mail.Mailer, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		tokens: tokens,
		otps:   otps,
		linker: linker,
		mailer: mailer,
		logger: logger,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Gender   string
	Mobile   string
}

type RegisterResult struct {
	AccountID      string
	Token          string
	DeliveryFailed bool
}

// Register creates an unverified account, issues an OTP challenge and a
// session token, and mails the code. Mail delivery failure is reported in the
// result, never rolled back over.
func (s *Service) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if err := validateRegistration(input); err != nil {
		return RegisterResult{}, err
	}

	if _, err := s.store.GetAccountByEmail(ctx, input.Email); err == nil {
		return RegisterResult{}, model.ErrDuplicateIdentity
	} else if !errors.Is(err, model.ErrAccountNotFound) {
		return RegisterResult{}, err
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return RegisterResult{}, err
	}

	now := time.Now().UTC()
	account := model.Account{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: hash,
		Name:         input.Name,
		Gender:       input.Gender,
		Mobile:       input.Mobile,
		AccountType:  model.AccountTypeSelfRegistered,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return RegisterResult{}, err
	}

	challenge, err := s.otps.Issue(ctx, account.ID)
	if err != nil {
		return RegisterResult{}, err
	}

	sessionToken, err := s.tokens.Issue(account)
	if err != nil {
		return RegisterResult{}, err
	}

	result := RegisterResult{AccountID: account.ID, Token: sessionToken}
	if err := s.mailer.SendOTP(ctx, account.Email, challenge.Code, sessionToken); err != nil {
		s.logger.WarnContext(ctx, "otp delivery failed", "account_id", account.ID, "error", err)
		result.DeliveryFailed = true
	}
	return result, nil
}

// VerifyOTP consumes the account's authoritative challenge and marks the
// account verified on first success.
func (s *Service) VerifyOTP(ctx context.Context, accountID, code string) error {
	if err := s.otps.Verify(ctx, accountID, code); err != nil {
		return err
	}
	return s.store.MarkVerified(ctx, accountID)
}

// ReissueOTP issues a fresh challenge for an account and mails the new code.
// The new challenge supersedes any earlier pending one.
func (s *Service) ReissueOTP(ctx context.Context, accountID string) (model.OTPChallenge, error) {
	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return model.OTPChallenge{}, err
	}

	challenge, err := s.otps.Issue(ctx, account.ID)
	if err != nil {
		return model.OTPChallenge{}, err
	}
	if err := s.mailer.SendOTP(ctx, account.Email, challenge.Code, ""); err != nil {
		s.logger.WarnContext(ctx, "otp delivery failed", "account_id", account.ID, "error", err)
	}
	return challenge, nil
}

type FederatedResult struct {
	AccountID  string
	Token      string
	NewAccount bool
}

// FederatedLogin resolves the provider assertion to an account. A session
// token is issued only for accounts created by this call; repeat logins
// return the account id alone.
func (s *Service) FederatedLogin(ctx context.Context, assertion model.ProviderAssertion) (FederatedResult, error) {
	if strings.TrimSpace(assertion.Provider) == "" {
		return FederatedResult{}, model.NewValidationError("provider", "required")
	}
	if strings.TrimSpace(assertion.ProviderUserID) == "" {
		return FederatedResult{}, model.NewValidationError("provider_user_id", "required")
	}

	res, err := s.linker.Resolve(ctx, assertion)
	if err != nil {
		return FederatedResult{}, err
	}

	result := FederatedResult{AccountID: res.Account.ID, NewAccount: res.Created}
	if res.Created {
		sessionToken, err := s.tokens.Issue(res.Account)
		if err != nil {
			return FederatedResult{}, err
		}
		result.Token = sessionToken
	}
	return result, nil
}

// ChangePassword verifies the current credential before storing a new hash.
// Accounts without a local credential (federated) cannot change a password.
func (s *Service) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return model.NewValidationError("new_password", "must be at least 8 characters")
	}

	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.HasCredential() {
		return model.ErrInvalidCredential
	}
	if err := crypto.CheckPassword(account.PasswordHash, currentPassword); err != nil {
		return model.ErrInvalidCredential
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePasswordHash(ctx, accountID, hash)
}

func (s *Service) Logout(ctx context.Context, tokenString string) error {
	if strings.TrimSpace(tokenString) == "" {
		return model.ErrMissingToken
	}
	return s.tokens.Revoke(ctx, tokenString)
}

func (s *Service) ValidateToken(ctx context.Context, tokenString string) (string, error) {
	if strings.TrimSpace(tokenString) == "" {
		return "", model.ErrMissingToken
	}
	return s.tokens.Validate(ctx, tokenString)
}

func (s *Service) GetAccount(ctx context.Context, accountID string) (model.Account, error) {
	return s.store.GetAccountByID(ctx, accountID)
}

type UpdateProfileInput struct {
	Name   string
	Email  string
	Gender string
	Mobile string
}

func (s *Service) UpdateProfile(ctx context.Context, accountID string, input UpdateProfileInput) (model.Account, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Name == "" {
		return model.Account{}, model.NewValidationError("name", "required")
	}
	if err := validateEmail(input.Email); err != nil {
		return model.Account{}, err
	}
	if err := validateMobile(input.Mobile); err != nil {
		return model.Account{}, err
	}

	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}

	account.Name = input.Name
	account.Email = input.Email
	account.Gender = input.Gender
	account.Mobile = input.Mobile
	account.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return model.Account{}, err
	}
	return account, nil
}

func validateRegistration(input RegisterInput) error {
	if input.Name == "" {
		return model.NewValidationError("name", "required")
	}
	if len(input.Name) > 255 {
		return model.NewValidationError("name", "must be at most 255 characters")
	}
	if err := validateEmail(input.Email); err != nil {
		return err
	}
	if len(input.Password) < minPasswordLength {
		return model.NewValidationError("password", "must be at least 8 characters")
	}
	if input.Gender == "" {
		return model.NewValidationError("gender", "required")
	}
	if err := validateMobile(input.Mobile); err != nil {
		return err
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return model.NewValidationError("email", "required")
	}
	if _, err := netmail.ParseAddress(email); err != nil {
		return model.NewValidationError("email", "must be a valid address")
	}
	return nil
}

func validateMobile(mobile string) error {
	if mobile == "" {
		return model.NewValidationError("mobile", "required")
	}
	if len(mobile) > 10 {
		return model.NewValidationError("mobile", "must be at most 10 digits")
	}
	return nil
}
