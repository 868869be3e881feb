package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harisdckap/Croom/internal/model"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateAccount inserts a new account. Uniqueness of email and of the
// (provider, provider_user_id) pair is enforced by the database, so two
// concurrent creates for the same identity cannot both succeed; the loser
// gets model.ErrDuplicateIdentity.
func (s *Store) CreateAccount(ctx context.Context, account model.Account) error {
	_, err := s.pool.Exec(ctx, `
    INSERT INTO accounts (id, email, password_hash, name, gender, mobile, photo, account_type, provider, provider_user_id, verified, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
  `, account.ID, account.Email, account.PasswordHash, account.Name, account.Gender, account.Mobile, account.Photo,
		account.AccountType, account.Provider, account.ProviderUserID, account.Verified, account.CreatedAt, account.UpdatedAt)
	return translateError(err)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	return s.getAccount(ctx, `WHERE email = $1`, email)
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (model.Account, error) {
	return s.getAccount(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetAccountByExternalID(ctx context.Context, provider, providerUserID string) (model.Account, error) {
	return s.getAccount(ctx, `WHERE provider = $1 AND provider_user_id = $2`, provider, providerUserID)
}

func (s *Store) getAccount(ctx context.Context, where string, args ...interface{}) (model.Account, error) {
	var account model.Account
	row := s.pool.QueryRow(ctx, `
    SELECT id, email, password_hash, name, gender, mobile, photo, account_type, provider, provider_user_id, verified, created_at, updated_at
    FROM accounts
  `+where, args...)
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Name,
		&account.Gender,
		&account.Mobile,
		&account.Photo,
		&account.AccountType,
		&account.Provider,
		&account.ProviderUserID,
		&account.Verified,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, translateError(err)
}

func (s *Store) UpdateAccount(ctx context.Context, account model.Account) error {
	tag, err := s.pool.Exec(ctx, `
    UPDATE accounts
    SET email = $1, name = $2, gender = $3, mobile = $4, photo = $5, updated_at = $6
    WHERE id = $7
  `, account.Email, account.Name, account.Gender, account.Mobile, account.Photo, account.UpdatedAt, account.ID)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, hash string) error {
	tag, err := s.pool.Exec(ctx, `
    UPDATE accounts SET password_hash = $1, updated_at = now() WHERE id = $2
  `, hash, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func (s *Store) MarkVerified(ctx context.Context, accountID string) error {
	tag, err := s.pool.Exec(ctx, `
    UPDATE accounts SET verified = true, updated_at = now() WHERE id = $1
  `, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func (s *Store) CreateChallenge(ctx context.Context, challenge model.OTPChallenge) error {
	_, err := s.pool.Exec(ctx, `
    INSERT INTO otp_challenges (id, account_id, code, created_at, expires_at, consumed)
    VALUES ($1, $2, $3, $4, $5, $6)
  `, challenge.ID, challenge.AccountID, challenge.Code, challenge.CreatedAt, challenge.ExpiresAt, challenge.Consumed)
	return err
}

// LatestChallenge returns the most recently issued challenge for the account,
// consumed or not. Earlier rows are never consulted once a later one exists.
func (s *Store) LatestChallenge(ctx context.Context, accountID string) (model.OTPChallenge, error) {
	var challenge model.OTPChallenge
	row := s.pool.QueryRow(ctx, `
    SELECT id, account_id, code, created_at, expires_at, consumed
    FROM otp_challenges
    WHERE account_id = $1
    ORDER BY created_at DESC, id DESC
    LIMIT 1
  `, accountID)
	err := row.Scan(&challenge.ID, &challenge.AccountID, &challenge.Code, &challenge.CreatedAt, &challenge.ExpiresAt, &challenge.Consumed)
	if errors.Is(err, pgx.ErrNoRows) {
		return challenge, model.ErrNoChallenge
	}
	return challenge, err
}

// ConsumeChallenge flips the consumed flag exactly once. A second call for
// the same challenge affects zero rows and reports ErrChallengeConsumed.
func (s *Store) ConsumeChallenge(ctx context.Context, challengeID string) error {
	tag, err := s.pool.Exec(ctx, `
    UPDATE otp_challenges SET consumed = true WHERE id = $1 AND consumed = false
  `, challengeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrChallengeConsumed
	}
	return nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrAccountNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.ErrDuplicateIdentity
	}
	return err
}
