package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harisdckap/Croom/internal/db"
	"github.com/Harisdckap/Croom/internal/model"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("IDENTITY_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("IDENTITY_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	return pool
}

func testAccount(email string) model.Account {
	now := time.Now().UTC()
	return model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test",
		Gender:       "other",
		Mobile:       "1234567890",
		AccountType:  model.AccountTypeSelfRegistered,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateAccountDuplicateEmail(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	email := "dup." + time.Now().Format("150405.000") + "@example.local"
	if err := store.CreateAccount(ctx, testAccount(email)); err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := store.CreateAccount(ctx, testAccount(email)); !errors.Is(err, model.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestChallengeLifecycle(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	store := NewStore(pool)
	ctx := context.Background()

	account := testAccount("otp." + time.Now().Format("150405.000") + "@example.local")
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create error: %v", err)
	}

	now := time.Now().UTC()
	first := model.OTPChallenge{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Code:      "111111",
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	second := model.OTPChallenge{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Code:      "222222",
		CreatedAt: now.Add(time.Second),
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := store.CreateChallenge(ctx, first); err != nil {
		t.Fatalf("challenge create error: %v", err)
	}
	if err := store.CreateChallenge(ctx, second); err != nil {
		t.Fatalf("challenge create error: %v", err)
	}

	latest, err := store.LatestChallenge(ctx, account.ID)
	if err != nil {
		t.Fatalf("latest error: %v", err)
	}
	if latest.ID != second.ID {
		t.Fatalf("expected newest challenge to be authoritative")
	}

	if err := store.ConsumeChallenge(ctx, latest.ID); err != nil {
		t.Fatalf("consume error: %v", err)
	}
	if err := store.ConsumeChallenge(ctx, latest.ID); !errors.Is(err, model.ErrChallengeConsumed) {
		t.Fatalf("expected ErrChallengeConsumed, got %v", err)
	}
}

func TestMemStoreMatchesContract(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	account := testAccount("mem@example.local")
	if err := store.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create error: %v", err)
	}
	if err := store.CreateAccount(ctx, testAccount("mem@example.local")); !errors.Is(err, model.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
	if _, err := store.GetAccountByEmail(ctx, "absent@example.local"); !errors.Is(err, model.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := store.LatestChallenge(ctx, account.ID); !errors.Is(err, model.ErrNoChallenge) {
		t.Fatalf("expected ErrNoChallenge, got %v", err)
	}
}
