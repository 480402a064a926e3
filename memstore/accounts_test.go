package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/keelauth/keel"
)

func testAccount(id, email string) *keel.Account {
	now := time.Now()
	return &keel.Account{
		ID:        id,
		FullName:  "Test User",
		Email:     email,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestAccountStoreCreateAndFind(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	if _, err := s.Create(ctx, testAccount("a1", "a@example.com")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	byID, err := s.FindByID(ctx, "a1")
	if err != nil || byID.Email != "a@example.com" {
		t.Fatalf("FindByID: %v %+v", err, byID)
	}
	byEmail, err := s.FindByEmail(ctx, "a@example.com")
	if err != nil || byEmail.ID != "a1" {
		t.Fatalf("FindByEmail: %v %+v", err, byEmail)
	}

	if _, err := s.FindByID(ctx, "missing"); !errors.Is(err, keel.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountStoreCreateDuplicate(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	first := testAccount("a1", "a@example.com")
	first.Phone = "+15550001111"
	if _, err := s.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.Create(ctx, testAccount("a2", "a@example.com")); !errors.Is(err, keel.ErrAccountExists) {
		t.Fatalf("duplicate email: expected ErrAccountExists, got %v", err)
	}

	byPhone := testAccount("a3", "b@example.com")
	byPhone.Phone = "+15550001111"
	if _, err := s.Create(ctx, byPhone); !errors.Is(err, keel.ErrAccountExists) {
		t.Fatalf("duplicate phone: expected ErrAccountExists, got %v", err)
	}
}

func TestAccountStoreFindByEmailOrPhone(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	acc := testAccount("a1", "a@example.com")
	acc.Phone = "+15550001111"
	if _, err := s.Create(ctx, acc); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got, err := s.FindByEmailOrPhone(ctx, "a@example.com", "", ""); err != nil || got.ID != "a1" {
		t.Fatalf("by email: %v %+v", err, got)
	}
	if got, err := s.FindByEmailOrPhone(ctx, "", "+15550001111", ""); err != nil || got.ID != "a1" {
		t.Fatalf("by phone: %v %+v", err, got)
	}
	if _, err := s.FindByEmailOrPhone(ctx, "a@example.com", "", "a1"); !errors.Is(err, keel.ErrAccountNotFound) {
		t.Fatalf("excludeID ignored: %v", err)
	}
	// Empty arguments must not match accounts with empty fields.
	if _, err := s.FindByEmailOrPhone(ctx, "", "", ""); !errors.Is(err, keel.ErrAccountNotFound) {
		t.Fatalf("empty arguments matched: %v", err)
	}
}

func TestAccountStoreFindByHashedTokenField(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()
	now := time.Now()

	acc := testAccount("a1", "a@example.com")
	acc.EmailVerification.HashedToken = "verify-hash"
	acc.EmailVerification.TokenExpiresAt = now.Add(time.Hour)
	acc.PasswordCredential.HashedResetToken = "reset-hash"
	acc.PasswordCredential.ResetTokenExpiresAt = now.Add(-time.Minute)
	if _, err := s.Create(ctx, acc); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got, err := s.FindByHashedTokenField(ctx, keel.TokenFieldEmailVerification, "verify-hash", now); err != nil || got.ID != "a1" {
		t.Fatalf("live verification token: %v %+v", err, got)
	}
	if _, err := s.FindByHashedTokenField(ctx, keel.TokenFieldPasswordReset, "reset-hash", now); !errors.Is(err, keel.ErrAccountNotFound) {
		t.Fatalf("expired reset token matched: %v", err)
	}
	if _, err := s.FindByHashedTokenField(ctx, keel.TokenFieldPasswordReset, "verify-hash", now); !errors.Is(err, keel.ErrAccountNotFound) {
		t.Fatalf("token matched against the wrong field pair: %v", err)
	}
	if _, err := s.FindByHashedTokenField(ctx, keel.TokenFieldEmailVerification, "", now); !errors.Is(err, keel.ErrAccountNotFound) {
		t.Fatalf("empty hash matched: %v", err)
	}
}

func TestAccountStoreUpdateFailureLeavesRecord(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	if _, err := s.Create(ctx, testAccount("a1", "a@example.com")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	boom := errors.New("mutate failed")
	_, err := s.Update(ctx, "a1", func(a *keel.Account) error {
		a.FullName = "Should Not Persist"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutate error, got %v", err)
	}

	got, err := s.FindByID(ctx, "a1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.FullName != "Test User" {
		t.Fatalf("failed mutate leaked into the store: %q", got.FullName)
	}
}

func TestAccountStoreUpdateSerialized(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	if _, err := s.Create(ctx, testAccount("a1", "a@example.com")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const goroutines = 32
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, _ = s.Update(ctx, "a1", func(a *keel.Account) error {
				a.Lockout.FailedAttempts++
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := s.FindByID(ctx, "a1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Lockout.FailedAttempts != goroutines {
		t.Fatalf("lost updates: %d of %d increments survived", got.Lockout.FailedAttempts, goroutines)
	}
}

func TestAccountStoreDeleteUnverifiedConditional(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	unverified := testAccount("a1", "a@example.com")
	verified := testAccount("a2", "b@example.com")
	verified.EmailVerification.IsVerified = true
	if _, err := s.Create(ctx, unverified); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, verified); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if n, err := s.DeleteUnverified(ctx, "a1"); err != nil || n != 1 {
		t.Fatalf("delete unverified: n=%d err=%v", n, err)
	}
	if n, err := s.DeleteUnverified(ctx, "a2"); err != nil || n != 0 {
		t.Fatalf("verified account deleted: n=%d err=%v", n, err)
	}
	if n, err := s.DeleteUnverified(ctx, "missing"); err != nil || n != 0 {
		t.Fatalf("missing account: n=%d err=%v", n, err)
	}
}

func TestAccountStoreCopiesOnReturn(t *testing.T) {
	s := NewAccountStore()
	ctx := context.Background()

	if _, err := s.Create(ctx, testAccount("a1", "a@example.com")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.FindByID(ctx, "a1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	got.FullName = "Mutated Copy"

	again, err := s.FindByID(ctx, "a1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if again.FullName != "Test User" {
		t.Fatal("caller mutation leaked into the store")
	}
}
