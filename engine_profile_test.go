package keel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/keelauth/keel"
)

func TestUpdateProfileEmptyIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	acc := env.registerVerified(t, testEmail, testPassword)

	res, err := env.engine.UpdateProfile(context.Background(), acc.ID, keel.ProfileUpdate{})
	if err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if res.Account.UpdatedAt != acc.UpdatedAt {
		t.Fatal("no-op update touched the record")
	}
}

func TestUpdateProfileNameAndPhone(t *testing.T) {
	env := newTestEnv(t)
	acc := env.registerVerified(t, testEmail, testPassword)

	res, err := env.engine.UpdateProfile(context.Background(), acc.ID, keel.ProfileUpdate{
		FullName: "Renamed User",
		Phone:    "+15550001111",
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if res.PasswordChanged {
		t.Fatal("profile-only update must not report PasswordChanged")
	}
	if res.Account.FullName != "Renamed User" || res.Account.Phone != "+15550001111" {
		t.Fatalf("fields not applied: %+v", res.Account)
	}
	if res.PendingEmail != "" {
		t.Fatal("no email change was requested")
	}
}

func TestUpdateProfilePasswordChange(t *testing.T) {
	env := newTestEnv(t)
	acc := env.registerVerified(t, testEmail, testPassword)
	ctx := context.Background()

	const newPassword = "rotated password"
	upd, err := env.engine.UpdateProfile(ctx, acc.ID, keel.ProfileUpdate{Password: newPassword})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	// Callers choose the response message off this flag.
	if !upd.PasswordChanged {
		t.Fatal("PasswordChanged not reported")
	}

	res, err := env.engine.Login(ctx, testEmail, testPassword)
	if err != nil || res.Valid {
		t.Fatalf("old password still valid: err=%v valid=%v", err, res.Valid)
	}
	env.login(t, testEmail, newPassword)
}

func TestUpdateProfileEmailChangeStaysPending(t *testing.T) {
	env := newTestEnv(t)
	acc := env.registerVerified(t, testEmail, testPassword)
	ctx := context.Background()

	const newAddr = "pending@example.com"
	res, err := env.engine.UpdateProfile(ctx, acc.ID, keel.ProfileUpdate{
		Email: newAddr, VerifyURL: testVerify,
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if res.PendingEmail != newAddr {
		t.Fatalf("PendingEmail = %q, want %q", res.PendingEmail, newAddr)
	}

	// The canonical address is unchanged until confirmed from the new
	// mailbox; logins keep using the old one.
	if res.Account.Email != testEmail {
		t.Fatalf("canonical email changed early: %q", res.Account.Email)
	}
	env.login(t, testEmail, testPassword)
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	env := newTestEnv(t)
	acc := env.registerVerified(t, testEmail, testPassword)
	env.registerVerified(t, "taken@example.com", "other password")

	_, err := env.engine.UpdateProfile(context.Background(), acc.ID, keel.ProfileUpdate{
		Email: "taken@example.com", VerifyURL: testVerify,
	})
	if !errors.Is(err, keel.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestUpdateProfileEmailChangeRollsBackOnSendFailure(t *testing.T) {
	env := newTestEnv(t)
	acc := env.registerVerified(t, testEmail, testPassword)
	ctx := context.Background()

	env.mail.setFail(true)
	_, err := env.engine.UpdateProfile(ctx, acc.ID, keel.ProfileUpdate{
		Email: "unreachable@example.com", VerifyURL: testVerify,
	})
	if !errors.Is(err, keel.ErrEmailDelivery) {
		t.Fatalf("expected ErrEmailDelivery, got %v", err)
	}

	// The staged change was compensated away; a later attempt starts clean.
	stored, err := env.accounts.FindByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.EmailVerification.PendingEmail != "" || stored.EmailVerification.HashedToken != "" {
		t.Fatalf("staged change not rolled back: %+v", stored.EmailVerification)
	}

	env.mail.setFail(false)
	if _, err := env.engine.UpdateProfile(ctx, acc.ID, keel.ProfileUpdate{
		Email: "unreachable@example.com", VerifyURL: testVerify,
	}); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
}

func TestUpdateProfileUnknownAccount(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.UpdateProfile(context.Background(), "no-such-id", keel.ProfileUpdate{FullName: "X"})
	if !errors.Is(err, keel.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
