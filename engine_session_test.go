package keel_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/keelauth/keel"
)

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, testEmail, testPassword)
	pair := env.login(t, testEmail, testPassword)
	ctx := context.Background()

	newPair, acc, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if acc.Email != testEmail {
		t.Fatalf("refresh resolved account %q", acc.Email)
	}
	if newPair.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The consumed token is gone; the new one works.
	if _, _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, keel.ErrTokenInvalid) {
		t.Fatalf("replayed token: expected ErrTokenInvalid, got %v", err)
	}
	if _, _, err := env.engine.Refresh(ctx, newPair.RefreshToken); err != nil {
		t.Fatalf("rotated token rejected: %v", err)
	}
}

func TestRefreshGarbageToken(t *testing.T) {
	env := newTestEnv(t)

	for _, token := range []string{"", "not-a-token"} {
		if _, _, err := env.engine.Refresh(context.Background(), token); !errors.Is(err, keel.ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	acc := env.registerVerified(t, testEmail, testPassword)
	pair := env.login(t, testEmail, testPassword)
	ctx := context.Background()

	before := env.sessions.CountForUser(acc.ID)

	const goroutines = 16
	var wg sync.WaitGroup
	results := make([]error, goroutines)

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(slot int) {
			defer wg.Done()
			_, _, results[slot] = env.engine.Refresh(ctx, pair.RefreshToken)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, keel.ErrTokenInvalid):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one rotation winner, got %d", winners)
	}
	// The rotated session was consumed and exactly one replaced it; the
	// losing refreshes created nothing.
	if got := env.sessions.CountForUser(acc.ID); got != before {
		t.Fatalf("sessions = %d after rotation, want %d", got, before)
	}
}

func TestLogoutRevokesSingleSession(t *testing.T) {
	env := newTestEnv(t)
	acc := env.registerVerified(t, testEmail, testPassword)
	ctx := context.Background()

	first := env.login(t, testEmail, testPassword)
	second := env.login(t, testEmail, testPassword)

	if err := env.engine.Logout(ctx, acc.ID, first.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, _, err := env.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, keel.ErrTokenInvalid) {
		t.Fatalf("revoked session still refreshes: %v", err)
	}
	if _, _, err := env.engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("unrelated session was revoked: %v", err)
	}
}

func TestLogoutReportsUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	acc := env.registerVerified(t, testEmail, testPassword)
	ctx := context.Background()

	if err := env.engine.Logout(ctx, acc.ID, "never-issued"); !errors.Is(err, keel.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	// Double logout reports the truth the second time.
	pair := env.login(t, testEmail, testPassword)
	if err := env.engine.Logout(ctx, acc.ID, pair.RefreshToken); err != nil {
		t.Fatalf("first Logout: %v", err)
	}
	if err := env.engine.Logout(ctx, acc.ID, pair.RefreshToken); !errors.Is(err, keel.ErrSessionNotFound) {
		t.Fatalf("second Logout: expected ErrSessionNotFound, got %v", err)
	}
}

func TestLogoutRejectsForeignSession(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, testEmail, testPassword)
	other := env.registerVerified(t, "other@example.com", "other password")

	pair := env.login(t, testEmail, testPassword)

	err := env.engine.Logout(context.Background(), other.ID, pair.RefreshToken)
	if !errors.Is(err, keel.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign session, got %v", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	env := newTestEnv(t)
	acc := env.registerVerified(t, testEmail, testPassword)
	ctx := context.Background()

	pairs := []*keel.TokenPair{
		env.login(t, testEmail, testPassword),
		env.login(t, testEmail, testPassword),
		env.login(t, testEmail, testPassword),
	}

	if err := env.engine.LogoutAll(ctx, acc.ID); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if n := env.sessions.CountForUser(acc.ID); n != 0 {
		t.Fatalf("%d sessions survived LogoutAll", n)
	}
	for i, pair := range pairs {
		if _, _, err := env.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, keel.ErrTokenInvalid) {
			t.Fatalf("session %d survived: %v", i, err)
		}
	}

	// No sessions at all is still a success.
	if err := env.engine.LogoutAll(ctx, acc.ID); err != nil {
		t.Fatalf("empty LogoutAll: %v", err)
	}
}

func TestAuthenticateRequiresBothTokens(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, testEmail, testPassword)
	pair := env.login(t, testEmail, testPassword)
	ctx := context.Background()

	cases := []struct {
		name            string
		access, refresh string
	}{
		{"missing access", "", pair.RefreshToken},
		{"missing refresh", pair.AccessToken, ""},
		{"garbage access", "bogus", pair.RefreshToken},
		{"garbage refresh", pair.AccessToken, "bogus"},
	}
	for _, tc := range cases {
		if _, err := env.engine.Authenticate(ctx, tc.access, tc.refresh); !errors.Is(err, keel.ErrTokenInvalid) {
			t.Fatalf("%s: expected ErrTokenInvalid, got %v", tc.name, err)
		}
	}
}

func TestAuthenticateFailsAfterLogout(t *testing.T) {
	env := newTestEnv(t)
	acc := env.registerVerified(t, testEmail, testPassword)
	pair := env.login(t, testEmail, testPassword)
	ctx := context.Background()

	if _, err := env.engine.Authenticate(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		t.Fatalf("Authenticate before logout: %v", err)
	}

	if err := env.engine.Logout(ctx, acc.ID, pair.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	// The access token is still within its lifetime; the dead session is
	// what kills the request.
	if _, err := env.engine.Authenticate(ctx, pair.AccessToken, pair.RefreshToken); !errors.Is(err, keel.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after logout, got %v", err)
	}
}

func TestAuthenticateRejectsMismatchedPair(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, testEmail, testPassword)
	env.registerVerified(t, "other@example.com", "other password")

	mine := env.login(t, testEmail, testPassword)
	theirs := env.login(t, "other@example.com", "other password")

	_, err := env.engine.Authenticate(context.Background(), mine.AccessToken, theirs.RefreshToken)
	if !errors.Is(err, keel.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for mismatched pair, got %v", err)
	}
}
