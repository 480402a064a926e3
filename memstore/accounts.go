package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/keelauth/keel"
)

// AccountStore is an in-memory keel.AccountStore. A single mutex guards the
// map and is held across Update's mutate callback, which gives the
// read-modify-write serialization the port requires. Records are copied on
// the way in and out so callers never alias store state.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[string]*keel.Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]*keel.Account)}
}

func cloneAccount(a *keel.Account) *keel.Account {
	cp := *a
	return &cp
}

func (s *AccountStore) FindByID(_ context.Context, id string) (*keel.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, keel.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (s *AccountStore) FindByEmail(_ context.Context, email string) (*keel.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, keel.ErrAccountNotFound
}

func (s *AccountStore) FindByEmailOrPhone(_ context.Context, email, phone, excludeID string) (*keel.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.ID == excludeID {
			continue
		}
		if (email != "" && a.Email == email) || (phone != "" && a.Phone == phone) {
			return cloneAccount(a), nil
		}
	}
	return nil, keel.ErrAccountNotFound
}

func (s *AccountStore) FindByHashedTokenField(_ context.Context, field keel.TokenField, hash string, now time.Time) (*keel.Account, error) {
	if hash == "" {
		return nil, keel.ErrAccountNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		var stored string
		var expiry time.Time
		switch field {
		case keel.TokenFieldEmailVerification:
			stored = a.EmailVerification.HashedToken
			expiry = a.EmailVerification.TokenExpiresAt
		case keel.TokenFieldPasswordReset:
			stored = a.PasswordCredential.HashedResetToken
			expiry = a.PasswordCredential.ResetTokenExpiresAt
		default:
			return nil, keel.ErrAccountNotFound
		}

		if stored == hash && expiry.After(now) {
			return cloneAccount(a), nil
		}
	}
	return nil, keel.ErrAccountNotFound
}

func (s *AccountStore) Create(_ context.Context, account *keel.Account) (*keel.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Email == account.Email || (account.Phone != "" && a.Phone == account.Phone) {
			return nil, keel.ErrAccountExists
		}
	}

	s.accounts[account.ID] = cloneAccount(account)
	return cloneAccount(account), nil
}

func (s *AccountStore) Update(_ context.Context, id string, mutate func(*keel.Account) error) (*keel.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, keel.ErrAccountNotFound
	}

	// Mutate a copy; a failing callback must leave the record untouched.
	draft := cloneAccount(a)
	if err := mutate(draft); err != nil {
		return nil, err
	}

	s.accounts[id] = draft
	return cloneAccount(draft), nil
}

func (s *AccountStore) DeleteUnverified(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok || a.EmailVerification.IsVerified {
		return 0, nil
	}
	delete(s.accounts, id)
	return 1, nil
}

// Len reports the number of stored accounts.
func (s *AccountStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}
