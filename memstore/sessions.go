package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/keelauth/keel/session"
)

// SessionStore is an in-memory keel.SessionStore keyed by refresh-token
// hash. Consume deletes under the mutex, so of concurrent calls for one
// hash exactly one gets the session back.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*session.Session)}
}

func cloneSession(s *session.Session) *session.Session {
	cp := *s
	return &cp
}

func (s *SessionStore) Save(_ context.Context, sess *session.Session, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.TokenHash] = cloneSession(sess)
	return nil
}

func (s *SessionStore) FindActiveByHash(_ context.Context, tokenHash string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	if !sess.Active(time.Now()) {
		delete(s.sessions, tokenHash)
		return nil, session.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (s *SessionStore) Consume(_ context.Context, tokenHash string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	delete(s.sessions, tokenHash)

	if !sess.Active(time.Now()) {
		return nil, session.ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

func (s *SessionStore) DeleteByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[tokenHash]; !ok {
		return session.ErrSessionNotFound
	}
	delete(s.sessions, tokenHash)
	return nil
}

func (s *SessionStore) DeleteAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, hash)
		}
	}
	return nil
}

// CountForUser reports the number of live sessions held by userID.
func (s *SessionStore) CountForUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	n := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Active(now) {
			n++
		}
	}
	return n
}
