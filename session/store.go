package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionNotFound is returned when no session matches the token hash.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionCorrupt is returned when a stored session blob cannot be decoded.
var ErrSessionCorrupt = errors.New("session corrupt")

// consumeScript atomically removes and returns the session blob. The GET+DEL
// pair running as one script is what makes refresh rotation single-winner:
// of two concurrent consumers exactly one sees the blob, the other sees nil.
const consumeScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return false
end
redis.call("DEL", KEYS[1])
return data
`

var consumeLua = redis.NewScript(consumeScript)

// Store is a Redis-backed session store keyed by refresh-token hash, with a
// per-user index set for logout-all.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sess"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(tokenHash string) string {
	return s.prefix + ":" + tokenHash
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

// Save persists a session under its token hash and indexes it for the user.
// The Redis TTL mirrors ExpiresAt so abandoned sessions age out on their own.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess.TokenHash == "" {
		return errors.New("session missing token hash")
	}
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.TokenHash), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.TokenHash)
		pipe.Expire(ctx, s.userKey(sess.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// FindActiveByHash returns the session stored under tokenHash if it has not
// expired. An expired record is deleted on the way out.
func (s *Store) FindActiveByHash(ctx context.Context, tokenHash string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess.TokenHash = tokenHash

	if !sess.Active(time.Now()) {
		if err := s.removeIndexed(ctx, sess.UserID, tokenHash); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Consume atomically removes and returns the session stored under tokenHash.
// Exactly one of any number of concurrent Consume calls for the same hash
// succeeds; the rest get ErrSessionNotFound. An expired record is removed
// and reported as not found.
func (s *Store) Consume(ctx context.Context, tokenHash string) (*Session, error) {
	result, err := consumeLua.Run(ctx, s.redis, []string{s.key(tokenHash)}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var blob []byte
	switch v := result.(type) {
	case string:
		blob = []byte(v)
	case []byte:
		blob = v
	default:
		return nil, fmt.Errorf("%w: invalid consume script response", ErrRedisUnavailable)
	}

	sess, err := Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess.TokenHash = tokenHash

	// Index cleanup is best effort; the record itself is already gone.
	if err := s.redis.SRem(ctx, s.userKey(sess.UserID), tokenHash).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if !sess.Active(time.Now()) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// DeleteByHash removes the session stored under tokenHash. A missing record
// reports ErrSessionNotFound so callers can tell a real revocation from a
// no-op.
func (s *Store) DeleteByHash(ctx context.Context, tokenHash string) error {
	_, err := s.Consume(ctx, tokenHash)
	if err != nil {
		// An expired-but-present record is already dead; report not found.
		if errors.Is(err, ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// DeleteAllForUser removes every session indexed for the user.
//
// ATOMICITY NOTE: this reads the index set then deletes in a pipeline. A
// session created between the read and the delete survives this call; it
// will age out via its TTL or be caught by a later DeleteAllForUser.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	hashes, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, h := range hashes {
			pipe.Del(ctx, s.key(h))
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// CountForUser returns the number of indexed sessions for a user.
func (s *Store) CountForUser(ctx context.Context, userID string) (int, error) {
	n, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// Ping reports Redis availability and round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) removeIndexed(ctx context.Context, userID, tokenHash string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(tokenHash))
		pipe.SRem(ctx, s.userKey(userID), tokenHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
