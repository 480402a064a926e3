package keel

import "time"

// lockoutActive derives the locked state from LockedUntil against now. The
// stored IsLocked flag alone is never trusted: a lock whose window has
// passed reads as unlocked even when the flag is stale-true.
func lockoutActive(l Lockout, now time.Time) bool {
	return l.IsLocked && !l.LockedUntil.IsZero() && l.LockedUntil.After(now)
}

// recordFailedAttempt increments the counter and engages the lock once the
// new count reaches maxAttempts.
func recordFailedAttempt(l Lockout, maxAttempts uint32, lockDuration time.Duration, now time.Time) Lockout {
	l.FailedAttempts++
	if l.FailedAttempts >= maxAttempts {
		l.IsLocked = true
		l.LockedUntil = now.Add(lockDuration)
	} else {
		l.IsLocked = false
	}
	return l
}

func resetLockout() Lockout {
	return Lockout{}
}
