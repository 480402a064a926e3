package keel

import (
	"sync"
	"testing"
	"time"
)

func newTestExchange() *exchangeCache {
	return newExchangeCache(ExchangeConfig{
		CodeBytes:     24,
		TTL:           time.Minute,
		SweepInterval: 10 * time.Millisecond,
	})
}

func TestExchangePutTakeSingleUse(t *testing.T) {
	c := newTestExchange()
	now := time.Now()

	account := &Account{ID: "u-1", Email: "jane@x.com"}
	code, err := c.put(account, TokenPair{AccessToken: "a", RefreshToken: "r"}, now)
	if err != nil {
		t.Fatal(err)
	}

	entry, ok := c.take(code, now)
	if !ok {
		t.Fatal("first take failed")
	}
	if entry.account.ID != "u-1" || entry.tokens.AccessToken != "a" {
		t.Fatalf("wrong entry: %+v", entry)
	}

	if _, ok := c.take(code, now); ok {
		t.Fatal("second take of the same code succeeded")
	}
}

func TestExchangeExpiredCode(t *testing.T) {
	c := newTestExchange()
	now := time.Now()

	code, err := c.put(&Account{ID: "u-1"}, TokenPair{}, now)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := c.take(code, now.Add(2*time.Minute)); ok {
		t.Fatal("expired code was accepted")
	}
	if c.len() != 0 {
		t.Fatal("expired entry not removed on lookup")
	}
}

func TestExchangeUnknownCode(t *testing.T) {
	c := newTestExchange()
	if _, ok := c.take("no-such-code", time.Now()); ok {
		t.Fatal("unknown code was accepted")
	}
}

func TestExchangeSweep(t *testing.T) {
	c := newTestExchange()
	now := time.Now()

	if _, err := c.put(&Account{ID: "u-1"}, TokenPair{}, now.Add(-2*time.Minute)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.put(&Account{ID: "u-2"}, TokenPair{}, now); err != nil {
		t.Fatal(err)
	}

	c.sweepExpired(now)
	if c.len() != 1 {
		t.Fatalf("len = %d after sweep, want 1", c.len())
	}
}

func TestExchangeSweeperLifecycle(t *testing.T) {
	c := newTestExchange()
	c.start()

	if _, err := c.put(&Account{ID: "u-1"}, TokenPair{}, time.Now().Add(-2*time.Minute)); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for c.len() != 0 {
		select {
		case <-deadline:
			t.Fatal("sweeper did not remove expired entry")
		case <-time.After(5 * time.Millisecond):
		}
	}

	c.close()
	c.close() // idempotent
}

func TestExchangeConcurrentTakeSingleWinner(t *testing.T) {
	c := newTestExchange()
	now := time.Now()

	code, err := c.put(&Account{ID: "u-1"}, TokenPair{}, now)
	if err != nil {
		t.Fatal(err)
	}

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := c.take(code, now); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
}
