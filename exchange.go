package keel

import (
	"sync"
	"time"

	"github.com/keelauth/keel/internal"
)

type exchangeEntry struct {
	account   *Account
	tokens    TokenPair
	expiresAt time.Time
}

// exchangeCache maps one-time login codes to issued token pairs, bridging
// OAuth redirect callbacks to token retrieval by the frontend. It is the one
// piece of process-wide mutable state in the engine: entries live only in
// memory and die with the process, which is acceptable because codes expire
// within the configured TTL and a failed exchange just reruns the OAuth flow.
type exchangeCache struct {
	mu      sync.RWMutex
	entries map[string]exchangeEntry

	ttl       time.Duration
	codeBytes int
	sweep     time.Duration

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newExchangeCache(cfg ExchangeConfig) *exchangeCache {
	return &exchangeCache{
		entries:   make(map[string]exchangeEntry),
		ttl:       cfg.TTL,
		codeBytes: cfg.CodeBytes,
		sweep:     cfg.SweepInterval,
		done:      make(chan struct{}),
	}
}

// start launches the periodic sweeper. Callers stop it via close.
func (c *exchangeCache) start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweepExpired(time.Now())
			case <-c.done:
				return
			}
		}
	}()
}

func (c *exchangeCache) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

// put stores the pair under a fresh one-time code and returns the code.
func (c *exchangeCache) put(account *Account, tokens TokenPair, now time.Time) (string, error) {
	code, err := internal.RandomCode(c.codeBytes)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[code] = exchangeEntry{
		account:   account,
		tokens:    tokens,
		expiresAt: now.Add(c.ttl),
	}
	c.mu.Unlock()

	return code, nil
}

// take removes and returns the entry for code. Expired and already-consumed
// codes both report false; callers cannot distinguish the two.
func (c *exchangeCache) take(code string, now time.Time) (exchangeEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[code]
	if !ok {
		return exchangeEntry{}, false
	}
	delete(c.entries, code)

	if !entry.expiresAt.After(now) {
		return exchangeEntry{}, false
	}
	return entry, true
}

func (c *exchangeCache) sweepExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for code, entry := range c.entries {
		if !entry.expiresAt.After(now) {
			delete(c.entries, code)
		}
	}
}

func (c *exchangeCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
