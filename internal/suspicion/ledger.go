package suspicion

import (
	"context"
	"sync"
	"time"

	"guardpost/internal/logger"
)

// Config controls ledger decay.
type Config struct {
	DecayPeriod time.Duration
	DecayAmount int
}

// Ledger holds per-user accumulating, decaying suspicion scores. Scores are
// clamped at zero and entries are evicted once they decay to zero. Keys are
// guild-qualified user keys supplied by the caller.
type Ledger struct {
	mu     sync.Mutex
	cfg    Config
	scores map[string]int
}

// NewLedger creates a ledger.
func NewLedger(cfg Config) *Ledger {
	if cfg.DecayPeriod <= 0 {
		cfg.DecayPeriod = 10 * time.Minute
	}
	if cfg.DecayAmount <= 0 {
		cfg.DecayAmount = 1
	}
	return &Ledger{
		cfg:    cfg,
		scores: make(map[string]int),
	}
}

// Add applies a delta and returns the new score.
func (l *Ledger) Add(key string, delta int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	score := l.scores[key] + delta
	if score <= 0 {
		delete(l.scores, key)
		return 0
	}
	l.scores[key] = score
	return score
}

// Get returns the current score, zero for unknown keys.
func (l *Ledger) Get(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scores[key]
}

// Reset removes the entry for key.
func (l *Ledger) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.scores, key)
}

// DecayAll decrements every score by amount, evicting entries that reach zero.
func (l *Ledger) DecayAll(amount int) {
	if amount <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, score := range l.scores {
		score -= amount
		if score <= 0 {
			delete(l.scores, key)
			continue
		}
		l.scores[key] = score
	}
}

// Len returns the number of tracked entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.scores)
}

// Run decays all entries on the configured period until ctx is done.
func (l *Ledger) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.DecayPeriod)
	defer ticker.Stop()

	logger.Debugf("Suspicion decay loop started (period=%s amount=%d)", l.cfg.DecayPeriod, l.cfg.DecayAmount)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.DecayAll(l.cfg.DecayAmount)
		}
	}
}
