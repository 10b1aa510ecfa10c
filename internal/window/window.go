package window

import (
	"sort"
	"sync"
	"time"
)

// Config controls counter retention.
type Config struct {
	Window     time.Duration
	MaxEntries int
}

// Counter tracks event timestamps per key over a sliding window. Keys are
// created lazily on first record and removed once their window drains.
type Counter struct {
	mu   sync.RWMutex
	cfg  Config
	keys map[string]*keyWindow
	now  func() time.Time
}

type keyWindow struct {
	mu     sync.Mutex
	times  []time.Time
	sorted bool
}

// NewCounter creates a counter.
func NewCounter(cfg Config) *Counter {
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100
	}
	return &Counter{
		cfg:  cfg,
		keys: make(map[string]*keyWindow),
		now:  time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (c *Counter) SetNow(now func() time.Time) {
	c.now = now
}

// Record stores one event timestamp for key and returns the count of events
// within (now-window, now]. Out-of-order timestamps are tolerated.
func (c *Counter) Record(key string, ts time.Time) int {
	kw := c.window(key)
	now := c.now()

	kw.mu.Lock()
	defer kw.mu.Unlock()

	if n := len(kw.times); n > 0 && ts.Before(kw.times[n-1]) {
		kw.sorted = false
	}
	kw.times = append(kw.times, ts)
	kw.prune(now, c.cfg.Window, c.cfg.MaxEntries)
	return kw.countSince(now, c.cfg.Window)
}

// CountSince returns the number of recorded events for key with timestamps in
// (now-d, now]. Unknown keys count zero.
func (c *Counter) CountSince(key string, d time.Duration) int {
	c.mu.RLock()
	kw := c.keys[key]
	c.mu.RUnlock()
	if kw == nil {
		return 0
	}

	now := c.now()
	kw.mu.Lock()
	defer kw.mu.Unlock()
	kw.prune(now, c.cfg.Window, c.cfg.MaxEntries)
	return kw.countSince(now, d)
}

// Sweep removes keys whose windows are fully expired at now.
func (c *Counter) Sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-c.cfg.Window)
	for key, kw := range c.keys {
		kw.mu.Lock()
		kw.sortIfNeeded()
		idx := 0
		for idx < len(kw.times) && !kw.times[idx].After(cutoff) {
			idx++
		}
		kw.times = kw.times[idx:]
		empty := len(kw.times) == 0
		kw.mu.Unlock()
		if empty {
			delete(c.keys, key)
		}
	}
}

// Run sweeps periodically until ctx is done.
func (c *Counter) Run(done <-chan struct{}, period time.Duration) {
	if period <= 0 {
		period = time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			c.Sweep(now)
		}
	}
}

func (c *Counter) window(key string) *keyWindow {
	c.mu.RLock()
	kw := c.keys[key]
	c.mu.RUnlock()
	if kw != nil {
		return kw
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if kw = c.keys[key]; kw == nil {
		kw = &keyWindow{sorted: true}
		c.keys[key] = kw
	}
	return kw
}

func (kw *keyWindow) sortIfNeeded() {
	if kw.sorted {
		return
	}
	sort.Slice(kw.times, func(i, j int) bool { return kw.times[i].Before(kw.times[j]) })
	kw.sorted = true
}

func (kw *keyWindow) prune(now time.Time, window time.Duration, maxEntries int) {
	kw.sortIfNeeded()
	cutoff := now.Add(-window)
	idx := 0
	for idx < len(kw.times) && !kw.times[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		kw.times = kw.times[idx:]
	}
	if len(kw.times) > maxEntries {
		kw.times = kw.times[len(kw.times)-maxEntries:]
	}
}

func (kw *keyWindow) countSince(now time.Time, d time.Duration) int {
	kw.sortIfNeeded()
	cutoff := now.Add(-d)
	count := 0
	for i := len(kw.times) - 1; i >= 0; i-- {
		t := kw.times[i]
		if !t.After(cutoff) {
			break
		}
		if t.After(now) {
			continue
		}
		count++
	}
	return count
}
