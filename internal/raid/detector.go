package raid

import (
	"sync"
	"time"

	"guardpost/internal/window"
)

// Defense is the recommendation returned for a single join observation.
type Defense int

const (
	// DefenseNone means the join rate is below the raid threshold.
	DefenseNone Defense = iota
	// DefenseLockdown is emitted exactly once per threshold crossing.
	DefenseLockdown
)

// Config controls raid detection per guild.
type Config struct {
	Window   time.Duration
	MaxJoins int
}

// Detector watches per-guild join rates and recommends a lockdown when the
// rate crosses the configured threshold. The recommendation is advisory; the
// detector gates nothing itself.
type Detector struct {
	cfg   Config
	joins *window.Counter

	mu     sync.Mutex
	locked map[string]bool
	now    func() time.Time
}

// NewDetector creates a detector.
func NewDetector(cfg Config) *Detector {
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	if cfg.MaxJoins <= 0 {
		cfg.MaxJoins = 10
	}
	joins := window.NewCounter(window.Config{Window: cfg.Window, MaxEntries: 4 * cfg.MaxJoins})
	return &Detector{
		cfg:    cfg,
		joins:  joins,
		locked: make(map[string]bool),
		now:    time.Now,
	}
}

// SetNow overrides the clock, for tests.
func (d *Detector) SetNow(now func() time.Time) {
	d.now = now
	d.joins.SetNow(now)
}

// ObserveJoin records one join for guildID and returns the defense to take.
// Lockdown is latched per guild: once emitted it stays silent until the join
// rate drains back below the threshold.
func (d *Detector) ObserveJoin(guildID string, ts time.Time) Defense {
	count := d.joins.Record(guildID, ts)

	d.mu.Lock()
	defer d.mu.Unlock()

	if count > d.cfg.MaxJoins {
		if d.locked[guildID] {
			return DefenseNone
		}
		d.locked[guildID] = true
		return DefenseLockdown
	}

	// Below threshold again: re-arm the latch.
	delete(d.locked, guildID)
	return DefenseNone
}

// JoinRate returns the current number of joins for guildID inside the window.
func (d *Detector) JoinRate(guildID string) int {
	return d.joins.CountSince(guildID, d.cfg.Window)
}

// Clear resets the lockdown latch for guildID, for manual moderator overrides.
func (d *Detector) Clear(guildID string) {
	d.mu.Lock()
	delete(d.locked, guildID)
	d.mu.Unlock()
}

// Sweep drops guilds whose join windows have fully drained and re-arms their
// latches. Intended to run on the shared maintenance ticker.
func (d *Detector) Sweep(now time.Time) {
	d.joins.Sweep(now)

	d.mu.Lock()
	defer d.mu.Unlock()
	for guildID := range d.locked {
		if d.joins.CountSince(guildID, d.cfg.Window) <= d.cfg.MaxJoins {
			delete(d.locked, guildID)
		}
	}
}
