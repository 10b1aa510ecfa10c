package detect

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"guardpost/internal/policy"
	"guardpost/internal/window"
	"guardpost/pkg/models"
)

// minDupLength is the shortest message eligible for duplicate detection.
// Shorter messages ("lol", "ok") repeat naturally in chat.
const minDupLength = 10

// SpamFlag reports one triggered spam check.
type SpamFlag struct {
	Check  string
	Reason string
}

// Prefilter runs the cheap per-message spam checks (rate, duplicate content,
// mention flooding) ahead of the content rule engine. Hits feed the suspicion
// ledger; the prefilter itself takes no action. Rate windows are kept per
// guild so each guild's policy sets its own limits.
type Prefilter struct {
	mu    sync.Mutex
	rates map[string]*guildRates
	last  map[string]string
	now   func() time.Time
}

type guildRates struct {
	window  time.Duration
	counter *window.Counter
}

// NewPrefilter creates a prefilter.
func NewPrefilter() *Prefilter {
	return &Prefilter{
		rates: make(map[string]*guildRates),
		last:  make(map[string]string),
		now:   time.Now,
	}
}

// SetNow overrides the clock used by the rate counters, for tests. It only
// affects counters created after the call.
func (p *Prefilter) SetNow(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

// Check evaluates one message against the guild's policy and returns all
// triggered flags.
func (p *Prefilter) Check(msg models.MessageReceived, pol policy.Policy) []SpamFlag {
	var flags []SpamFlag
	key := msg.GuildID + ":" + msg.UserID

	count := p.counterFor(msg.GuildID, pol.SpamWindow).Record(key, msg.Timestamp)
	if count > pol.MaxMessages {
		flags = append(flags, SpamFlag{
			Check:  "rate",
			Reason: fmt.Sprintf("message rate exceeded (%d in window)", count),
		})
	}

	if msg.MentionCount > pol.MaxMentions {
		flags = append(flags, SpamFlag{
			Check:  "mentions",
			Reason: fmt.Sprintf("excessive mentions (%d)", msg.MentionCount),
		})
	}

	content := strings.TrimSpace(strings.ToLower(msg.Content))
	if len(content) >= minDupLength {
		p.mu.Lock()
		if p.last[key] == content {
			flags = append(flags, SpamFlag{
				Check:  "duplicate",
				Reason: "repeated identical message",
			})
		}
		p.last[key] = content
		p.mu.Unlock()
	}

	return flags
}

// Forget drops duplicate-tracking state for a user key.
func (p *Prefilter) Forget(key string) {
	p.mu.Lock()
	delete(p.last, key)
	p.mu.Unlock()
}

// Sweep expires drained rate windows across all guilds.
func (p *Prefilter) Sweep(now time.Time) {
	p.mu.Lock()
	counters := make([]*window.Counter, 0, len(p.rates))
	for _, gr := range p.rates {
		counters = append(counters, gr.counter)
	}
	p.mu.Unlock()
	for _, c := range counters {
		c.Sweep(now)
	}
}

// Run sweeps periodically until done closes.
func (p *Prefilter) Run(done <-chan struct{}, period time.Duration) {
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
			p.Sweep(now)
		}
	}
}

// counterFor returns the guild's rate counter, rebuilding it if the policy's
// window changed since it was created.
func (p *Prefilter) counterFor(guildID string, w time.Duration) *window.Counter {
	if w <= 0 {
		w = 10 * time.Second
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	gr, ok := p.rates[guildID]
	if !ok || gr.window != w {
		c := window.NewCounter(window.Config{Window: w})
		c.SetNow(p.now)
		gr = &guildRates{window: w, counter: c}
		p.rates[guildID] = gr
	}
	return gr.counter
}
