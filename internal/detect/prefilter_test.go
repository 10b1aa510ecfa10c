package detect

import (
	"fmt"
	"testing"
	"time"

	"guardpost/internal/policy"
	"guardpost/pkg/models"
)

func testPrefilter(now time.Time) *Prefilter {
	p := NewPrefilter()
	p.SetNow(func() time.Time { return now })
	return p
}

func testSpamPolicy() policy.Policy {
	pol := policy.DefaultPolicy()
	pol.SpamWindow = 10 * time.Second
	pol.MaxMessages = 3
	pol.MaxMentions = 2
	return pol
}

func hasFlag(flags []SpamFlag, check string) bool {
	for _, f := range flags {
		if f.Check == check {
			return true
		}
	}
	return false
}

func TestPrefilterRateFlag(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := testPrefilter(now)
	pol := testSpamPolicy()

	for i := 0; i < 3; i++ {
		flags := p.Check(models.MessageReceived{
			GuildID:   "g1",
			UserID:    "u1",
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: now,
		}, pol)
		if hasFlag(flags, "rate") {
			t.Fatalf("message %d flagged before limit", i)
		}
	}

	flags := p.Check(models.MessageReceived{
		GuildID:   "g1",
		UserID:    "u1",
		Content:   "message 3",
		Timestamp: now,
	}, pol)
	if !hasFlag(flags, "rate") {
		t.Fatalf("expected rate flag on fourth message, got %v", flags)
	}
}

func TestPrefilterMentionFlood(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := testPrefilter(now)

	flags := p.Check(models.MessageReceived{
		GuildID:      "g1",
		UserID:       "u1",
		Content:      "hey everyone",
		MentionCount: 3,
		Timestamp:    now,
	}, testSpamPolicy())
	if !hasFlag(flags, "mentions") {
		t.Fatalf("expected mentions flag, got %v", flags)
	}
}

func TestPrefilterDuplicateContent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := testPrefilter(now)
	pol := testSpamPolicy()

	msg := models.MessageReceived{
		GuildID:   "g1",
		UserID:    "u1",
		Content:   "Buy cheap nitro now",
		Timestamp: now,
	}
	if flags := p.Check(msg, pol); hasFlag(flags, "duplicate") {
		t.Fatalf("first message flagged as duplicate: %v", flags)
	}
	// Case differences do not defeat the check.
	msg.Content = "buy CHEAP nitro now"
	if flags := p.Check(msg, pol); !hasFlag(flags, "duplicate") {
		t.Fatalf("expected duplicate flag on repeat, got %v", flags)
	}
}

func TestPrefilterShortDuplicatesIgnored(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := testPrefilter(now)
	pol := testSpamPolicy()

	msg := models.MessageReceived{GuildID: "g1", UserID: "u1", Content: "ok", Timestamp: now}
	p.Check(msg, pol)
	if flags := p.Check(msg, pol); hasFlag(flags, "duplicate") {
		t.Fatalf("short message flagged as duplicate: %v", flags)
	}
}

func TestPrefilterForget(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := testPrefilter(now)
	pol := testSpamPolicy()

	msg := models.MessageReceived{
		GuildID:   "g1",
		UserID:    "u1",
		Content:   "same long message",
		Timestamp: now,
	}
	p.Check(msg, pol)
	p.Forget("g1:u1")
	if flags := p.Check(msg, pol); hasFlag(flags, "duplicate") {
		t.Fatalf("duplicate flag survived Forget: %v", flags)
	}
}

func TestPrefilterKeysAreIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := testPrefilter(now)
	pol := testSpamPolicy()

	for i := 0; i < 4; i++ {
		p.Check(models.MessageReceived{
			GuildID:   "g1",
			UserID:    "u1",
			Content:   fmt.Sprintf("msg %d", i),
			Timestamp: now,
		}, pol)
	}
	flags := p.Check(models.MessageReceived{
		GuildID:   "g2",
		UserID:    "u1",
		Content:   "hello there",
		Timestamp: now,
	}, pol)
	if hasFlag(flags, "rate") {
		t.Fatalf("rate flag bled across guilds: %v", flags)
	}
}

func TestPrefilterHonorsGuildPolicy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := testPrefilter(now)

	strict := testSpamPolicy()
	lax := testSpamPolicy()
	lax.MaxMessages = 20

	for i := 0; i < 4; i++ {
		p.Check(models.MessageReceived{
			GuildID:   "strict",
			UserID:    "u1",
			Content:   fmt.Sprintf("msg %d", i),
			Timestamp: now,
		}, strict)
		flags := p.Check(models.MessageReceived{
			GuildID:   "lax",
			UserID:    "u1",
			Content:   fmt.Sprintf("msg %d", i),
			Timestamp: now,
		}, lax)
		if hasFlag(flags, "rate") {
			t.Fatalf("lax guild flagged at message %d under its own limit", i)
		}
	}
	flags := p.Check(models.MessageReceived{
		GuildID:   "strict",
		UserID:    "u1",
		Content:   "msg 4",
		Timestamp: now,
	}, strict)
	if !hasFlag(flags, "rate") {
		t.Fatalf("strict guild not flagged past its limit: %v", flags)
	}
}

func TestPrefilterSweepDropsDrainedWindows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := testPrefilter(now)
	pol := testSpamPolicy()

	p.Check(models.MessageReceived{
		GuildID:   "g1",
		UserID:    "u1",
		Content:   "hello hello hello",
		Timestamp: now,
	}, pol)
	p.Sweep(now.Add(time.Minute))

	flags := p.Check(models.MessageReceived{
		GuildID:   "g1",
		UserID:    "u1",
		Content:   "fresh message here",
		Timestamp: now.Add(time.Minute),
	}, pol)
	if hasFlag(flags, "rate") {
		t.Fatalf("rate flag after sweep: %v", flags)
	}
}
