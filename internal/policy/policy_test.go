package policy

import (
	"reflect"
	"testing"
	"time"
)

func TestDefaultPolicyIsValid(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy failed validation: %v", err)
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	p := DefaultPolicy()
	p.KickThreshold = 90
	p.BanThreshold = 85
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for kick >= ban")
	}

	p = DefaultPolicy()
	p.QuarantineThreshold = 0
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for non-positive quarantine threshold")
	}
}

func TestStoreMergesOverrides(t *testing.T) {
	base := DefaultPolicy()
	store := NewStore(base, map[string]Policy{
		"g1": {KickThreshold: 60, TimeoutDuration: 10 * time.Minute},
	})

	p := store.For("g1")
	if p.KickThreshold != 60 {
		t.Fatalf("override lost: kick=%d", p.KickThreshold)
	}
	if p.TimeoutDuration != 10*time.Minute {
		t.Fatalf("override lost: timeout=%v", p.TimeoutDuration)
	}
	// Unset override fields inherit the default.
	if p.BanThreshold != base.BanThreshold {
		t.Fatalf("inherited field changed: ban=%d", p.BanThreshold)
	}
}

func TestStoreUnknownGuildGetsDefault(t *testing.T) {
	base := DefaultPolicy()
	store := NewStore(base, nil)
	if got := store.For("unknown"); !reflect.DeepEqual(got, base) {
		t.Fatalf("expected default policy, got %+v", got)
	}
}

func TestStoreMergesSpamFields(t *testing.T) {
	base := DefaultPolicy()
	store := NewStore(base, map[string]Policy{
		"g1": {SpamWindow: 30 * time.Second, MaxMessages: 3, MaxMentions: 2},
	})

	p := store.For("g1")
	if p.SpamWindow != 30*time.Second || p.MaxMessages != 3 || p.MaxMentions != 2 {
		t.Fatalf("spam overrides lost: window=%v messages=%d mentions=%d",
			p.SpamWindow, p.MaxMessages, p.MaxMentions)
	}
	other := store.For("g2")
	if other.MaxMessages != base.MaxMessages {
		t.Fatalf("spam override bled to other guilds: %d", other.MaxMessages)
	}
}

func TestStoreMergesActionOverride(t *testing.T) {
	store := NewStore(DefaultPolicy(), map[string]Policy{
		"g1": {Action: ActionQuarantine},
	})
	if got := store.For("g1").Action; got != ActionQuarantine {
		t.Fatalf("action override lost: %q", got)
	}
	if got := store.For("g2").Action; got != "" {
		t.Fatalf("action override bled to other guilds: %q", got)
	}
}

func TestWhitelistAddRemove(t *testing.T) {
	store := NewStore(DefaultPolicy(), nil)

	store.AddWhitelist("g1", "u1")
	store.AddWhitelist("g1", "u1")
	if !store.For("g1").IsWhitelisted("u1") {
		t.Fatal("u1 not whitelisted after add")
	}
	if got := len(store.For("g1").WhitelistedUsers); got != 1 {
		t.Fatalf("duplicate add grew whitelist: %d entries", got)
	}
	if store.For("g2").IsWhitelisted("u1") {
		t.Fatal("whitelist bled to other guilds")
	}

	store.RemoveWhitelist("g1", "u1")
	if store.For("g1").IsWhitelisted("u1") {
		t.Fatal("u1 still whitelisted after remove")
	}
}

func TestEnableVerification(t *testing.T) {
	base := DefaultPolicy()
	base.VerificationEnabled = false
	store := NewStore(base, nil)

	store.EnableVerification("g1")
	if !store.For("g1").VerificationEnabled {
		t.Fatal("verification not enabled for g1")
	}
	if store.For("g2").VerificationEnabled {
		t.Fatal("verification flip bled to other guilds")
	}
}
