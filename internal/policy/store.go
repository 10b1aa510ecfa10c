package policy

import "sync"

// Store resolves effective guild policies. Lookups return value copies, so a
// snapshot stays stable for the duration of an event even if the store is
// updated concurrently.
type Store struct {
	mu        sync.RWMutex
	base      Policy
	overrides map[string]Policy
}

// NewStore creates a store over the given default policy and per-guild
// overrides. Zero-valued override fields inherit the default.
func NewStore(base Policy, overrides map[string]Policy) *Store {
	merged := make(map[string]Policy, len(overrides))
	for guildID, override := range overrides {
		merged[guildID] = merge(base, override)
	}
	return &Store{base: base, overrides: merged}
}

// For returns the effective policy for guildID.
func (s *Store) For(guildID string) Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.overrides[guildID]; ok {
		return p
	}
	return s.base
}

// Set replaces the override for guildID.
func (s *Store) Set(guildID string, override Policy) {
	s.mu.Lock()
	s.overrides[guildID] = merge(s.base, override)
	s.mu.Unlock()
}

// AddWhitelist exempts userID from detection in guildID.
func (s *Store) AddWhitelist(guildID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.overrides[guildID]
	if !ok {
		p = s.base
	}
	if p.IsWhitelisted(userID) {
		return
	}
	p.WhitelistedUsers = append(append([]string(nil), p.WhitelistedUsers...), userID)
	s.overrides[guildID] = p
}

// RemoveWhitelist revokes a whitelist entry for userID in guildID.
func (s *Store) RemoveWhitelist(guildID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.overrides[guildID]
	if !ok {
		return
	}
	kept := make([]string, 0, len(p.WhitelistedUsers))
	for _, id := range p.WhitelistedUsers {
		if id != userID {
			kept = append(kept, id)
		}
	}
	p.WhitelistedUsers = kept
	s.overrides[guildID] = p
}

// EnableVerification flips verification on for guildID, used when a raid
// lockdown engages.
func (s *Store) EnableVerification(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.overrides[guildID]
	if !ok {
		p = s.base
	}
	p.VerificationEnabled = true
	s.overrides[guildID] = p
}
