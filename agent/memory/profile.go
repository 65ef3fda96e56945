// Package memory manages the long-term per-customer preference profile:
// load at session start, idempotent merge at turn end.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/soundvault/support-agent/agent/contract"
	statex "github.com/soundvault/support-agent/agent/state"
)

// Manager implements contract.MemoryStore over the namespaced KV.
// Records live under (memory_profile, customer id) and are never
// expired.
type Manager struct {
	kv statex.KV
}

func NewManager(kv statex.KV) *Manager {
	return &Manager{kv: kv}
}

var _ contractx.MemoryStore = (*Manager)(nil)

func memoryKey(customerID int64) string {
	return strconv.FormatInt(customerID, 10)
}

// Load returns the stored profile, or a zero value when none exists.
// A missing profile is normal for first-time customers and never fails
// the turn.
func (m *Manager) Load(ctx context.Context, customerID int64) (contractx.UserMemory, error) {
	if customerID <= 0 {
		return contractx.UserMemory{}, fmt.Errorf("%w: customer id must be positive", contractx.ErrValidation)
	}

	payload, err := m.kv.Get(ctx, statex.NamespaceMemory, memoryKey(customerID))
	if err != nil {
		if errors.Is(err, statex.ErrKeyNotFound) {
			return contractx.UserMemory{}, nil
		}
		return contractx.UserMemory{}, err
	}

	var profile contractx.UserMemory
	if err := json.Unmarshal(payload, &profile); err != nil {
		// A corrupt profile degrades personalization, not the turn.
		log.Warn().Err(err).Int64("customer_id", customerID).Msg("memory profile is unreadable, starting fresh")
		return contractx.UserMemory{}, nil
	}
	return profile, nil
}

// Merge applies an extracted delta with read-modify-write semantics:
// preference sets are unioned, scalars follow last-non-null-wins, and
// the result commits as a single Put. Applying the same delta twice
// yields the same record, so crash-retry re-application is safe.
func (m *Manager) Merge(ctx context.Context, customerID int64, delta contractx.MemoryDelta) error {
	if customerID <= 0 {
		return fmt.Errorf("%w: customer id must be positive", contractx.ErrValidation)
	}
	if delta.IsZero() {
		return nil
	}

	current, err := m.Load(ctx, customerID)
	if err != nil {
		return err
	}

	merged := Apply(current, delta)
	payload, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal memory profile: %w", err)
	}
	return m.kv.Put(ctx, statex.NamespaceMemory, memoryKey(customerID), payload)
}

// Apply folds a delta into a profile. Set fields union and are kept
// sorted so the merge is commutative and idempotent; scalar fields take
// the delta's value when it is non-null.
func Apply(profile contractx.UserMemory, delta contractx.MemoryDelta) contractx.UserMemory {
	merged := contractx.UserMemory{
		MusicPreferences:  unionPreferences(profile.MusicPreferences, delta.MusicPreferences),
		PreferredLocation: profile.PreferredLocation,
		MaxConcertBudget:  profile.MaxConcertBudget,
	}

	if loc := strings.TrimSpace(delta.PreferredLocation); loc != "" {
		merged.PreferredLocation = loc
	}
	if delta.MaxConcertBudget != nil {
		budget := *delta.MaxConcertBudget
		merged.MaxConcertBudget = &budget
	}
	return merged
}

func unionPreferences(a, b []string) []string {
	seen := make(map[string]string, len(a)+len(b))
	for _, raw := range append(append([]string(nil), a...), b...) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		seen[strings.ToLower(trimmed)] = trimmed
	}
	if len(seen) == 0 {
		return nil
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, seen[k])
	}
	return out
}

// Format renders the profile for injection into a system prompt.
// Returns "" when the profile is empty.
func Format(profile contractx.UserMemory) string {
	parts := make([]string, 0, 3)
	if len(profile.MusicPreferences) > 0 {
		parts = append(parts, "Music Preferences: "+strings.Join(profile.MusicPreferences, ", "))
	}
	if profile.PreferredLocation != "" {
		parts = append(parts, "Preferred Location: "+profile.PreferredLocation)
	}
	if profile.MaxConcertBudget != nil {
		parts = append(parts, fmt.Sprintf("Max Concert Budget: $%.0f", *profile.MaxConcertBudget))
	}
	return strings.Join(parts, "\n")
}
