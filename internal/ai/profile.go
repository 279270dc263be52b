// Package ai selects moves for the artificial opponent. The pipeline is
// enumerate → statically score → optional bounded lookahead → randomized
// pick from the top of the pool, all inside a wall-clock budget. Scoring
// is deterministic; only the final pick consumes randomness.
package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Tier names a difficulty profile.
type Tier string

const (
	TierEasy   Tier = "easy"
	TierMedium Tier = "medium"
	TierHard   Tier = "hard"
)

// MaxCandidates caps how many enumerated legal moves enter static
// scoring. Boards stay small but Scribe chains can inflate hands; the
// cap keeps the worst case inside the time budget.
const MaxCandidates = 24

// LookaheadPool caps how many statically top-ranked candidates are
// expanded by the search.
const LookaheadPool = 10

// Weights scales each evaluation dimension. Changing weights changes
// play style, not just selection noise.
type Weights struct {
	Flip     float64 `json:"flip"`
	Power    float64 `json:"power"`
	Position float64 `json:"position"`
	Defense  float64 `json:"defense"`
	Offense  float64 `json:"offense"`
	Ability  float64 `json:"ability"`
}

// Profile is the full tunable surface of one difficulty tier. Profiles
// are immutable after load and shared read-only across matches.
type Profile struct {
	Tier       Tier    `json:"tier"`
	Weights    Weights `json:"weights"`
	Depth      int     `json:"depth"`      // lookahead plies, 0..2
	BudgetMS   int     `json:"budgetMs"`   // wall-clock decision budget
	TopK       int     `json:"topK"`       // selection pool size
	Randomness float64 `json:"randomness"` // 0 = always best, 1 = uniform over pool
}

// Budget returns the profile's decision budget as a duration.
func (p Profile) Budget() time.Duration {
	return time.Duration(p.BudgetMS) * time.Millisecond
}

// DefaultProfiles are the compiled-in tiers, used when no external file
// overrides them.
func DefaultProfiles() map[Tier]Profile {
	return map[Tier]Profile{
		TierEasy: {
			Tier:       TierEasy,
			Weights:    Weights{Flip: 1.0, Power: 0.8, Position: 0.5, Defense: 0.2, Offense: 0.3, Ability: 0.4},
			Depth:      0,
			BudgetMS:   1000,
			TopK:       4,
			Randomness: 0.75,
		},
		TierMedium: {
			Tier:       TierMedium,
			Weights:    Weights{Flip: 1.0, Power: 0.6, Position: 0.8, Defense: 0.6, Offense: 0.7, Ability: 0.8},
			Depth:      1,
			BudgetMS:   2000,
			TopK:       2,
			Randomness: 0.35,
		},
		TierHard: {
			Tier:       TierHard,
			Weights:    Weights{Flip: 1.2, Power: 0.5, Position: 1.0, Defense: 0.8, Offense: 0.9, Ability: 1.0},
			Depth:      2,
			BudgetMS:   3000,
			TopK:       1,
			Randomness: 0,
		},
	}
}

// LoadProfiles reads tier profiles from a JSON file and merges them over
// the defaults, so a partial file only overrides the tiers it names.
func LoadProfiles(path string) (map[Tier]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read difficulty profiles: %w", err)
	}
	var loaded map[Tier]Profile
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("unmarshal difficulty profiles: %w", err)
	}
	profiles := DefaultProfiles()
	for tier, p := range loaded {
		p.Tier = tier
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("profile %q: %w", tier, err)
		}
		profiles[tier] = p
	}
	return profiles, nil
}

func validateProfile(p Profile) error {
	if p.Depth < 0 || p.Depth > 2 {
		return fmt.Errorf("depth %d out of range [0,2]", p.Depth)
	}
	if p.TopK < 1 {
		return fmt.Errorf("topK %d must be >= 1", p.TopK)
	}
	if p.BudgetMS <= 0 {
		return fmt.Errorf("budgetMs %d must be positive", p.BudgetMS)
	}
	if p.Randomness < 0 || p.Randomness > 1 {
		return fmt.Errorf("randomness %v out of range [0,1]", p.Randomness)
	}
	return nil
}
