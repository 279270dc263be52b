package ai

import (
	"github.com/google/uuid"

	"github.com/tessera-gg/server/internal/rules"
)

// abilityRule scores one named ability variant in context. Rules must be
// deterministic so the lookahead can treat the evaluator as static.
type abilityRule func(s *rules.MatchState, card rules.Card, pos rules.Position, actingPlayer uuid.UUID) float64

// namedRules is the table of variant-specific scorers. A named rule
// strictly overrides the category fallback; the two are never additive.
var namedRules = map[rules.Ability]abilityRule{
	rules.AbilityRally:  scoreRally,
	rules.AbilityBreach: scoreBreach,
	rules.AbilityWard:   scoreWard,
}

// categoryBase is the fallback base value per coarse ability class.
var categoryBase = map[rules.AbilityCategory]float64{
	rules.CategoryBuff:      1.5,
	rules.CategoryDebuff:    1.5,
	rules.CategoryDraw:      2.0,
	rules.CategoryFlipEnemy: 2.5,
	rules.CategoryProtect:   1.5,
}

// ScoreAbility values the card's ability at the given position. Named
// rules are consulted first; anything without one falls back to its
// category base scaled by the count of qualifying targets.
func ScoreAbility(s *rules.MatchState, card rules.Card, pos rules.Position, actingPlayer uuid.UUID) float64 {
	if card.Ability == rules.AbilityNone {
		return 0
	}
	if rule, ok := namedRules[card.Ability]; ok {
		return rule(s, card, pos, actingPlayer)
	}
	base, ok := categoryBase[card.Ability.Category()]
	if !ok {
		return 0
	}
	return base * float64(qualifyingTargets(s, card, pos, actingPlayer))
}

// scoreRally scales with allied cards in the placed row and column, the
// exact set the buff reaches.
func scoreRally(s *rules.MatchState, _ rules.Card, pos rules.Position, actingPlayer uuid.UUID) float64 {
	allies := 0
	for r := 0; r < rules.BoardSize; r++ {
		for c := 0; c < rules.BoardSize; c++ {
			if r != pos.Row && c != pos.Col {
				continue
			}
			if r == pos.Row && c == pos.Col {
				continue
			}
			cell := &s.Board[r][c]
			if cell.Occupied() && cell.Owner == actingPlayer {
				allies++
			}
		}
	}
	return 1.2 * float64(allies)
}

// scoreBreach values the guaranteed flip by the power of the strongest
// adjacent enemy it would take; zero when no target exists.
func scoreBreach(s *rules.MatchState, card rules.Card, pos rules.Position, actingPlayer uuid.UUID) float64 {
	best := 0
	for _, adj := range pos.Adjacent() {
		cell := &s.Board[adj.Row][adj.Col]
		if !cell.Occupied() || cell.Owner == actingPlayer || cell.Warded {
			continue
		}
		// Only out-of-reach enemies make the breach worth anything; weaker
		// neighbours flip anyway.
		if p := cell.EffectivePower(); p >= card.Power && p > best {
			best = p
		}
	}
	return 0.8 * float64(best)
}

// scoreWard values protection by the placed card's own power and the
// number of enemies already in reach of the cell.
func scoreWard(s *rules.MatchState, card rules.Card, pos rules.Position, actingPlayer uuid.UUID) float64 {
	threats := 0
	for _, adj := range pos.Adjacent() {
		cell := &s.Board[adj.Row][adj.Col]
		if cell.Occupied() && cell.Owner != actingPlayer {
			threats++
		}
	}
	return 0.5*float64(card.Power) + 0.8*float64(threats)
}

// qualifyingTargets counts the pieces the fallback assumes an ability of
// the given category can touch from the placed position.
func qualifyingTargets(s *rules.MatchState, card rules.Card, pos rules.Position, actingPlayer uuid.UUID) int {
	switch card.Ability.Category() {
	case rules.CategoryBuff:
		n := 0
		for _, adj := range pos.Adjacent() {
			cell := &s.Board[adj.Row][adj.Col]
			if cell.Occupied() && cell.Owner == actingPlayer {
				n++
			}
		}
		return n
	case rules.CategoryDebuff, rules.CategoryFlipEnemy:
		n := 0
		for _, adj := range pos.Adjacent() {
			cell := &s.Board[adj.Row][adj.Col]
			if cell.Occupied() && cell.Owner != actingPlayer {
				n++
			}
		}
		return n
	case rules.CategoryDraw:
		if len(s.Decks[actingPlayer]) > 0 {
			return 1
		}
		return 0
	case rules.CategoryProtect:
		return 1
	default:
		return 0
	}
}
