package ai

import (
	"github.com/google/uuid"

	"github.com/tessera-gg/server/internal/rules"
)

// Breakdown records the unweighted value of each evaluation dimension.
// Kept on the candidate for logging and tuning sessions.
type Breakdown struct {
	Flips    float64 `json:"flips"`
	Power    float64 `json:"power"`
	Position float64 `json:"position"`
	Defense  float64 `json:"defense"`
	Offense  float64 `json:"offense"`
	Ability  float64 `json:"ability"`
}

// ScoredCandidate pairs a candidate move with its weighted score. The
// value lives for one decision cycle only.
type ScoredCandidate struct {
	Move      rules.Move
	Score     float64
	Breakdown Breakdown
}

const flipBonus = 3.0

// Evaluate statically scores one legal (card, position) candidate for
// the acting player. The move is assumed legal; passing an illegal one
// is a caller bug. Pure: no mutation, no randomness, no clock reads.
func Evaluate(s *rules.MatchState, move rules.Move, actingPlayer uuid.UUID, w Weights) ScoredCandidate {
	handIdx := s.HandCard(actingPlayer, move.CardID)
	card := s.Hands[actingPlayer][handIdx]

	bd := Breakdown{
		Flips:    float64(prospectiveFlips(s, card, move.Pos, actingPlayer)) * flipBonus,
		Power:    float64(card.Power),
		Position: positionalValue(s, move.Pos, actingPlayer),
		Defense:  defensiveValue(s, move.Pos, actingPlayer),
		Offense:  offensiveValue(s, card, move.Pos, actingPlayer),
		Ability:  ScoreAbility(s, card, move.Pos, actingPlayer),
	}

	score := bd.Flips*w.Flip +
		bd.Power*w.Power +
		bd.Position*w.Position +
		bd.Defense*w.Defense +
		bd.Offense*w.Offense +
		bd.Ability*w.Ability

	return ScoredCandidate{Move: move, Score: score, Breakdown: bd}
}

// prospectiveFlips counts the enemy cells this placement would flip,
// mirroring the engine's flip rule including the Venom pre-debuff and
// the Breach bonus flip.
func prospectiveFlips(s *rules.MatchState, card rules.Card, pos rules.Position, actingPlayer uuid.UUID) int {
	attack := card.Power
	debuff := 0
	if card.Ability == rules.AbilityVenom {
		debuff = 1
	}

	flips := 0
	strongestUnflipped := -1
	for _, adj := range pos.Adjacent() {
		cell := &s.Board[adj.Row][adj.Col]
		if !cell.Occupied() || cell.Owner == actingPlayer || cell.Warded {
			continue
		}
		defense := cell.EffectivePower() - debuff
		if defense < 1 {
			defense = 1 // effective power never drops below 1
		}
		if defense < attack {
			flips++
		} else if p := cell.EffectivePower(); p > strongestUnflipped {
			strongestUnflipped = p
		}
	}
	if card.Ability == rules.AbilityBreach && strongestUnflipped >= 0 {
		flips++
	}
	return flips
}

// positionalValue prefers corners, then center, then edges, scaled up
// when enemy cards already sit next to the cell (contested ground).
func positionalValue(s *rules.MatchState, pos rules.Position, actingPlayer uuid.UUID) float64 {
	var base float64
	switch {
	case pos.IsCorner():
		base = 2.0
	case pos.IsCenter():
		base = 1.5
	default:
		base = 1.0
	}
	enemyAdj := 0
	for _, adj := range pos.Adjacent() {
		cell := &s.Board[adj.Row][adj.Col]
		if cell.Occupied() && cell.Owner != actingPlayer {
			enemyAdj++
		}
	}
	return base * (1 + 0.5*float64(enemyAdj))
}

// defensiveValue rewards placing next to valuable or ability-bearing
// allies, shielding them from future flips.
func defensiveValue(s *rules.MatchState, pos rules.Position, actingPlayer uuid.UUID) float64 {
	v := 0.0
	for _, adj := range pos.Adjacent() {
		cell := &s.Board[adj.Row][adj.Col]
		if !cell.Occupied() || cell.Owner != actingPlayer {
			continue
		}
		v += float64(cell.EffectivePower()) * 0.3
		if cell.Card.Ability != rules.AbilityNone {
			v += 1.0
		}
	}
	return v
}

// offensiveValue rewards pressure: adjacency to enemy cells the placed
// card outpowers keeps threatening them even when no flip lands now.
func offensiveValue(s *rules.MatchState, card rules.Card, pos rules.Position, actingPlayer uuid.UUID) float64 {
	v := 0.0
	for _, adj := range pos.Adjacent() {
		cell := &s.Board[adj.Row][adj.Col]
		if !cell.Occupied() || cell.Owner == actingPlayer {
			continue
		}
		if diff := card.Power - cell.EffectivePower(); diff > 0 {
			v += float64(diff) * 0.5
		}
	}
	return v
}
