package ai

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-gg/server/internal/rules"
)

func testCard(power int, ability rules.Ability) rules.Card {
	return rules.Card{InstanceID: uuid.New(), Name: "t", Power: power, Ability: ability}
}

// boardWith places cards directly for scenario setup, bypassing turn order.
func boardWith(t *testing.T, handA []rules.Card, placements map[rules.Position]struct {
	card  rules.Card
	owner int
}) (*rules.MatchState, uuid.UUID, uuid.UUID) {
	t.Helper()
	a, b := uuid.New(), uuid.New()
	s := rules.NewMatch(uuid.New(), [2]uuid.UUID{a, b}, map[uuid.UUID][]rules.Card{a: handA}, nil)
	owners := [2]uuid.UUID{a, b}
	for pos, pl := range placements {
		c := pl.card
		s.Board[pos.Row][pos.Col].Card = &c
		s.Board[pos.Row][pos.Col].Owner = owners[pl.owner]
	}
	return s, a, b
}

func TestEvaluateCountsFlips(t *testing.T) {
	attacker := testCard(7, rules.AbilityNone)
	s, a, _ := boardWith(t, []rules.Card{attacker}, map[rules.Position]struct {
		card  rules.Card
		owner int
	}{
		{Row: 0, Col: 1}: {testCard(3, rules.AbilityNone), 1},
		{Row: 1, Col: 0}: {testCard(5, rules.AbilityNone), 1},
		{Row: 1, Col: 1}: {testCard(9, rules.AbilityNone), 1},
	})

	sc := Evaluate(s, rules.Move{CardID: attacker.InstanceID, Pos: rules.Position{Row: 0, Col: 0}}, a, DefaultProfiles()[TierMedium].Weights)
	assert.InDelta(t, 2*flipBonus, sc.Breakdown.Flips, 1e-9, "two of three neighbours are weaker")
	assert.Greater(t, sc.Score, 0.0)
}

func TestEvaluateIsPureAndDeterministic(t *testing.T) {
	attacker := testCard(6, rules.AbilityRally)
	s, a, _ := boardWith(t, []rules.Card{attacker}, map[rules.Position]struct {
		card  rules.Card
		owner int
	}{
		{Row: 2, Col: 0}: {testCard(4, rules.AbilityNone), 0},
		{Row: 0, Col: 2}: {testCard(8, rules.AbilityNone), 1},
	})
	mv := rules.Move{CardID: attacker.InstanceID, Pos: rules.Position{Row: 2, Col: 2}}
	w := DefaultProfiles()[TierHard].Weights

	first := Evaluate(s, mv, a, w)
	clone := s.Clone()
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Evaluate(s, mv, a, w))
	}
	assert.Equal(t, clone, s, "evaluation must not mutate state")
}

func TestWeightsChangePlayStyle(t *testing.T) {
	// A flip-heavy move and a position-heavy move; opposite weightings
	// must rank them oppositely.
	flipper := testCard(8, rules.AbilityNone)
	s, a, _ := boardWith(t, []rules.Card{flipper}, map[rules.Position]struct {
		card  rules.Card
		owner int
	}{
		{Row: 1, Col: 1}: {testCard(2, rules.AbilityNone), 1},
	})

	aggressive := Weights{Flip: 5.0, Power: 0.1}
	territorial := Weights{Position: 5.0, Power: 0.1}

	nextToEnemy := rules.Move{CardID: flipper.InstanceID, Pos: rules.Position{Row: 0, Col: 1}} // edge, flips
	corner := rules.Move{CardID: flipper.InstanceID, Pos: rules.Position{Row: 0, Col: 0}}      // corner, no flip

	assert.Greater(t,
		Evaluate(s, nextToEnemy, a, aggressive).Score,
		Evaluate(s, corner, a, aggressive).Score)
	assert.Greater(t,
		Evaluate(s, corner, a, territorial).Score,
		Evaluate(s, nextToEnemy, a, territorial).Score)
}

func TestVenomExtendsFlipReach(t *testing.T) {
	// Power 5 vs adjacent power 5: no flip normally, venom's -1 makes it one.
	plain := testCard(5, rules.AbilityNone)
	venom := testCard(5, rules.AbilityVenom)
	s, a, _ := boardWith(t, []rules.Card{plain, venom}, map[rules.Position]struct {
		card  rules.Card
		owner int
	}{
		{Row: 1, Col: 1}: {testCard(5, rules.AbilityNone), 1},
	})

	w := Weights{Flip: 1.0}
	mvPlain := Evaluate(s, rules.Move{CardID: plain.InstanceID, Pos: rules.Position{Row: 0, Col: 1}}, a, w)
	mvVenom := Evaluate(s, rules.Move{CardID: venom.InstanceID, Pos: rules.Position{Row: 0, Col: 1}}, a, w)
	assert.Zero(t, mvPlain.Breakdown.Flips)
	assert.InDelta(t, flipBonus, mvVenom.Breakdown.Flips, 1e-9)
}

func TestVenomRespectsEffectivePowerFloor(t *testing.T) {
	// A defender at effective power 1 cannot be debuffed below 1, so a
	// power-1 venom card flips nothing. The engine applies the same
	// floor, and the heuristic must not predict a flip it won't make.
	venom := testCard(1, rules.AbilityVenom)
	s, a, _ := boardWith(t, []rules.Card{venom}, map[rules.Position]struct {
		card  rules.Card
		owner int
	}{
		{Row: 1, Col: 1}: {testCard(1, rules.AbilityNone), 1},
	})

	mv := Evaluate(s, rules.Move{CardID: venom.InstanceID, Pos: rules.Position{Row: 0, Col: 1}}, a, Weights{Flip: 1.0})
	assert.Zero(t, mv.Breakdown.Flips)

	next, events, err := rules.ApplyMove(s, a, venom.InstanceID, rules.Position{Row: 0, Col: 1})
	require.NoError(t, err)
	for _, ev := range events {
		assert.NotEqual(t, rules.EventCardsFlipped, ev.Type)
	}
	assert.Equal(t, a, next.Board[0][1].Owner)
}

func TestDefensiveValueRewardsAbilityAllies(t *testing.T) {
	mover := testCard(3, rules.AbilityNone)
	s, a, _ := boardWith(t, []rules.Card{mover}, map[rules.Position]struct {
		card  rules.Card
		owner int
	}{
		{Row: 1, Col: 1}: {testCard(6, rules.AbilityScribe), 0},
	})

	adjacent := Evaluate(s, rules.Move{CardID: mover.InstanceID, Pos: rules.Position{Row: 0, Col: 1}}, a, Weights{Defense: 1})
	far := Evaluate(s, rules.Move{CardID: mover.InstanceID, Pos: rules.Position{Row: 2, Col: 2}}, a, Weights{Defense: 1})
	assert.Greater(t, adjacent.Breakdown.Defense, far.Breakdown.Defense)
	require.Zero(t, far.Breakdown.Defense)
}
