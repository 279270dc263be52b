package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tessera-gg/server/internal/rules"
)

func TestScoreAbilityNoneIsZero(t *testing.T) {
	s, a, _ := boardWith(t, nil, nil)
	got := ScoreAbility(s, testCard(5, rules.AbilityNone), rules.Position{Row: 1, Col: 1}, a)
	assert.Zero(t, got)
}

func TestNamedRallyRuleScalesWithRowColumnAllies(t *testing.T) {
	rally := testCard(4, rules.AbilityRally)
	s, a, _ := boardWith(t, []rules.Card{rally}, map[rules.Position]struct {
		card  rules.Card
		owner int
	}{
		{Row: 0, Col: 0}: {testCard(3, rules.AbilityNone), 0}, // same row as {0,2}
		{Row: 2, Col: 2}: {testCard(3, rules.AbilityNone), 0}, // same column as {0,2}
		{Row: 1, Col: 1}: {testCard(3, rules.AbilityNone), 0}, // off row and column
		{Row: 2, Col: 0}: {testCard(3, rules.AbilityNone), 1}, // enemy, never counts
	})

	got := ScoreAbility(s, rally, rules.Position{Row: 0, Col: 2}, a)
	assert.InDelta(t, 2*1.2, got, 1e-9)
}

func TestNamedRuleOverridesFallback(t *testing.T) {
	// Breach has a named rule. With no qualifying out-of-reach enemy the
	// named rule scores zero even though the fallback category
	// (flip-enemy) would have scored the adjacent weak enemy.
	breach := testCard(9, rules.AbilityBreach)
	s, a, _ := boardWith(t, []rules.Card{breach}, map[rules.Position]struct {
		card  rules.Card
		owner int
	}{
		{Row: 0, Col: 1}: {testCard(2, rules.AbilityNone), 1},
	})

	assert.Zero(t, ScoreAbility(s, breach, rules.Position{Row: 0, Col: 0}, a))
}

func TestBreachValuesStrongestOutOfReachEnemy(t *testing.T) {
	breach := testCard(3, rules.AbilityBreach)
	s, a, _ := boardWith(t, []rules.Card{breach}, map[rules.Position]struct {
		card  rules.Card
		owner int
	}{
		{Row: 0, Col: 1}: {testCard(8, rules.AbilityNone), 1},
		{Row: 1, Col: 0}: {testCard(5, rules.AbilityNone), 1},
	})

	got := ScoreAbility(s, breach, rules.Position{Row: 0, Col: 0}, a)
	assert.InDelta(t, 0.8*8, got, 1e-9)
}

func TestFallbackScalesWithQualifyingTargets(t *testing.T) {
	// Venom and Scribe have no named rule; they go through the category
	// fallback.
	venom := testCard(5, rules.AbilityVenom)
	s, a, _ := boardWith(t, []rules.Card{venom}, map[rules.Position]struct {
		card  rules.Card
		owner int
	}{
		{Row: 0, Col: 1}: {testCard(4, rules.AbilityNone), 1},
		{Row: 1, Col: 0}: {testCard(4, rules.AbilityNone), 1},
		{Row: 1, Col: 2}: {testCard(4, rules.AbilityNone), 0},
	})

	got := ScoreAbility(s, venom, rules.Position{Row: 1, Col: 1}, a)
	assert.InDelta(t, 1.5*2, got, 1e-9, "two adjacent enemies qualify")

	scribe := testCard(5, rules.AbilityScribe)
	assert.Zero(t, ScoreAbility(s, scribe, rules.Position{Row: 2, Col: 2}, a), "empty deck, nothing to draw")

	s.Decks[a] = []rules.Card{testCard(1, rules.AbilityNone)}
	assert.InDelta(t, 2.0, ScoreAbility(s, scribe, rules.Position{Row: 2, Col: 2}, a), 1e-9)
}

func TestScoreAbilityDeterministic(t *testing.T) {
	ward := testCard(6, rules.AbilityWard)
	s, a, _ := boardWith(t, []rules.Card{ward}, map[rules.Position]struct {
		card  rules.Card
		owner int
	}{
		{Row: 1, Col: 0}: {testCard(7, rules.AbilityNone), 1},
	})
	first := ScoreAbility(s, ward, rules.Position{Row: 1, Col: 1}, a)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ScoreAbility(s, ward, rules.Position{Row: 1, Col: 1}, a))
	}
}
