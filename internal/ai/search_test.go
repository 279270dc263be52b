package ai

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-gg/server/internal/rules"
)

// flakySimulator fails ApplyMove for a chosen card instance.
type flakySimulator struct {
	EngineSimulator
	failCard uuid.UUID
}

func (f flakySimulator) ApplyMove(s *rules.MatchState, playerID, cardID uuid.UUID, pos rules.Position) (*rules.MatchState, []rules.Event, error) {
	if cardID == f.failCard {
		return nil, nil, errors.New("simulated engine failure")
	}
	return f.EngineSimulator.ApplyMove(s, playerID, cardID, pos)
}

func searchFixture(t *testing.T) (*rules.MatchState, uuid.UUID, []ScoredCandidate, Weights) {
	t.Helper()
	handA := []rules.Card{testCard(6, rules.AbilityNone), testCard(4, rules.AbilityNone)}
	handB := []rules.Card{testCard(9, rules.AbilityNone), testCard(7, rules.AbilityNone)}
	a, b := uuid.New(), uuid.New()
	s := rules.NewMatch(uuid.New(), [2]uuid.UUID{a, b},
		map[uuid.UUID][]rules.Card{a: handA, b: handB}, nil)

	w := DefaultProfiles()[TierMedium].Weights
	moves := rules.LegalMoves(s, a)
	require.NotEmpty(t, moves)
	scored := make([]ScoredCandidate, 0, len(moves))
	for _, mv := range moves {
		scored = append(scored, Evaluate(s, mv, a, w))
	}
	return s, a, scored, w
}

func TestSearchBestPenalizesRefutedMoves(t *testing.T) {
	s, a, scored, w := searchFixture(t)

	deadline := time.Now().Add(2 * time.Second)
	refined := SearchBest(EngineSimulator{}, s, a, scored, 1, deadline, w, nil)
	require.NotEmpty(t, refined)

	// Every opponent hand card outpowers ours, so each refined score must
	// fall below its static counterpart.
	staticByMove := map[rules.Move]float64{}
	for _, sc := range scored {
		staticByMove[sc.Move] = sc.Score
	}
	for _, sc := range refined {
		assert.Less(t, sc.Score, staticByMove[sc.Move])
	}

	// Output stays sorted best-first.
	for i := 1; i < len(refined); i++ {
		assert.GreaterOrEqual(t, refined[i-1].Score, refined[i].Score)
	}
}

func TestSearchBestExpiredDeadlineKeepsStaticScores(t *testing.T) {
	s, a, scored, w := searchFixture(t)

	refined := SearchBest(EngineSimulator{}, s, a, scored, 2, time.Now().Add(-time.Second), w, nil)
	require.NotEmpty(t, refined, "deadline expiry degrades, never errors")

	staticByMove := map[rules.Move]float64{}
	for _, sc := range scored {
		staticByMove[sc.Move] = sc.Score
	}
	for _, sc := range refined {
		assert.Equal(t, staticByMove[sc.Move], sc.Score)
	}
}

func TestSearchBestSkipsFailingCandidateOnly(t *testing.T) {
	s, a, scored, w := searchFixture(t)
	failing := s.Hands[a][0].InstanceID

	refined := SearchBest(flakySimulator{failCard: failing}, s, a, scored, 1, time.Now().Add(2*time.Second), w, nil)
	require.NotEmpty(t, refined)
	for _, sc := range refined {
		assert.NotEqual(t, failing, sc.Move.CardID, "failed simulations drop that candidate only")
	}
}

func TestSearchBestDepthZeroIsIdentity(t *testing.T) {
	s, a, scored, w := searchFixture(t)
	refined := SearchBest(EngineSimulator{}, s, a, scored, 0, time.Now().Add(time.Second), w, nil)
	assert.Equal(t, scored, refined)
}

func TestSearchBestCapsPool(t *testing.T) {
	s, a, scored, w := searchFixture(t)
	require.Greater(t, len(scored), LookaheadPool)
	refined := SearchBest(EngineSimulator{}, s, a, scored, 1, time.Now().Add(2*time.Second), w, nil)
	assert.LessOrEqual(t, len(refined), LookaheadPool)
}
