package ai

import (
	"math/rand"
	"sort"

	"github.com/tessera-gg/server/internal/rules"
)

// SelectMove picks the final move from the scored candidates. The pool
// is the top-K by score; the single best candidate is chosen with
// probability 1-randomness, otherwise the pick is uniform over the pool.
// The hardest tier (K=1, randomness 0) is therefore fully deterministic.
// ok is false when no candidate exists, signalling an automatic pass.
func SelectMove(candidates []ScoredCandidate, p Profile, rng *rand.Rand) (rules.Move, bool) {
	if len(candidates) == 0 {
		return rules.Move{}, false
	}

	sorted := append([]ScoredCandidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	k := p.TopK
	if k < 1 {
		k = 1
	}
	if k > len(sorted) {
		k = len(sorted)
	}
	if k == 1 {
		return sorted[0].Move, true
	}

	if rng.Float64() >= p.Randomness {
		return sorted[0].Move, true
	}
	return sorted[rng.Intn(k)].Move, true
}
