package ai

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tessera-gg/server/internal/rules"
)

// Simulator is the slice of the rules engine the search consumes.
type Simulator interface {
	ApplyMove(s *rules.MatchState, playerID, cardID uuid.UUID, pos rules.Position) (*rules.MatchState, []rules.Event, error)
	LegalMoves(s *rules.MatchState, playerID uuid.UUID) []rules.Move
}

// EngineSimulator adapts the rules package functions to Simulator.
type EngineSimulator struct{}

func (EngineSimulator) ApplyMove(s *rules.MatchState, playerID, cardID uuid.UUID, pos rules.Position) (*rules.MatchState, []rules.Event, error) {
	return rules.ApplyMove(s, playerID, cardID, pos)
}

func (EngineSimulator) LegalMoves(s *rules.MatchState, playerID uuid.UUID) []rules.Move {
	return rules.LegalMoves(s, playerID)
}

// replyPenalty discounts the opponent's best answer when folding it back
// into a candidate's score (and, one ply deeper, our own answer to that).
const replyPenalty = 0.6

// SearchBest refines the statically scored candidates with a bounded
// adversarial lookahead. For each of the top-N candidates the move is
// simulated, the opponent's best reply is found with the same evaluator
// from their perspective, and the reply is folded back as a penalty;
// depth 2 recurses once more from our side. The deadline is advisory:
// it is checked between candidate expansions and on expiry the best
// results found so far are returned rather than an error. A simulation
// failure skips that candidate only.
func SearchBest(sim Simulator, s *rules.MatchState, actingPlayer uuid.UUID, candidates []ScoredCandidate, depth int, deadline time.Time, w Weights, log logrus.FieldLogger) []ScoredCandidate {
	if depth <= 0 || len(candidates) == 0 {
		return candidates
	}

	sorted := append([]ScoredCandidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	pool := sorted
	if len(pool) > LookaheadPool {
		pool = pool[:LookaheadPool]
	}

	opponent := s.Opponent(actingPlayer)
	alpha := negInf
	out := make([]ScoredCandidate, 0, len(pool))
	expanded := 0

	for i := range pool {
		if time.Now().After(deadline) {
			if log != nil {
				log.WithFields(logrus.Fields{
					"expanded": expanded,
					"pool":     len(pool),
				}).Debug("lookahead deadline reached, returning best so far")
			}
			// Remaining candidates keep their static scores.
			out = append(out, pool[i:]...)
			break
		}

		cand := pool[i]
		simState, _, err := sim.ApplyMove(s, actingPlayer, cand.Move.CardID, cand.Move.Pos)
		if err != nil {
			if log != nil {
				log.WithError(err).WithField("card", cand.Move.CardID).Warn("lookahead simulation failed, skipping candidate")
			}
			continue
		}
		expanded++

		adjusted := cand.Score
		if simState.Status == rules.StatusActive {
			reply, ok := bestReply(sim, simState, opponent, actingPlayer, depth-1, deadline, w, alpha, cand.Score)
			if ok {
				adjusted = cand.Score - replyPenalty*reply
			}
		}

		cand.Score = adjusted
		out = append(out, cand)
		if adjusted > alpha {
			alpha = adjusted
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

const negInf = -1e18

// bestReply returns the opponent's strongest answer on the simulated
// state. The scan carries an alpha cut: the reply value only grows while
// scanning, so once the owning candidate can no longer beat the best
// known alternative the remaining replies are pruned.
func bestReply(sim Simulator, s *rules.MatchState, mover, previousMover uuid.UUID, depthRemaining int, deadline time.Time, w Weights, alpha, ownerScore float64) (float64, bool) {
	moves := sim.LegalMoves(s, mover)
	if len(moves) == 0 {
		return 0, false
	}
	if len(moves) > MaxCandidates {
		moves = moves[:MaxCandidates]
	}

	best := negInf
	for _, mv := range moves {
		sc := Evaluate(s, mv, mover, w)
		value := sc.Score

		if depthRemaining > 0 && !time.Now().After(deadline) {
			if replyState, _, err := sim.ApplyMove(s, mover, mv.CardID, mv.Pos); err == nil && replyState.Status == rules.StatusActive {
				if counter, ok := bestStatic(sim, replyState, previousMover, w); ok {
					value -= replyPenalty * counter
				}
			}
			// A failed or terminal simulation keeps the static value.
		}

		if value > best {
			best = value
		}
		// Alpha cut: best only grows, so the owner's adjusted score
		// ownerScore - replyPenalty*best only shrinks from here on.
		if ownerScore-replyPenalty*best <= alpha {
			break
		}
	}
	if best == negInf {
		return 0, false
	}
	return best, true
}

// bestStatic returns the mover's best static score with no recursion.
func bestStatic(sim Simulator, s *rules.MatchState, mover uuid.UUID, w Weights) (float64, bool) {
	moves := sim.LegalMoves(s, mover)
	if len(moves) == 0 {
		return 0, false
	}
	if len(moves) > MaxCandidates {
		moves = moves[:MaxCandidates]
	}
	best := negInf
	for _, mv := range moves {
		if sc := Evaluate(s, mv, mover, w); sc.Score > best {
			best = sc.Score
		}
	}
	return best, true
}
