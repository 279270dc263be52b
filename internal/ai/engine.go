package ai

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tessera-gg/server/internal/rules"
)

// Engine is the decision engine for the artificial opponent. One engine
// serves all matches; it holds no per-match state. The rng is guarded
// because timeout fallbacks for unrelated matches may decide
// concurrently.
type Engine struct {
	sim      Simulator
	profiles map[Tier]Profile
	log      logrus.FieldLogger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine builds an engine over the given simulator and profiles.
// A nil profiles map falls back to the compiled-in defaults.
func NewEngine(sim Simulator, profiles map[Tier]Profile, seed int64, log logrus.FieldLogger) *Engine {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		sim:      sim,
		profiles: profiles,
		log:      log,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Profile returns the profile for a tier, defaulting to medium for
// unknown tiers so a stale client value never breaks a decision.
func (e *Engine) Profile(tier Tier) Profile {
	if p, ok := e.profiles[tier]; ok {
		return p
	}
	return e.profiles[TierMedium]
}

// ChooseMove selects a move for the player within the profile's time
// budget. ok is false when the player has no legal move, which callers
// must treat as an automatic pass. The engine always produces a decision
// or a pass; search degradation is absorbed internally and never
// surfaces as an error to the caller.
func (e *Engine) ChooseMove(ctx context.Context, s *rules.MatchState, playerID uuid.UUID, tier Tier) (rules.Move, bool, error) {
	if s == nil {
		return rules.Move{}, false, fmt.Errorf("ai: nil state")
	}
	if !s.IsParticipant(playerID) {
		return rules.Move{}, false, fmt.Errorf("ai: player %s not in match %s", playerID, s.MatchID)
	}

	profile := e.Profile(tier)
	started := time.Now()
	deadline := started.Add(profile.Budget())
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	moves := e.sim.LegalMoves(s, playerID)
	if len(moves) == 0 {
		return rules.Move{}, false, nil
	}
	if len(moves) > MaxCandidates {
		moves = moves[:MaxCandidates]
	}

	scored := make([]ScoredCandidate, 0, len(moves))
	for _, mv := range moves {
		scored = append(scored, Evaluate(s, mv, playerID, profile.Weights))
	}

	if profile.Depth > 0 {
		scored = SearchBest(e.sim, s, playerID, scored, profile.Depth, deadline, profile.Weights, e.log)
	}

	e.mu.Lock()
	move, ok := SelectMove(scored, profile, e.rng)
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{
		"match":      s.MatchID,
		"player":     playerID,
		"tier":       profile.Tier,
		"candidates": len(scored),
		"elapsed":    time.Since(started),
	}).Debug("ai decision")

	return move, ok, nil
}
