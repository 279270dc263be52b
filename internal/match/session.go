package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tessera-gg/server/internal/ai"
	"github.com/tessera-gg/server/internal/models"
	"github.com/tessera-gg/server/internal/rules"
)

// ErrPersistFailed wraps storage errors on the commit path. The in-memory
// state is unchanged when it is returned, so the caller may retry.
var ErrPersistFailed = errors.New("match: persist failed")

// Store commits authoritative match state. SaveMatchState runs after every
// accepted action and must succeed before the action is committed in memory.
type Store interface {
	SaveMatchState(ctx context.Context, state *rules.MatchState, strikes map[uuid.UUID]int) error
	FinalizeMatch(ctx context.Context, state *rules.MatchState, reason string) error
}

// Recorder appends to the match's ordered action trail. Failures are
// logged, never surfaced to the player.
type Recorder interface {
	RecordAction(ctx context.Context, action models.GameAction) error
}

// Mover picks a move for a seat. Used both for timeout fallbacks and for
// bot-controlled seats.
type Mover interface {
	ChooseMove(ctx context.Context, s *rules.MatchState, playerID uuid.UUID, tier ai.Tier) (rules.Move, bool, error)
}

// SessionConfig carries everything a Session needs. Broadcast funcs and
// OnFinished may be nil during tests.
type SessionConfig struct {
	State             *rules.MatchState
	Store             Store
	Recorder          Recorder
	Mover             Mover
	FallbackTier      ai.Tier
	BotSeats          map[uuid.UUID]ai.Tier
	InitialStrikes    map[uuid.UUID]int
	ClockTiers        []time.Duration
	AnimationDelay    time.Duration
	Reconnect         *Supervisor
	Broadcast         BroadcastFunc
	BroadcastToPlayer BroadcastToPlayerFunc
	OnFinished        func(matchID uuid.UUID)
	Log               logrus.FieldLogger
}

// Session owns one live match: the authoritative state, its turn clock,
// its action queue and its disconnect bookkeeping. All writes flow through
// the serializer in submission order; readers take the snapshot lock.
type Session struct {
	matchID  uuid.UUID
	queue    *Serializer
	clock    *TurnClock
	store    Store
	recorder Recorder
	mover    Mover

	fallbackTier ai.Tier
	botSeats     map[uuid.UUID]ai.Tier

	reconnect   *Supervisor
	broadcast   BroadcastFunc
	broadcastTo BroadcastToPlayerFunc
	onFinished  func(uuid.UUID)
	log         logrus.FieldLogger

	mu       sync.RWMutex
	state    *rules.MatchState
	sockets  map[uuid.UUID]int
	finished bool
	seq      uint64
}

// NewSession builds a session around an active match state. Call Start to
// arm the first turn.
func NewSession(cfg SessionConfig) *Session {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Session{
		matchID:      cfg.State.MatchID,
		queue:        NewSerializer(),
		store:        cfg.Store,
		recorder:     cfg.Recorder,
		mover:        cfg.Mover,
		fallbackTier: cfg.FallbackTier,
		botSeats:     cfg.BotSeats,
		reconnect:    cfg.Reconnect,
		broadcast:    cfg.Broadcast,
		broadcastTo:  cfg.BroadcastToPlayer,
		onFinished:   cfg.OnFinished,
		log:          log.WithField("match_id", cfg.State.MatchID),
		state:        cfg.State,
		sockets:      make(map[uuid.UUID]int),
	}
	if s.fallbackTier == "" {
		s.fallbackTier = ai.TierMedium
	}
	s.clock = NewTurnClock(s.matchID, cfg.ClockTiers, cfg.AnimationDelay, s.handleTimeout, s.log)
	if len(cfg.InitialStrikes) > 0 {
		s.clock.RestoreStrikes(cfg.InitialStrikes)
	}
	return s
}

// Start publishes the opening sync and arms the clock for the first turn.
func (s *Session) Start() {
	s.mu.RLock()
	active := s.state.Active
	s.mu.RUnlock()

	s.syncAll()
	s.announceTurn(active)
	s.clock.StartTurn(active)
	s.maybeScheduleBot(active)
}

// MatchID returns the session's match id.
func (s *Session) MatchID() uuid.UUID { return s.matchID }

// Finished reports whether the match has concluded.
func (s *Session) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.finished
}

// ViewFor builds the sanitized snapshot for one participant.
func (s *Session) ViewFor(playerID uuid.UUID) (ViewState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.state.IsParticipant(playerID) {
		return ViewState{}, rules.ErrNotParticipant
	}
	return BuildViewState(s.state, playerID, s.clock), nil
}

// SubmitMove places one card from the player's hand. Actions are applied
// strictly in the order they were submitted.
func (s *Session) SubmitMove(ctx context.Context, playerID, cardID uuid.UUID, pos rules.Position) error {
	return s.queue.Do(ctx, func() error {
		return s.applyLocked(ctx, playerID, "place_card", false, func(st *rules.MatchState) (*rules.MatchState, []rules.Event, error) {
			return rules.ApplyMove(st, playerID, cardID, pos)
		})
	})
}

// Pass ends the player's turn without placing a card.
func (s *Session) Pass(ctx context.Context, playerID uuid.UUID) error {
	return s.queue.Do(ctx, func() error {
		return s.applyLocked(ctx, playerID, "pass", false, func(st *rules.MatchState) (*rules.MatchState, []rules.Event, error) {
			return rules.EndTurn(st, playerID)
		})
	})
}

// Surrender concedes the match to the opponent.
func (s *Session) Surrender(ctx context.Context, playerID uuid.UUID) error {
	return s.queue.Do(ctx, func() error {
		return s.applyLocked(ctx, playerID, "surrender", false, func(st *rules.MatchState) (*rules.MatchState, []rules.Event, error) {
			next, err := rules.Surrender(st, playerID)
			return next, nil, err
		})
	})
}

// applyLocked runs one action through the full pipeline: rules, persist,
// commit, audit, broadcast, next turn. Runs inside the serializer only.
func (s *Session) applyLocked(ctx context.Context, playerID uuid.UUID, kind string, timedOut bool, apply func(*rules.MatchState) (*rules.MatchState, []rules.Event, error)) error {
	s.mu.RLock()
	cur := s.state
	done := s.finished
	s.mu.RUnlock()
	if done {
		return rules.ErrMatchOver
	}

	next, events, err := apply(cur)
	if err != nil {
		return err
	}

	if s.store != nil {
		// Persist the strike counts as they will stand after this action
		// commits, so the durable record never disagrees with the clock.
		strikes := s.clock.StrikeCounts()
		if !timedOut {
			strikes[playerID] = 0
		}
		if perr := s.store.SaveMatchState(ctx, next, strikes); perr != nil {
			s.log.WithError(perr).Warn("match state persist failed, action rejected")
			return fmt.Errorf("%w: %v", ErrPersistFailed, perr)
		}
	}

	s.mu.Lock()
	s.state = next
	s.seq++
	seq := s.seq
	over := next.Status == rules.StatusCompleted
	s.mu.Unlock()

	if !timedOut {
		// A timeout already consumed this turn's clock slot.
		if cerr := s.clock.OnPlayerAction(playerID); cerr != nil && !errors.Is(cerr, ErrNotWaitingForPlayer) {
			s.log.WithError(cerr).Warn("turn clock reset failed")
		}
	}

	s.recordAction(playerID, kind, seq, events)
	s.publish(Event{Type: EventActionApplied, Player: playerID, Engine: events})
	s.syncAll()

	if over {
		s.finish(ctx, endReasonFor(kind))
		return nil
	}

	s.announceTurn(next.Active)
	s.clock.StartTurn(next.Active)
	s.maybeScheduleBot(next.Active)
	return nil
}

// handleTimeout is the clock's callback. It plays a fallback move on the
// stalled player's behalf through the same pipeline as a real submission.
func (s *Session) handleTimeout(playerID uuid.UUID, strikes int) {
	s.publish(Event{
		Type:    EventPlayerTimedOut,
		Player:  playerID,
		Payload: map[string]any{"strikes": strikes},
	})

	err := s.queue.Do(context.Background(), func() error {
		s.mu.RLock()
		cur := s.state
		done := s.finished
		s.mu.RUnlock()
		if done || cur.Status != rules.StatusActive || cur.Active != playerID {
			// The player acted in the window between the timer firing
			// and this job reaching the head of the queue.
			return nil
		}
		return s.playAuto(playerID, s.fallbackTier, true)
	})
	if err != nil && !errors.Is(err, ErrSerializerClosed) {
		s.log.WithError(err).WithField("player_id", playerID).Error("timeout fallback failed")
	}
}

// playAuto asks the mover for a move and applies it, passing when the
// seat has nothing to play. Runs inside the serializer only.
func (s *Session) playAuto(playerID uuid.UUID, tier ai.Tier, timedOut bool) error {
	s.mu.RLock()
	cur := s.state
	s.mu.RUnlock()

	kind := "auto_move"
	if timedOut {
		kind = "timeout_move"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mv rules.Move
	ok := false
	if s.mover != nil {
		var err error
		mv, ok, err = s.mover.ChooseMove(ctx, cur, playerID, tier)
		if err != nil {
			s.log.WithError(err).WithField("player_id", playerID).Warn("move selection failed, passing turn")
			ok = false
		}
	}
	if !ok {
		return s.applyLocked(ctx, playerID, kind, timedOut, func(st *rules.MatchState) (*rules.MatchState, []rules.Event, error) {
			return rules.EndTurn(st, playerID)
		})
	}
	return s.applyLocked(ctx, playerID, kind, timedOut, func(st *rules.MatchState) (*rules.MatchState, []rules.Event, error) {
		return rules.ApplyMove(st, playerID, mv.CardID, mv.Pos)
	})
}

// maybeScheduleBot kicks off a bot turn if the seat is machine-controlled.
func (s *Session) maybeScheduleBot(playerID uuid.UUID) {
	tier, isBot := s.botSeats[playerID]
	if !isBot {
		return
	}
	go func() {
		err := s.queue.Do(context.Background(), func() error {
			s.mu.RLock()
			cur := s.state
			done := s.finished
			s.mu.RUnlock()
			if done || cur.Status != rules.StatusActive || cur.Active != playerID {
				return nil
			}
			return s.playAuto(playerID, tier, false)
		})
		if err != nil && !errors.Is(err, ErrSerializerClosed) {
			s.log.WithError(err).WithField("player_id", playerID).Error("bot turn failed")
		}
	}()
}

// PlayerSocketOpened registers a new socket for a participant. The first
// socket back inside the grace window cancels the pending forfeit.
func (s *Session) PlayerSocketOpened(playerID uuid.UUID) {
	s.mu.Lock()
	if !s.state.IsParticipant(playerID) {
		s.mu.Unlock()
		return
	}
	s.sockets[playerID]++
	first := s.sockets[playerID] == 1
	view := BuildViewState(s.state, playerID, s.clock)
	s.mu.Unlock()

	hadGrace := false
	if s.reconnect != nil {
		hadGrace = s.reconnect.HasGrace(s.matchID, playerID)
		s.reconnect.CancelGrace(s.matchID, playerID)
	}
	if first && hadGrace {
		s.publish(Event{Type: EventPlayerReconnected, Player: playerID})
	}
	s.publishTo(playerID, Event{Type: EventStateSync, Player: playerID, State: &view})
}

// PlayerSocketClosed drops one socket. When the last socket for a
// participant goes away the grace countdown begins.
func (s *Session) PlayerSocketClosed(playerID uuid.UUID) {
	s.mu.Lock()
	if s.sockets[playerID] > 0 {
		s.sockets[playerID]--
	}
	gone := s.sockets[playerID] == 0
	active := !s.finished && s.state.Status == rules.StatusActive
	s.mu.Unlock()

	if !gone || !active {
		return
	}
	s.publish(Event{Type: EventPlayerDisconnected, Player: playerID})
	if s.reconnect != nil {
		s.reconnect.StartGrace(s.matchID, playerID, func() {
			s.graceExpired(playerID)
		})
	}
}

// graceExpired forfeits the match for a player who never came back.
func (s *Session) graceExpired(playerID uuid.UUID) {
	err := s.queue.Do(context.Background(), func() error {
		s.mu.RLock()
		done := s.finished
		back := s.sockets[playerID] > 0
		s.mu.RUnlock()
		if done || back {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.applyLocked(ctx, playerID, "forfeit_disconnect", true, func(st *rules.MatchState) (*rules.MatchState, []rules.Event, error) {
			next, serr := rules.Surrender(st, playerID)
			return next, nil, serr
		})
	})
	if err != nil && !errors.Is(err, ErrSerializerClosed) {
		s.log.WithError(err).WithField("player_id", playerID).Error("disconnect forfeit failed")
	}
}

// finish tears the session down after the terminal state is committed.
// Runs inside the serializer only.
func (s *Session) finish(ctx context.Context, reason EndReason) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	final := s.state
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.FinalizeMatch(ctx, final, string(reason)); err != nil {
			s.log.WithError(err).Error("match finalize failed")
		}
	}
	s.publish(Event{
		Type:   EventMatchEnded,
		Player: final.Winner,
		Payload: map[string]any{
			"winner": final.Winner,
			"reason": string(reason),
		},
	})

	s.clock.Dispose()
	if s.reconnect != nil {
		s.reconnect.ReleaseMatch(s.matchID)
	}
	s.queue.Close()
	if s.onFinished != nil {
		s.onFinished(s.matchID)
	}
	s.log.WithFields(logrus.Fields{
		"winner": final.Winner,
		"reason": reason,
		"turns":  final.TurnNumber,
	}).Info("match finished")
}

func (s *Session) announceTurn(playerID uuid.UUID) {
	s.publish(Event{
		Type:   EventTurnStarted,
		Player: playerID,
		Payload: map[string]any{
			"allowedSeconds": s.clock.AllowedSeconds(playerID),
		},
	})
}

// syncAll sends each participant its own sanitized view.
func (s *Session) syncAll() {
	s.mu.RLock()
	views := make(map[uuid.UUID]ViewState, len(s.state.Players))
	for _, p := range s.state.Players {
		views[p] = BuildViewState(s.state, p, s.clock)
	}
	s.mu.RUnlock()

	for p, v := range views {
		view := v
		s.publishTo(p, Event{Type: EventStateSync, Player: p, State: &view})
	}
}

func (s *Session) recordAction(playerID uuid.UUID, kind string, seq uint64, events []rules.Event) {
	if s.recorder == nil {
		return
	}
	payload := map[string]any{}
	if len(events) > 0 {
		payload["events"] = events
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.recorder.RecordAction(ctx, models.GameAction{
		MatchID:   s.matchID,
		Seq:       seq,
		Actor:     playerID,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.log.WithError(err).Warn("action audit write failed")
	}
}

func (s *Session) publish(ev Event) {
	if s.broadcast != nil {
		s.broadcast(ev)
	}
}

func (s *Session) publishTo(playerID uuid.UUID, ev Event) {
	if s.broadcastTo != nil {
		s.broadcastTo(playerID, ev)
	}
}

func endReasonFor(kind string) EndReason {
	switch kind {
	case "surrender":
		return ReasonSurrender
	case "forfeit_disconnect":
		return ReasonDisconnect
	default:
		return ReasonCompleted
	}
}
