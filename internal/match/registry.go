package match

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tessera-gg/server/internal/ai"
	"github.com/tessera-gg/server/internal/rules"
)

// ErrSessionNotFound is returned for match ids with no live session.
var ErrSessionNotFound = errors.New("match: session not found")

// RegistryConfig holds the shared dependencies every session is built with.
type RegistryConfig struct {
	Store          Store
	Recorder       Recorder
	Mover          Mover
	FallbackTier   ai.Tier
	ClockTiers     []time.Duration
	AnimationDelay time.Duration
	GraceWindow    time.Duration
	Log            logrus.FieldLogger
}

// Registry tracks live sessions by match id. Sessions remove themselves
// when their match finishes.
type Registry struct {
	cfg       RegistryConfig
	reconnect *Supervisor
	log       logrus.FieldLogger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(cfg RegistryConfig) *Registry {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		cfg:       cfg,
		reconnect: NewSupervisor(cfg.GraceWindow, log),
		log:       log,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// CreateOptions carries the per-match knobs. InitialStrikes seeds the
// turn clock when a match is restored from storage.
type CreateOptions struct {
	BotSeats          map[uuid.UUID]ai.Tier
	InitialStrikes    map[uuid.UUID]int
	Broadcast         BroadcastFunc
	BroadcastToPlayer BroadcastToPlayerFunc
}

// Create builds, registers and starts a session for the given state.
// Creating a second session for the same match id returns the live one.
func (r *Registry) Create(state *rules.MatchState, opts CreateOptions) *Session {
	r.mu.Lock()
	if existing, ok := r.sessions[state.MatchID]; ok {
		r.mu.Unlock()
		return existing
	}
	s := NewSession(SessionConfig{
		State:             state,
		Store:             r.cfg.Store,
		Recorder:          r.cfg.Recorder,
		Mover:             r.cfg.Mover,
		FallbackTier:      r.cfg.FallbackTier,
		BotSeats:          opts.BotSeats,
		InitialStrikes:    opts.InitialStrikes,
		ClockTiers:        r.cfg.ClockTiers,
		AnimationDelay:    r.cfg.AnimationDelay,
		Reconnect:         r.reconnect,
		Broadcast:         opts.Broadcast,
		BroadcastToPlayer: opts.BroadcastToPlayer,
		OnFinished:        r.remove,
		Log:               r.log,
	})
	r.sessions[state.MatchID] = s
	r.mu.Unlock()

	s.Start()
	return s
}

// Get returns the live session for a match id.
func (r *Registry) Get(matchID uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[matchID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) remove(matchID uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, matchID)
	r.mu.Unlock()
}
