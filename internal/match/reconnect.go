package match

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultGraceWindow is how long a fully disconnected player has to
// come back before the match resolves against them.
const DefaultGraceWindow = 60 * time.Second

type graceKey struct {
	matchID  uuid.UUID
	playerID uuid.UUID
}

// Supervisor owns disconnect grace timers, at most one per
// (match, player). It never mutates match state itself: expiry hands
// control to the resolve callback, which re-validates through the
// match's serializer before acting.
type Supervisor struct {
	mu     sync.Mutex
	window time.Duration
	timers map[graceKey]*time.Timer
	log    logrus.FieldLogger
}

// NewSupervisor builds a supervisor with the given grace window;
// window <= 0 selects the default.
func NewSupervisor(window time.Duration, log logrus.FieldLogger) *Supervisor {
	if window <= 0 {
		window = DefaultGraceWindow
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Supervisor{
		window: window,
		timers: make(map[graceKey]*time.Timer),
		log:    log,
	}
}

// StartGrace arms the grace timer for the player. A second call while a
// timer is already pending is a no-op, so concurrent last-socket events
// cannot spawn duplicates. resolve runs exactly once, after the window,
// unless the grace is cancelled first.
func (s *Supervisor) StartGrace(matchID, playerID uuid.UUID, resolve func()) {
	key := graceKey{matchID, playerID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.timers[key]; exists {
		return
	}
	s.timers[key] = time.AfterFunc(s.window, func() {
		s.mu.Lock()
		_, live := s.timers[key]
		delete(s.timers, key)
		s.mu.Unlock()
		if !live {
			return // cancelled between fire and lock acquisition
		}
		s.log.WithFields(logrus.Fields{"match": matchID, "player": playerID}).Info("grace window expired")
		resolve()
	})
	s.log.WithFields(logrus.Fields{"match": matchID, "player": playerID, "window": s.window}).Debug("grace window started")
}

// CancelGrace stops the player's grace timer. Idempotent: cancelling an
// absent timer, or cancelling twice from near-simultaneous reconnects,
// is harmless and leaves zero pending timers for the player.
func (s *Supervisor) CancelGrace(matchID, playerID uuid.UUID) {
	key := graceKey{matchID, playerID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, exists := s.timers[key]; exists {
		timer.Stop()
		delete(s.timers, key)
	}
}

// HasGrace reports whether a grace timer is pending for the player.
func (s *Supervisor) HasGrace(matchID, playerID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.timers[graceKey{matchID, playerID}]
	return exists
}

// ReleaseMatch cancels every pending grace timer for the match. Called
// on match disposal.
func (s *Supervisor) ReleaseMatch(matchID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, timer := range s.timers {
		if key.matchID == matchID {
			timer.Stop()
			delete(s.timers, key)
		}
	}
}
