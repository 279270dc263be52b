package match

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ClockState is the turn clock's lifecycle state.
type ClockState int

const (
	ClockIdle ClockState = iota
	ClockWaiting
	ClockDisposed
)

// DefaultStrikeDurations maps a player's strike count to their allowed
// turn time. Index is the strike count, capped at the deepest tier.
var DefaultStrikeDurations = []time.Duration{
	30 * time.Second,
	15 * time.Second,
	10 * time.Second,
	5 * time.Second,
}

// DefaultAnimationDelay paces clients between turns: every turn after
// the first waits this long before its timer arms, so prior-turn visual
// effects finish before the countdown starts.
const DefaultAnimationDelay = 1500 * time.Millisecond

// ErrNotWaitingForPlayer is returned when an action arrives from anyone
// but the player the clock is currently waiting on.
var ErrNotWaitingForPlayer = errors.New("match: clock is not waiting for this player")

// TimeoutFunc is invoked (off the clock's lock) when the waiting player
// runs out of time. strikes is the player's count after the increment.
type TimeoutFunc func(playerID uuid.UUID, strikes int)

// TurnClock is the per-match timer state machine:
//
//	Idle → Waiting(player, deadline) → {Resolved | TimedOut} → Waiting(next)
//
// A generation counter increments on every transition; timer callbacks
// carry the generation they were armed under and no-op when it has
// moved on, which makes double-fire and fire-after-dispose races inert.
type TurnClock struct {
	mu sync.Mutex

	matchID    uuid.UUID
	state      ClockState
	waitingFor uuid.UUID
	deadline   time.Time
	strikes    map[uuid.UUID]int
	generation uint64

	timer       *time.Timer // armed countdown for the current turn
	delayTimer  *time.Timer // pending animation delay before arming
	firstTurn   bool
	tiers       []time.Duration
	animDelay   time.Duration
	onTimeout   TimeoutFunc
	log         logrus.FieldLogger
}

// NewTurnClock builds an idle clock. tiers defaults to
// DefaultStrikeDurations when nil; animDelay < 0 selects the default.
func NewTurnClock(matchID uuid.UUID, tiers []time.Duration, animDelay time.Duration, onTimeout TimeoutFunc, log logrus.FieldLogger) *TurnClock {
	if tiers == nil {
		tiers = DefaultStrikeDurations
	}
	if animDelay < 0 {
		animDelay = DefaultAnimationDelay
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TurnClock{
		matchID:   matchID,
		state:     ClockIdle,
		strikes:   make(map[uuid.UUID]int),
		firstTurn: true,
		tiers:     tiers,
		animDelay: animDelay,
		onTimeout: onTimeout,
		log:       log.WithField("match", matchID),
	}
}

// maxTier is the deepest strike escalation tier.
func (c *TurnClock) maxTier() int { return len(c.tiers) - 1 }

// allowedFor returns the turn duration for a strike count.
func (c *TurnClock) allowedFor(strikes int) time.Duration {
	if strikes > c.maxTier() {
		strikes = c.maxTier()
	}
	return c.tiers[strikes]
}

// StartTurn transitions to Waiting for the given player. The first turn
// of the match arms its timer immediately; later turns insert the
// animation delay first. Calling StartTurn cancels any pending timer
// from the previous turn.
func (c *TurnClock) StartTurn(playerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ClockDisposed {
		return
	}

	c.cancelTimersLocked()
	c.generation++
	gen := c.generation
	c.state = ClockWaiting
	c.waitingFor = playerID
	c.deadline = time.Time{} // set when the timer arms

	if c.firstTurn || c.animDelay == 0 {
		c.firstTurn = false
		c.armLocked(gen)
		return
	}
	c.delayTimer = time.AfterFunc(c.animDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state != ClockWaiting || c.generation != gen {
			return // turn already resolved or clock disposed during the delay
		}
		c.armLocked(gen)
	})
}

// armLocked arms the countdown for the waiting player. Caller holds mu.
func (c *TurnClock) armLocked(gen uint64) {
	allowed := c.allowedFor(c.strikes[c.waitingFor])
	c.deadline = time.Now().Add(allowed)
	c.timer = time.AfterFunc(allowed, func() { c.fire(gen) })
	c.log.WithFields(logrus.Fields{
		"player":  c.waitingFor,
		"allowed": allowed,
		"strikes": c.strikes[c.waitingFor],
	}).Debug("turn timer armed")
}

// fire handles timer expiry for the generation it was armed under.
// Timeouts are wall-clock: a late fire for the current generation is
// still processed; a fire for any older generation is a no-op.
func (c *TurnClock) fire(gen uint64) {
	c.mu.Lock()
	if c.state != ClockWaiting || c.generation != gen {
		c.mu.Unlock()
		return
	}
	player := c.waitingFor
	if c.strikes[player] < c.maxTier() {
		c.strikes[player]++
	}
	strikes := c.strikes[player]
	c.generation++
	c.state = ClockIdle
	c.waitingFor = uuid.Nil
	c.timer = nil
	onTimeout := c.onTimeout
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"player": player, "strikes": strikes}).Info("turn timed out")
	if onTimeout != nil {
		onTimeout(player, strikes)
	}
}

// OnPlayerAction records an in-time action. Accepted only from the
// player the clock is waiting for; acceptance resets that player's
// strikes and cancels the pending timeout.
func (c *TurnClock) OnPlayerAction(playerID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ClockWaiting || c.waitingFor != playerID {
		return ErrNotWaitingForPlayer
	}
	c.cancelTimersLocked()
	c.generation++
	c.state = ClockIdle
	c.waitingFor = uuid.Nil
	c.strikes[playerID] = 0
	return nil
}

// RestoreStrikes seeds the strike counters from a persisted snapshot,
// clamped to the valid tier range. Call before the first StartTurn; the
// map is copied, not retained.
func (c *TurnClock) RestoreStrikes(strikes map[uuid.UUID]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, n := range strikes {
		if n < 0 {
			n = 0
		}
		if n > c.maxTier() {
			n = c.maxTier()
		}
		c.strikes[id] = n
	}
}

// Waiting reports the player currently on the clock, if any.
func (c *TurnClock) Waiting() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ClockWaiting {
		return uuid.Nil, false
	}
	return c.waitingFor, true
}

// Strikes returns a player's current strike count.
func (c *TurnClock) Strikes(playerID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strikes[playerID]
}

// StrikeCounts returns a copy of all strike counters, for persistence.
func (c *TurnClock) StrikeCounts() map[uuid.UUID]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uuid.UUID]int, len(c.strikes))
	for id, n := range c.strikes {
		out[id] = n
	}
	return out
}

// AllowedSeconds returns the time budget the player would get for their
// next turn, given current strikes.
func (c *TurnClock) AllowedSeconds(playerID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.allowedFor(c.strikes[playerID]) / time.Second)
}

// State returns the clock's lifecycle state.
func (c *TurnClock) State() ClockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dispose cancels all pending timers and refuses further transitions.
// Safe to call more than once; only the first call does any work.
func (c *TurnClock) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ClockDisposed {
		return
	}
	c.cancelTimersLocked()
	c.generation++
	c.state = ClockDisposed
	c.waitingFor = uuid.Nil
}

// cancelTimersLocked stops both timers. Caller holds mu; the generation
// bump by the caller makes any in-flight callback a no-op.
func (c *TurnClock) cancelTimersLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.delayTimer != nil {
		c.delayTimer.Stop()
		c.delayTimer = nil
	}
}
