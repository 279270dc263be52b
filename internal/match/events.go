package match

import (
	"github.com/google/uuid"

	"github.com/tessera-gg/server/internal/rules"
)

// EventType identifies an outbound event on the transport contract.
type EventType string

const (
	EventStateSync          EventType = "state_sync"     // private, per-viewer sanitized state
	EventActionApplied      EventType = "action_applied" // engine events for one committed action
	EventTurnStarted        EventType = "turn_started"   // active player and time budget
	EventPlayerTimedOut     EventType = "player_timed_out"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventPlayerReconnected  EventType = "player_reconnected"
	EventMatchEnded         EventType = "match_ended" // Public: winner id and reason.
)

// EndReason explains why a match finished.
type EndReason string

const (
	ReasonCompleted  EndReason = "completed"
	ReasonSurrender  EndReason = "surrender"
	ReasonDisconnect EndReason = "disconnect"
)

// Event is the structure broadcast to clients. State is only set on
// private sync events and is already sanitized for its recipient.
type Event struct {
	Type    EventType      `json:"type"`
	Player  uuid.UUID      `json:"player,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Engine  []rules.Event  `json:"engine,omitempty"`
	State   *ViewState     `json:"state,omitempty"`
}

// BroadcastFunc sends an event to everyone in the match room.
type BroadcastFunc func(ev Event)

// BroadcastToPlayerFunc sends an event to one player's sockets.
type BroadcastToPlayerFunc func(playerID uuid.UUID, ev Event)
