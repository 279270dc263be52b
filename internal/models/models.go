// Package models holds the persistence and audit shapes shared between
// the match layer, the Postgres store and the Redis action log.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tessera-gg/server/internal/rules"
)

// MatchRecord mirrors one row of the matches table.
type MatchRecord struct {
	ID         uuid.UUID  `json:"id"`
	Player1ID  uuid.UUID  `json:"player1Id"`
	Player2ID  uuid.UUID  `json:"player2Id"`
	WinnerID   *uuid.UUID `json:"winnerId,omitempty"`
	Status     string     `json:"status"`
	EndReason  string     `json:"endReason,omitempty"`
	TurnCount  int        `json:"turnCount"`
	StateJSON  []byte     `json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// LiveMatch is the resumable snapshot of an active match: the engine
// state plus the session settings that must survive a server restart.
type LiveMatch struct {
	State    *rules.MatchState
	BotSeats map[uuid.UUID]string
	Strikes  map[uuid.UUID]int
}

// GameAction is one entry of a match's ordered action trail.
type GameAction struct {
	MatchID   uuid.UUID      `json:"matchId"`
	Seq       uint64         `json:"seq"`
	Actor     uuid.UUID      `json:"actor"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
