// Package store persists match state to Postgres. The matches table is
// the durable source of truth: every accepted action rewrites the
// state snapshot before it is committed in memory, so a crashed server
// can resume or adjudicate any live match.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/tessera-gg/server/internal/models"
	"github.com/tessera-gg/server/internal/rules"
)

var (
	ErrMatchNotFound = errors.New("store: match not found")
	ErrNotAuthorized = errors.New("store: player is not a participant")
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id          UUID PRIMARY KEY,
	player1_id  UUID NOT NULL,
	player2_id  UUID NOT NULL,
	winner_id   UUID,
	status      TEXT NOT NULL DEFAULT 'active',
	end_reason  TEXT NOT NULL DEFAULT '',
	turn_count  INT  NOT NULL DEFAULT 0,
	state_json  JSONB NOT NULL,
	strikes_json JSONB NOT NULL DEFAULT '{}',
	bot_seats   JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_matches_player1 ON matches (player1_id);
CREATE INDEX IF NOT EXISTS idx_matches_player2 ON matches (player2_id);
`

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, log logrus.FieldLogger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{pool: pool, log: log}, nil
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateMatch inserts the opening snapshot of a new match. botSeats maps
// bot-controlled player ids to their difficulty tier so a restarted
// server can reseat the bot when the match is resumed.
func (s *Store) CreateMatch(ctx context.Context, state *rules.MatchState, botSeats map[uuid.UUID]string) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}
	if botSeats == nil {
		botSeats = map[uuid.UUID]string{}
	}
	seatsJSON, err := json.Marshal(botSeats)
	if err != nil {
		return fmt.Errorf("store: marshal bot seats: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO matches (id, player1_id, player2_id, status, turn_count, state_json, bot_seats)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		state.MatchID, state.Players[0], state.Players[1], string(state.Status), state.TurnNumber, stateJSON, seatsJSON)
	if err != nil {
		return fmt.Errorf("store: insert match: %w", err)
	}
	return nil
}

// SaveMatchState rewrites the live snapshot after an accepted action.
func (s *Store) SaveMatchState(ctx context.Context, state *rules.MatchState, strikes map[uuid.UUID]int) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}
	strikesJSON, err := json.Marshal(strikes)
	if err != nil {
		return fmt.Errorf("store: marshal strikes: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE matches
		SET state_json = $2, strikes_json = $3, turn_count = $4, status = $5, updated_at = now()
		WHERE id = $1`,
		state.MatchID, stateJSON, strikesJSON, state.TurnNumber, string(state.Status))
	if err != nil {
		return fmt.Errorf("store: save state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMatchNotFound
	}
	return nil
}

// FinalizeMatch records the terminal result.
func (s *Store) FinalizeMatch(ctx context.Context, state *rules.MatchState, reason string) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}
	var winner *uuid.UUID
	if state.Winner != uuid.Nil {
		w := state.Winner
		winner = &w
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE matches
		SET state_json = $2, status = $3, winner_id = $4, end_reason = $5,
		    turn_count = $6, updated_at = now(), finished_at = now()
		WHERE id = $1`,
		state.MatchID, stateJSON, string(state.Status), winner, reason, state.TurnNumber)
	if err != nil {
		return fmt.Errorf("store: finalize match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMatchNotFound
	}
	return nil
}

// LoadMatch fetches the resumable snapshot of a match, bot seats and
// strike counters included, for one of its participants.
func (s *Store) LoadMatch(ctx context.Context, matchID, playerID uuid.UUID) (*models.LiveMatch, error) {
	var (
		p1, p2      uuid.UUID
		stateJSON   []byte
		strikesJSON []byte
		seatsJSON   []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT player1_id, player2_id, state_json, strikes_json, bot_seats FROM matches WHERE id = $1`, matchID).
		Scan(&p1, &p2, &stateJSON, &strikesJSON, &seatsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load match: %w", err)
	}
	if playerID != p1 && playerID != p2 {
		return nil, ErrNotAuthorized
	}
	live := &models.LiveMatch{
		State:    &rules.MatchState{},
		BotSeats: map[uuid.UUID]string{},
		Strikes:  map[uuid.UUID]int{},
	}
	if err := json.Unmarshal(stateJSON, live.State); err != nil {
		return nil, fmt.Errorf("store: unmarshal state: %w", err)
	}
	if err := json.Unmarshal(strikesJSON, &live.Strikes); err != nil {
		return nil, fmt.Errorf("store: unmarshal strikes: %w", err)
	}
	if err := json.Unmarshal(seatsJSON, &live.BotSeats); err != nil {
		return nil, fmt.Errorf("store: unmarshal bot seats: %w", err)
	}
	return live, nil
}

// ListMatches returns the player's match history, newest first.
func (s *Store) ListMatches(ctx context.Context, playerID uuid.UUID, limit int) ([]models.MatchRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, player1_id, player2_id, winner_id, status, end_reason, turn_count, created_at, finished_at
		FROM matches
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list matches: %w", err)
	}
	defer rows.Close()

	var out []models.MatchRecord
	for rows.Next() {
		var rec models.MatchRecord
		if err := rows.Scan(&rec.ID, &rec.Player1ID, &rec.Player2ID, &rec.WinnerID,
			&rec.Status, &rec.EndReason, &rec.TurnCount, &rec.CreatedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("store: scan match: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list matches: %w", err)
	}
	return out, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
