package rules

import (
	"fmt"

	"github.com/google/uuid"
)

// EventType identifies a structured event produced by applying a move.
type EventType string

const (
	EventCardPlaced       EventType = "card_placed"
	EventCardsFlipped     EventType = "cards_flipped"
	EventAbilityTriggered EventType = "ability_triggered"
	EventCardDrawn        EventType = "card_drawn"
	EventTurnEnded        EventType = "turn_ended"
	EventMatchEnded       EventType = "match_ended"
)

// Event describes one observable consequence of an action. Events are
// broadcast-safe: they never contain hidden hand contents of the
// non-acting player.
type Event struct {
	Type    EventType      `json:"type"`
	Player  uuid.UUID      `json:"player,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ApplyMove places a card from the player's hand onto the board, resolves
// flips and the card's ability, and advances the turn. The input state is
// never mutated; a successor state is returned alongside the events that
// occurred. Errors indicate an illegal action and leave no trace.
func ApplyMove(s *MatchState, playerID, cardID uuid.UUID, pos Position) (*MatchState, []Event, error) {
	if s.Status != StatusActive {
		return nil, nil, ErrMatchOver
	}
	if !s.IsParticipant(playerID) {
		return nil, nil, ErrNotParticipant
	}
	if s.Active != playerID {
		return nil, nil, ErrNotYourTurn
	}
	if !pos.Valid() {
		return nil, nil, ErrInvalidPosition
	}
	if s.Board[pos.Row][pos.Col].Occupied() {
		return nil, nil, fmt.Errorf("%w: %d,%d", ErrCellOccupied, pos.Row, pos.Col)
	}
	handIdx := s.HandCard(playerID, cardID)
	if handIdx < 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrCardNotInHand, cardID)
	}

	next := s.Clone()
	card := next.Hands[playerID][handIdx]
	next.Hands[playerID] = append(next.Hands[playerID][:handIdx], next.Hands[playerID][handIdx+1:]...)

	placed := &next.Board[pos.Row][pos.Col]
	placed.Card = &card
	placed.Owner = playerID
	placed.PowerMod = 0
	placed.Warded = false

	events := []Event{{
		Type:   EventCardPlaced,
		Player: playerID,
		Payload: map[string]any{
			"cardInstanceId": card.InstanceID,
			"name":           card.Name,
			"power":          card.Power,
			"ability":        card.Ability.String(),
			"position":       pos,
		},
	}}

	events = append(events, resolveAbility(next, playerID, &card, pos)...)
	events = append(events, resolveFlips(next, playerID, pos)...)
	events = append(events, advanceAfterMove(next, playerID)...)
	return next, events, nil
}

// EndTurn passes without placing a card. Legal only for the acting player
// of an active match; used when the hand has no playable card.
func EndTurn(s *MatchState, playerID uuid.UUID) (*MatchState, []Event, error) {
	if s.Status != StatusActive {
		return nil, nil, ErrMatchOver
	}
	if !s.IsParticipant(playerID) {
		return nil, nil, ErrNotParticipant
	}
	if s.Active != playerID {
		return nil, nil, ErrNotYourTurn
	}
	next := s.Clone()
	events := advanceAfterMove(next, playerID)
	return next, events, nil
}

// Surrender immediately completes the match with the opponent as winner.
func Surrender(s *MatchState, playerID uuid.UUID) (*MatchState, error) {
	if s.Status != StatusActive {
		return nil, ErrMatchOver
	}
	if !s.IsParticipant(playerID) {
		return nil, ErrNotParticipant
	}
	next := s.Clone()
	next.Status = StatusCompleted
	next.Winner = next.Opponent(playerID)
	return next, nil
}

// LegalMoves enumerates every (hand card, empty cell) pair for the player.
// Returns nil when the player has no card or the board is full.
func LegalMoves(s *MatchState, playerID uuid.UUID) []Move {
	if s.Status != StatusActive || !s.IsParticipant(playerID) {
		return nil
	}
	hand := s.Hands[playerID]
	if len(hand) == 0 {
		return nil
	}
	var moves []Move
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if s.Board[r][c].Occupied() {
				continue
			}
			for _, card := range hand {
				moves = append(moves, Move{CardID: card.InstanceID, Pos: Position{r, c}})
			}
		}
	}
	return moves
}

// resolveFlips flips adjacent enemy cards whose effective power is
// strictly below the placed card's. Warded cells never flip.
func resolveFlips(s *MatchState, playerID uuid.UUID, pos Position) []Event {
	placed := &s.Board[pos.Row][pos.Col]
	attack := placed.EffectivePower()

	var flipped []Position
	for _, adj := range pos.Adjacent() {
		cell := &s.Board[adj.Row][adj.Col]
		if !cell.Occupied() || cell.Owner == playerID || cell.Warded {
			continue
		}
		if cell.EffectivePower() < attack {
			cell.Owner = playerID
			flipped = append(flipped, adj)
		}
	}
	if len(flipped) == 0 {
		return nil
	}
	return []Event{{
		Type:    EventCardsFlipped,
		Player:  playerID,
		Payload: map[string]any{"positions": flipped, "count": len(flipped)},
	}}
}

// resolveAbility applies the placed card's ability before flip
// resolution, so Rally/Venom modifiers influence the same placement.
func resolveAbility(s *MatchState, playerID uuid.UUID, card *Card, pos Position) []Event {
	var events []Event
	emit := func(payload map[string]any) {
		payload["ability"] = card.Ability.String()
		payload["position"] = pos
		events = append(events, Event{Type: EventAbilityTriggered, Player: playerID, Payload: payload})
	}

	switch card.Ability {
	case AbilityRally:
		buffed := 0
		for r := 0; r < BoardSize; r++ {
			for c := 0; c < BoardSize; c++ {
				if r != pos.Row && c != pos.Col {
					continue
				}
				if r == pos.Row && c == pos.Col {
					continue
				}
				cell := &s.Board[r][c]
				if cell.Occupied() && cell.Owner == playerID {
					cell.PowerMod++
					buffed++
				}
			}
		}
		if buffed > 0 {
			emit(map[string]any{"buffed": buffed})
		}
	case AbilityVenom:
		poisoned := 0
		for _, adj := range pos.Adjacent() {
			cell := &s.Board[adj.Row][adj.Col]
			if cell.Occupied() && cell.Owner != playerID {
				cell.PowerMod--
				poisoned++
			}
		}
		if poisoned > 0 {
			emit(map[string]any{"poisoned": poisoned})
		}
	case AbilityScribe:
		deck := s.Decks[playerID]
		if len(deck) > 0 {
			drawn := deck[0]
			s.Decks[playerID] = deck[1:]
			s.Hands[playerID] = append(s.Hands[playerID], drawn)
			emit(map[string]any{"drawn": 1})
			events = append(events, Event{
				Type:   EventCardDrawn,
				Player: playerID,
				// Card identity stays private; viewers only learn a draw happened.
				Payload: map[string]any{"handSize": len(s.Hands[playerID])},
			})
		}
	case AbilityBreach:
		// Flip the strongest adjacent enemy outright. Ward still blocks.
		var target *Cell
		best := -1
		for _, adj := range pos.Adjacent() {
			cell := &s.Board[adj.Row][adj.Col]
			if !cell.Occupied() || cell.Owner == playerID || cell.Warded {
				continue
			}
			if p := cell.EffectivePower(); p > best {
				best = p
				target = cell
			}
		}
		if target != nil {
			target.Owner = playerID
			emit(map[string]any{"breached": 1})
		}
	case AbilityWard:
		s.Board[pos.Row][pos.Col].Warded = true
		emit(map[string]any{})
	}
	return events
}

// advanceAfterMove ends the match when the board is full, otherwise
// passes the turn to the opponent.
func advanceAfterMove(s *MatchState, playerID uuid.UUID) []Event {
	s.TurnNumber++
	if s.OccupiedCells() >= TotalCells {
		s.Status = StatusCompleted
		a, b := s.CellCount(s.Players[0]), s.CellCount(s.Players[1])
		switch {
		case a > b:
			s.Winner = s.Players[0]
		case b > a:
			s.Winner = s.Players[1]
		default:
			s.Winner = uuid.Nil // draw
		}
		return []Event{{
			Type:   EventMatchEnded,
			Player: s.Winner,
			Payload: map[string]any{
				"cells": map[string]int{
					s.Players[0].String(): a,
					s.Players[1].String(): b,
				},
			},
		}}
	}
	s.Active = s.Opponent(playerID)
	return []Event{{
		Type:    EventTurnEnded,
		Player:  playerID,
		Payload: map[string]any{"nextPlayer": s.Active},
	}}
}
