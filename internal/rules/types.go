// Package rules implements the authoritative board rules for a tessera
// match: a 3x3 grid where two players alternate placing cards from their
// hands. A placed card flips orthogonally adjacent enemy cards of lower
// effective power and may trigger the card's ability. The package is pure
// state-in/state-out; callers own concurrency and persistence.
package rules

import (
	"errors"

	"github.com/google/uuid"
)

// BoardSize is the side length of the square board.
const BoardSize = 3

// TotalCells is the number of cells on the board.
const TotalCells = BoardSize * BoardSize

// Status describes the lifecycle of a match.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Ability is a tagged card ability variant. Each variant has its own
// resolution in resolveAbility and its own scoring rule on the AI side.
type Ability uint8

const (
	AbilityNone   Ability = iota
	AbilityRally          // +1 power to allied cards in the placed row and column.
	AbilityVenom          // -1 power to adjacent enemy cards.
	AbilityScribe         // owner draws one card from their deck.
	AbilityBreach         // additionally flips the strongest adjacent enemy, power regardless.
	AbilityWard           // the placed cell cannot be flipped.
)

// AbilityCategory is the coarse classification used by the generic
// fallback scorer when no named rule exists for a variant.
type AbilityCategory uint8

const (
	CategoryNone AbilityCategory = iota
	CategoryBuff
	CategoryDebuff
	CategoryDraw
	CategoryFlipEnemy
	CategoryProtect
)

// Category maps an ability variant to its coarse class.
func (a Ability) Category() AbilityCategory {
	switch a {
	case AbilityRally:
		return CategoryBuff
	case AbilityVenom:
		return CategoryDebuff
	case AbilityScribe:
		return CategoryDraw
	case AbilityBreach:
		return CategoryFlipEnemy
	case AbilityWard:
		return CategoryProtect
	default:
		return CategoryNone
	}
}

func (a Ability) String() string {
	switch a {
	case AbilityRally:
		return "rally"
	case AbilityVenom:
		return "venom"
	case AbilityScribe:
		return "scribe"
	case AbilityBreach:
		return "breach"
	case AbilityWard:
		return "ward"
	default:
		return "none"
	}
}

// Card is a card instance in a hand, deck, or board cell.
type Card struct {
	InstanceID uuid.UUID `json:"instanceId"`
	Name       string    `json:"name"`
	Power      int       `json:"power"`
	Ability    Ability   `json:"ability"`
}

// Position addresses a board cell. Row and Col are zero-based.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Valid reports whether the position is on the board.
func (p Position) Valid() bool {
	return p.Row >= 0 && p.Row < BoardSize && p.Col >= 0 && p.Col < BoardSize
}

// Adjacent returns the orthogonal neighbours that are on the board.
func (p Position) Adjacent() []Position {
	candidates := [4]Position{
		{p.Row - 1, p.Col},
		{p.Row + 1, p.Col},
		{p.Row, p.Col - 1},
		{p.Row, p.Col + 1},
	}
	out := make([]Position, 0, 4)
	for _, c := range candidates {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// IsCorner reports whether the position is a board corner.
func (p Position) IsCorner() bool {
	return (p.Row == 0 || p.Row == BoardSize-1) && (p.Col == 0 || p.Col == BoardSize-1)
}

// IsCenter reports whether the position is the board center.
func (p Position) IsCenter() bool {
	return p.Row == BoardSize/2 && p.Col == BoardSize/2
}

// Cell is one board slot. Card is nil while the cell is empty. PowerMod
// accumulates Rally/Venom adjustments; Warded cells cannot be flipped.
type Cell struct {
	Card     *Card     `json:"card,omitempty"`
	Owner    uuid.UUID `json:"owner,omitempty"`
	PowerMod int       `json:"powerMod,omitempty"`
	Warded   bool      `json:"warded,omitempty"`
}

// Occupied reports whether a card sits in the cell.
func (c *Cell) Occupied() bool { return c.Card != nil }

// EffectivePower is the card's power after board modifiers, floored at 1.
func (c *Cell) EffectivePower() int {
	if c.Card == nil {
		return 0
	}
	p := c.Card.Power + c.PowerMod
	if p < 1 {
		p = 1
	}
	return p
}

// Move is a (card, cell) placement candidate.
type Move struct {
	CardID uuid.UUID
	Pos    Position
}

// MatchState is the full authoritative state of one match. The struct is
// owned by the rules engine; orchestration code treats it as read-only
// and obtains successor states from ApplyMove/EndTurn/Surrender.
type MatchState struct {
	MatchID    uuid.UUID                  `json:"matchId"`
	Players    [2]uuid.UUID               `json:"players"`
	Active     uuid.UUID                  `json:"active"`
	Hands      map[uuid.UUID][]Card       `json:"hands"`
	Decks      map[uuid.UUID][]Card       `json:"decks"`
	Board      [BoardSize][BoardSize]Cell `json:"board"`
	Status     Status                     `json:"status"`
	Winner     uuid.UUID                  `json:"winner,omitempty"`
	TurnNumber int                        `json:"turnNumber"`
}

var (
	ErrMatchOver       = errors.New("rules: match is not active")
	ErrNotYourTurn     = errors.New("rules: not the acting player")
	ErrNotParticipant  = errors.New("rules: player is not in this match")
	ErrInvalidPosition = errors.New("rules: position is off the board")
	ErrCellOccupied    = errors.New("rules: cell is occupied")
	ErrCardNotInHand   = errors.New("rules: card is not in the player's hand")
)

// NewMatch builds an active match with the given hands and decks dealt.
// The first player in the pair acts first.
func NewMatch(matchID uuid.UUID, players [2]uuid.UUID, hands, decks map[uuid.UUID][]Card) *MatchState {
	s := &MatchState{
		MatchID: matchID,
		Players: players,
		Active:  players[0],
		Hands:   make(map[uuid.UUID][]Card, 2),
		Decks:   make(map[uuid.UUID][]Card, 2),
		Status:  StatusActive,
	}
	for _, id := range players {
		s.Hands[id] = append([]Card(nil), hands[id]...)
		s.Decks[id] = append([]Card(nil), decks[id]...)
	}
	return s
}

// Opponent returns the other participant's id.
func (s *MatchState) Opponent(playerID uuid.UUID) uuid.UUID {
	if s.Players[0] == playerID {
		return s.Players[1]
	}
	return s.Players[0]
}

// IsParticipant reports whether the id belongs to one of the two seats.
func (s *MatchState) IsParticipant(playerID uuid.UUID) bool {
	return s.Players[0] == playerID || s.Players[1] == playerID
}

// CellCount returns the number of board cells owned by the player.
func (s *MatchState) CellCount(playerID uuid.UUID) int {
	n := 0
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if s.Board[r][c].Occupied() && s.Board[r][c].Owner == playerID {
				n++
			}
		}
	}
	return n
}

// OccupiedCells returns the number of cells holding a card.
func (s *MatchState) OccupiedCells() int {
	n := 0
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if s.Board[r][c].Occupied() {
				n++
			}
		}
	}
	return n
}

// HandCard finds a card instance in the player's hand. Returns the index
// or -1 when absent.
func (s *MatchState) HandCard(playerID, cardID uuid.UUID) int {
	for i, c := range s.Hands[playerID] {
		if c.InstanceID == cardID {
			return i
		}
	}
	return -1
}

// Clone deep-copies the state for simulation. Card structs are copied by
// value; board cell Card pointers are re-pointed at fresh copies so a
// simulated flip never aliases the source state.
func (s *MatchState) Clone() *MatchState {
	out := &MatchState{
		MatchID:    s.MatchID,
		Players:    s.Players,
		Active:     s.Active,
		Hands:      make(map[uuid.UUID][]Card, len(s.Hands)),
		Decks:      make(map[uuid.UUID][]Card, len(s.Decks)),
		Status:     s.Status,
		Winner:     s.Winner,
		TurnNumber: s.TurnNumber,
	}
	for id, h := range s.Hands {
		out.Hands[id] = append([]Card(nil), h...)
	}
	for id, d := range s.Decks {
		out.Decks[id] = append([]Card(nil), d...)
	}
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			cell := s.Board[r][c]
			if cell.Card != nil {
				cardCopy := *cell.Card
				cell.Card = &cardCopy
			}
			out.Board[r][c] = cell
		}
	}
	return out
}
