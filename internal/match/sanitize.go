package match

import (
	"github.com/google/uuid"

	"github.com/tessera-gg/server/internal/rules"
)

// ViewCard is a card as shown to a viewer entitled to see it.
type ViewCard struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Power   int       `json:"power"`
	Ability string    `json:"ability"`
}

// ViewCell is one board cell. Board contents are public knowledge.
type ViewCell struct {
	Card     *ViewCard `json:"card,omitempty"`
	Owner    uuid.UUID `json:"owner,omitempty"`
	PowerMod int       `json:"powerMod,omitempty"`
	Warded   bool      `json:"warded,omitempty"`
}

// ViewState is the per-viewer sanitized snapshot. The opponent's hand
// contents never appear: only its size does.
type ViewState struct {
	MatchID          uuid.UUID    `json:"matchId"`
	Status           rules.Status `json:"status"`
	ActivePlayer     uuid.UUID    `json:"activePlayer,omitempty"`
	TurnNumber       int          `json:"turnNumber"`
	Winner           uuid.UUID    `json:"winner,omitempty"`
	Board            [][]ViewCell `json:"board"`
	Hand             []ViewCard   `json:"hand"`
	DeckSize         int          `json:"deckSize"`
	OpponentHandSize int          `json:"opponentHandSize"`
	OpponentDeckSize int          `json:"opponentDeckSize"`
	AllowedSeconds   int          `json:"allowedSeconds"`
	Strikes          int          `json:"strikes"`
	OpponentStrikes  int          `json:"opponentStrikes"`
}

// BuildViewState projects the authoritative state for one viewer.
// clock may be nil (e.g. when syncing a finished match).
func BuildViewState(s *rules.MatchState, viewer uuid.UUID, clock *TurnClock) ViewState {
	opponent := s.Opponent(viewer)
	view := ViewState{
		MatchID:          s.MatchID,
		Status:           s.Status,
		TurnNumber:       s.TurnNumber,
		Winner:           s.Winner,
		DeckSize:         len(s.Decks[viewer]),
		OpponentHandSize: len(s.Hands[opponent]),
		OpponentDeckSize: len(s.Decks[opponent]),
	}
	if s.Status == rules.StatusActive {
		view.ActivePlayer = s.Active
	}
	if clock != nil {
		view.AllowedSeconds = clock.AllowedSeconds(s.Active)
		view.Strikes = clock.Strikes(viewer)
		view.OpponentStrikes = clock.Strikes(opponent)
	}

	view.Hand = make([]ViewCard, 0, len(s.Hands[viewer]))
	for _, c := range s.Hands[viewer] {
		view.Hand = append(view.Hand, viewCard(c))
	}

	view.Board = make([][]ViewCell, rules.BoardSize)
	for r := 0; r < rules.BoardSize; r++ {
		view.Board[r] = make([]ViewCell, rules.BoardSize)
		for c := 0; c < rules.BoardSize; c++ {
			cell := s.Board[r][c]
			out := ViewCell{Owner: cell.Owner, PowerMod: cell.PowerMod, Warded: cell.Warded}
			if cell.Card != nil {
				vc := viewCard(*cell.Card)
				out.Card = &vc
			}
			view.Board[r][c] = out
		}
	}
	return view
}

func viewCard(c rules.Card) ViewCard {
	return ViewCard{
		ID:      c.InstanceID,
		Name:    c.Name,
		Power:   c.Power,
		Ability: c.Ability.String(),
	}
}
