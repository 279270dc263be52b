package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tessera-gg/server/internal/ai"
	"github.com/tessera-gg/server/internal/auth"
	"github.com/tessera-gg/server/internal/match"
	"github.com/tessera-gg/server/internal/models"
	"github.com/tessera-gg/server/internal/rules"
)

// MatchWriter persists new matches and serves match history.
type MatchWriter interface {
	CreateMatch(ctx context.Context, state *rules.MatchState, botSeats map[uuid.UUID]string) error
	ListMatches(ctx context.Context, playerID uuid.UUID, limit int) ([]models.MatchRecord, error)
}

// API is the REST surface next to the websocket: guest sessions, match
// creation and history.
type API struct {
	signer   *auth.Signer
	hub      *Hub
	registry *match.Registry
	matches  MatchWriter
	log      logrus.FieldLogger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewAPI(signer *auth.Signer, hub *Hub, registry *match.Registry, matches MatchWriter, seed int64, log logrus.FieldLogger) *API {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &API{
		signer:   signer,
		hub:      hub,
		registry: registry,
		matches:  matches,
		log:      log,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Register installs the API routes on the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /session", a.handleCreateSession)
	mux.HandleFunc("POST /matches", a.handleCreateMatch)
	mux.HandleFunc("GET /matches", a.handleListMatches)
	mux.HandleFunc("GET /ws/{matchID}", a.hub.ServeWS)
}

// handleCreateSession mints a guest identity and its session token.
func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	playerID := uuid.New()
	token, err := a.signer.CreateSession(playerID)
	if err != nil {
		a.log.WithError(err).Error("session mint failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"playerId": playerID,
		"token":    token,
	})
}

type createMatchRequest struct {
	// OpponentID seats a second human; empty seats a bot instead.
	OpponentID uuid.UUID `json:"opponentId,omitempty"`
	// BotTier selects the bot difficulty for solo matches.
	BotTier string `json:"botTier,omitempty"`
}

func (a *API) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	playerID, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	botSeats := map[uuid.UUID]ai.Tier{}
	opponent := req.OpponentID
	if opponent == uuid.Nil {
		opponent = uuid.New()
		tier := ai.Tier(req.BotTier)
		if tier != ai.TierEasy && tier != ai.TierMedium && tier != ai.TierHard {
			tier = ai.TierMedium
		}
		botSeats[opponent] = tier
	} else if opponent == playerID {
		http.Error(w, "cannot play yourself", http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	handA, deckA := rules.Deal(a.rng)
	handB, deckB := rules.Deal(a.rng)
	a.mu.Unlock()

	state := rules.NewMatch(uuid.New(), [2]uuid.UUID{playerID, opponent},
		map[uuid.UUID][]rules.Card{playerID: handA, opponent: handB},
		map[uuid.UUID][]rules.Card{playerID: deckA, opponent: deckB})

	if a.matches != nil {
		seats := make(map[uuid.UUID]string, len(botSeats))
		for id, tier := range botSeats {
			seats[id] = string(tier)
		}
		if err := a.matches.CreateMatch(r.Context(), state, seats); err != nil {
			a.log.WithError(err).Error("match insert failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	broadcast, toPlayer := a.hub.Room(state.MatchID)
	a.registry.Create(state, match.CreateOptions{
		BotSeats:          botSeats,
		Broadcast:         broadcast,
		BroadcastToPlayer: toPlayer,
	})

	a.log.WithFields(logrus.Fields{
		"match_id": state.MatchID,
		"player_1": playerID,
		"player_2": opponent,
		"solo":     len(botSeats) > 0,
	}).Info("match created")

	writeJSON(w, http.StatusCreated, map[string]any{
		"matchId":    state.MatchID,
		"opponentId": opponent,
	})
}

func (a *API) handleListMatches(w http.ResponseWriter, r *http.Request) {
	playerID, ok := a.authenticate(w, r)
	if !ok {
		return
	}
	if a.matches == nil {
		writeJSON(w, http.StatusOK, []models.MatchRecord{})
		return
	}
	records, err := a.matches.ListMatches(r.Context(), playerID, 50)
	if err != nil {
		a.log.WithError(err).Error("match list failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.MatchRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// authenticate resolves the Bearer token to a player id.
func (a *API) authenticate(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	playerID, err := a.signer.VerifySession(token)
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, auth.ErrExpiredToken) && !errors.Is(err, auth.ErrInvalidToken) {
			status = http.StatusInternalServerError
		}
		http.Error(w, "unauthorized", status)
		return uuid.Nil, false
	}
	return playerID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
