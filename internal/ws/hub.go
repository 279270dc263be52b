// Package ws exposes the match transport: one websocket room per live
// match, authenticated by session token, relaying player commands into
// the match session and session events back out.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tessera-gg/server/internal/ai"
	"github.com/tessera-gg/server/internal/auth"
	"github.com/tessera-gg/server/internal/match"
	"github.com/tessera-gg/server/internal/models"
	"github.com/tessera-gg/server/internal/rules"
	"github.com/tessera-gg/server/internal/store"
)

// ClientMessage is the inbound command envelope.
type ClientMessage struct {
	Type   string    `json:"type"`
	CardID uuid.UUID `json:"cardId,omitempty"`
	Row    int       `json:"row,omitempty"`
	Col    int       `json:"col,omitempty"`
}

// room fans session events out to every socket in one match.
type room struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func (r *room) add(c *client) {
	r.mu.Lock()
	r.clients[c] = struct{}{}
	r.mu.Unlock()
}

func (r *room) remove(c *client) (empty bool) {
	r.mu.Lock()
	delete(r.clients, c)
	empty = len(r.clients) == 0
	r.mu.Unlock()
	return empty
}

func (r *room) broadcast(msg []byte) {
	r.mu.RLock()
	for c := range r.clients {
		c.enqueue(msg)
	}
	r.mu.RUnlock()
}

func (r *room) broadcastTo(playerID uuid.UUID, msg []byte) {
	r.mu.RLock()
	for c := range r.clients {
		if c.playerID == playerID {
			c.enqueue(msg)
		}
	}
	r.mu.RUnlock()
}

// MatchLoader restores a participant's match snapshot from storage.
type MatchLoader interface {
	LoadMatch(ctx context.Context, matchID, playerID uuid.UUID) (*models.LiveMatch, error)
}

// Hub owns the rooms and bridges sockets to match sessions.
type Hub struct {
	signer   *auth.Signer
	registry *match.Registry
	loader   MatchLoader
	origins  []string
	log      logrus.FieldLogger

	mu    sync.Mutex
	rooms map[uuid.UUID]*room
}

func NewHub(signer *auth.Signer, registry *match.Registry, loader MatchLoader, origins []string, log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		signer:   signer,
		registry: registry,
		loader:   loader,
		origins:  origins,
		log:      log,
		rooms:    make(map[uuid.UUID]*room),
	}
}

// Room returns the fan-out for a match, creating it on first use. The
// returned broadcast funcs are handed to the match session, so events
// reach sockets that join later through the same room.
func (h *Hub) Room(matchID uuid.UUID) (match.BroadcastFunc, match.BroadcastToPlayerFunc) {
	rm := h.room(matchID)
	broadcast := func(ev match.Event) {
		msg, err := json.Marshal(ev)
		if err != nil {
			h.log.WithError(err).Error("event marshal failed")
			return
		}
		rm.broadcast(msg)
	}
	toPlayer := func(playerID uuid.UUID, ev match.Event) {
		msg, err := json.Marshal(ev)
		if err != nil {
			h.log.WithError(err).Error("event marshal failed")
			return
		}
		rm.broadcastTo(playerID, msg)
	}
	return broadcast, toPlayer
}

func (h *Hub) room(matchID uuid.UUID) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[matchID]
	if !ok {
		rm = &room{clients: make(map[*client]struct{})}
		h.rooms[matchID] = rm
	}
	return rm
}

func (h *Hub) dropRoomIfEmpty(matchID uuid.UUID, rm *room) {
	rm.mu.RLock()
	empty := len(rm.clients) == 0
	rm.mu.RUnlock()
	if !empty {
		return
	}
	h.mu.Lock()
	if cur, ok := h.rooms[matchID]; ok && cur == rm {
		delete(h.rooms, matchID)
	}
	h.mu.Unlock()
}

// ServeWS upgrades /ws/{matchID}?token=... into a match socket.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	matchID, err := uuid.Parse(r.PathValue("matchID"))
	if err != nil {
		http.Error(w, "bad match id", http.StatusBadRequest)
		return
	}
	playerID, err := h.signer.VerifySession(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	session, err := h.resumeSession(r.Context(), matchID, playerID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrMatchNotFound), errors.Is(err, match.ErrSessionNotFound):
			http.Error(w, "match not found", http.StatusNotFound)
		case errors.Is(err, store.ErrNotAuthorized), errors.Is(err, rules.ErrNotParticipant):
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			h.log.WithError(err).Error("session resume failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		return
	}

	c := newClient(playerID, conn)
	rm := h.room(matchID)
	rm.add(c)
	go c.writeLoop(r.Context())

	session.PlayerSocketOpened(playerID)
	h.log.WithFields(logrus.Fields{"match_id": matchID, "player_id": playerID}).Info("socket joined")

	h.readLoop(r.Context(), c, session)

	// The send channel is never closed: a room broadcast snapshotted
	// before removal may still enqueue. The write loop exits with the
	// request context instead.
	rm.remove(c)
	session.PlayerSocketClosed(playerID)
	h.dropRoomIfEmpty(matchID, rm)
	h.log.WithFields(logrus.Fields{"match_id": matchID, "player_id": playerID}).Info("socket left")
}

// resumeSession finds the live session or restores one from storage.
// Restoring covers server restarts with matches still marked active.
func (h *Hub) resumeSession(ctx context.Context, matchID, playerID uuid.UUID) (*match.Session, error) {
	if session, err := h.registry.Get(matchID); err == nil {
		if _, verr := session.ViewFor(playerID); verr != nil {
			return nil, verr
		}
		return session, nil
	}
	if h.loader == nil {
		return nil, match.ErrSessionNotFound
	}
	live, err := h.loader.LoadMatch(ctx, matchID, playerID)
	if err != nil {
		return nil, err
	}
	if live.State.Status != rules.StatusActive {
		return nil, match.ErrSessionNotFound
	}
	// Reseat the bots and carry the strike counters over, so a resumed
	// solo match keeps its opponent and nobody's clock resets for free.
	botSeats := make(map[uuid.UUID]ai.Tier, len(live.BotSeats))
	for id, tier := range live.BotSeats {
		botSeats[id] = ai.Tier(tier)
	}
	broadcast, toPlayer := h.Room(matchID)
	return h.registry.Create(live.State, match.CreateOptions{
		BotSeats:          botSeats,
		InitialStrikes:    live.Strikes,
		Broadcast:         broadcast,
		BroadcastToPlayer: toPlayer,
	}), nil
}

func (h *Hub) readLoop(ctx context.Context, c *client, session *match.Session) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(c, "bad_message", "message is not valid JSON")
			continue
		}
		h.dispatch(ctx, c, session, msg)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *client, session *match.Session, msg ClientMessage) {
	var err error
	switch msg.Type {
	case "place_card":
		err = session.SubmitMove(ctx, c.playerID, msg.CardID, rules.Position{Row: msg.Row, Col: msg.Col})
	case "pass":
		err = session.Pass(ctx, c.playerID)
	case "surrender":
		err = session.Surrender(ctx, c.playerID)
	case "sync":
		var view match.ViewState
		view, err = session.ViewFor(c.playerID)
		if err == nil {
			h.sendEvent(c, match.Event{Type: match.EventStateSync, Player: c.playerID, State: &view})
		}
	default:
		h.sendError(c, "unknown_type", "unrecognized message type")
		return
	}
	if err != nil {
		h.sendError(c, errorCode(err), err.Error())
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, rules.ErrNotYourTurn):
		return "not_your_turn"
	case errors.Is(err, rules.ErrCardNotInHand):
		return "card_not_in_hand"
	case errors.Is(err, rules.ErrInvalidPosition):
		return "invalid_position"
	case errors.Is(err, rules.ErrCellOccupied):
		return "cell_occupied"
	case errors.Is(err, rules.ErrMatchOver), errors.Is(err, match.ErrSerializerClosed):
		return "match_over"
	case errors.Is(err, match.ErrPersistFailed):
		return "try_again"
	default:
		return "rejected"
	}
}

func (h *Hub) sendEvent(c *client, ev match.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Error("event marshal failed")
		return
	}
	c.enqueue(msg)
}

func (h *Hub) sendError(c *client, code, detail string) {
	msg, err := json.Marshal(map[string]any{
		"type":    "error",
		"payload": map[string]string{"code": code, "detail": detail},
	})
	if err != nil {
		return
	}
	c.enqueue(msg)
}
