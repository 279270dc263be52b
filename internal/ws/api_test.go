package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-gg/server/internal/ai"
	"github.com/tessera-gg/server/internal/auth"
	"github.com/tessera-gg/server/internal/match"
	"github.com/tessera-gg/server/internal/models"
	"github.com/tessera-gg/server/internal/rules"
	"github.com/tessera-gg/server/internal/store"
)

// legalMover plays the first legal move, like a minimal bot.
type legalMover struct{}

func (legalMover) ChooseMove(_ context.Context, s *rules.MatchState, playerID uuid.UUID, _ ai.Tier) (rules.Move, bool, error) {
	moves := rules.LegalMoves(s, playerID)
	if len(moves) == 0 {
		return rules.Move{}, false, nil
	}
	return moves[0], true, nil
}

// stubLoader serves one stored snapshot, like a single-row database.
type stubLoader struct {
	live *models.LiveMatch
}

func (l *stubLoader) LoadMatch(_ context.Context, matchID, playerID uuid.UUID) (*models.LiveMatch, error) {
	if l.live == nil || matchID != l.live.State.MatchID {
		return nil, store.ErrMatchNotFound
	}
	if !l.live.State.IsParticipant(playerID) {
		return nil, store.ErrNotAuthorized
	}
	return l.live, nil
}

type testServer struct {
	srv    *httptest.Server
	signer *auth.Signer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLoader(t, nil)
}

func newTestServerWithLoader(t *testing.T, loader MatchLoader) *testServer {
	t.Helper()
	signer := auth.NewSigner("test-secret")
	registry := match.NewRegistry(match.RegistryConfig{
		Mover:      legalMover{},
		ClockTiers: []time.Duration{time.Hour, time.Hour, time.Hour, time.Hour},
	})
	hub := NewHub(signer, registry, loader, nil, nil)
	api := NewAPI(signer, hub, registry, nil, 1, nil)

	mux := http.NewServeMux()
	api.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, signer: signer}
}

func (ts *testServer) createSession(t *testing.T) (uuid.UUID, string) {
	t.Helper()
	resp, err := http.Post(ts.srv.URL+"/session", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		PlayerID uuid.UUID `json:"playerId"`
		Token    string    `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEqual(t, uuid.Nil, body.PlayerID)
	require.NotEmpty(t, body.Token)
	return body.PlayerID, body.Token
}

func (ts *testServer) createMatch(t *testing.T, token string, reqBody string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/matches", bytes.NewBufferString(reqBody))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

func TestCreateMatchRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.createMatch(t, "garbage-token", `{}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	resp, err := http.Post(ts.srv.URL+"/matches", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateMatchRejectsSelfOpponent(t *testing.T) {
	ts := newTestServer(t)
	playerID, token := ts.createSession(t)

	status, _ := ts.createMatch(t, token, `{"opponentId":"`+playerID.String()+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWebsocketRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.createSession(t)
	status, body := ts.createMatch(t, token, `{"botTier":"easy"}`)
	require.Equal(t, http.StatusCreated, status)
	matchID := body["matchId"].(string)

	base := "ws" + strings.TrimPrefix(ts.srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, base+"/ws/"+matchID+"?token=bogus", nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	// A valid token for a non-participant is forbidden.
	_, otherToken := ts.createSession(t)
	_, resp, err = websocket.Dial(ctx, base+"/ws/"+matchID+"?token="+otherToken, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	_, resp, err = websocket.Dial(ctx, base+"/ws/"+uuid.NewString()+"?token="+otherToken, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn) match.Event {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev match.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func waitForEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, typ match.EventType) match.Event {
	t.Helper()
	for {
		ev := readEvent(ctx, t, conn)
		if ev.Type == typ {
			return ev
		}
	}
}

func TestSoloMatchOverSocket(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.createSession(t)

	status, body := ts.createMatch(t, token, `{"botTier":"easy"}`)
	require.Equal(t, http.StatusCreated, status)
	matchID := body["matchId"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	base := "ws" + strings.TrimPrefix(ts.srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, base+"/ws/"+matchID+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sync := waitForEvent(ctx, t, conn, match.EventStateSync)
	require.NotNil(t, sync.State)
	require.Len(t, sync.State.Hand, rules.HandSize)
	assert.Equal(t, rules.HandSize, sync.State.OpponentHandSize)

	cmd, err := json.Marshal(ClientMessage{
		Type:   "place_card",
		CardID: sync.State.Hand[0].ID,
		Row:    1,
		Col:    1,
	})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, cmd))

	waitForEvent(ctx, t, conn, match.EventActionApplied)

	// The bot seat answers; wait for the sync that shows its card down.
	for {
		ev := waitForEvent(ctx, t, conn, match.EventStateSync)
		if ev.State.OpponentHandSize == rules.HandSize-1 {
			assert.Len(t, ev.State.Hand, rules.HandSize-1)
			break
		}
	}
}

func TestResumedSoloMatchKeepsBotSeatAndStrikes(t *testing.T) {
	player, bot := uuid.New(), uuid.New()
	rng := rand.New(rand.NewSource(7))
	handA, deckA := rules.Deal(rng)
	handB, deckB := rules.Deal(rng)
	state := rules.NewMatch(uuid.New(), [2]uuid.UUID{player, bot},
		map[uuid.UUID][]rules.Card{player: handA, bot: handB},
		map[uuid.UUID][]rules.Card{player: deckA, bot: deckB})

	// Snapshot as a restarted server would find it: a solo match with
	// accumulated strikes on both seats.
	ts := newTestServerWithLoader(t, &stubLoader{live: &models.LiveMatch{
		State:    state,
		BotSeats: map[uuid.UUID]string{bot: string(ai.TierEasy)},
		Strikes:  map[uuid.UUID]int{player: 1, bot: 2},
	}})

	token, err := ts.signer.CreateSession(player)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	base := "ws" + strings.TrimPrefix(ts.srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, base+"/ws/"+state.MatchID.String()+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sync := waitForEvent(ctx, t, conn, match.EventStateSync)
	require.NotNil(t, sync.State)
	assert.Equal(t, 1, sync.State.Strikes, "persisted strikes survive the resume")
	assert.Equal(t, 2, sync.State.OpponentStrikes)

	// The bot seat must be reseated too: after the player's move the
	// opponent answers on its own, no timeout pacing involved.
	cmd, err := json.Marshal(ClientMessage{
		Type:   "place_card",
		CardID: sync.State.Hand[0].ID,
		Row:    1,
		Col:    1,
	})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, cmd))

	waitForEvent(ctx, t, conn, match.EventActionApplied)
	for {
		ev := waitForEvent(ctx, t, conn, match.EventStateSync)
		if ev.State.OpponentHandSize == rules.HandSize-1 {
			break
		}
	}
}

func TestSocketRejectsIllegalCommand(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.createSession(t)
	status, body := ts.createMatch(t, token, `{"botTier":"easy"}`)
	require.Equal(t, http.StatusCreated, status)
	matchID := body["matchId"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	base := "ws" + strings.TrimPrefix(ts.srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, base+"/ws/"+matchID+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	waitForEvent(ctx, t, conn, match.EventStateSync)

	cmd, _ := json.Marshal(ClientMessage{Type: "place_card", CardID: uuid.New(), Row: 1, Col: 1})
	require.NoError(t, conn.Write(ctx, websocket.MessageText, cmd))

	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var raw struct {
			Type    string            `json:"type"`
			Payload map[string]string `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &raw))
		if raw.Type == "error" {
			assert.Equal(t, "card_not_in_hand", raw.Payload["code"])
			return
		}
	}
}
