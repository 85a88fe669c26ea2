package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/wordrelay/internal/auth"
	"github.com/jason-s-yu/wordrelay/internal/game"
	"github.com/jason-s-yu/wordrelay/internal/models"
	"github.com/jason-s-yu/wordrelay/internal/pinyin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	siteAdmin = models.User{ID: 1, Name: "root", Role: models.RoleAdmin}
	alice     = models.User{ID: 2, Name: "alice", Role: models.RoleUser}
	bob       = models.User{ID: 3, Name: "bob", Role: models.RoleUser}
	mallory   = models.User{ID: 4, Name: "mallory", Role: models.RoleBanned}
)

type testEnv struct {
	srv   *RoomServer
	ts    *httptest.Server
	store *game.RoomStore
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	require.NoError(t, auth.Init(time.Hour))

	params := auth.HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}
	var users []models.User
	for _, u := range []models.User{siteAdmin, alice, bob, mallory} {
		h, err := auth.CreateHash("pw-"+u.Name, params)
		require.NoError(t, err)
		u.Password = h
		users = append(users, u)
	}
	dir, err := auth.NewDirectory(users)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	store := game.NewRoomStore(logger)
	table := pinyin.NewTable(map[rune]string{'猫': "mao", '米': "mi", '好': "hao"})
	srv := NewRoomServer(store, table, dir, logger)
	srv.TokenExpiry = time.Hour

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, ts: ts, store: store}
}

func tokenFor(t *testing.T, u models.User) string {
	t.Helper()
	token, err := auth.CreateJWT(u)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, as *models.User, method, path string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	require.NoError(t, err)
	if as != nil {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tokenFor(t, *as)})
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) createRoom(t *testing.T, mode string, maxPlayers int) game.RoomSummary {
	t.Helper()
	resp := e.do(t, &siteAdmin, http.MethodPost, "/rooms", createRoomRequest{Name: "lounge", Mode: mode, MaxPlayers: maxPlayers})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sum game.RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sum))
	return sum
}

func TestLoginHandler(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, nil, http.MethodPost, "/login", loginRequest{Name: "alice", Password: "pw-alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body loginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(2), body.ID)
	assert.False(t, body.Admin)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, body.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 3600, cookie.MaxAge)

	id, err := auth.AuthenticateJWT(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Name)

	resp = env.do(t, nil, http.MethodPost, "/login", loginRequest{Name: "alice", Password: "nope"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = env.do(t, nil, http.MethodPost, "/login", loginRequest{Name: "mallory", Password: "pw-mallory"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/login", strings.NewReader("{"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestRoomAdministration(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, nil, http.MethodGet, "/rooms", nil).StatusCode)
	assert.Equal(t, http.StatusForbidden,
		env.do(t, &alice, http.MethodPost, "/rooms", createRoomRequest{Name: "x", Mode: "chain", MaxPlayers: 2}).StatusCode)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, &siteAdmin, http.MethodPost, "/rooms", createRoomRequest{Name: "x", Mode: "poker", MaxPlayers: 2}).StatusCode)
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, &siteAdmin, http.MethodPost, "/rooms", createRoomRequest{Name: "x", Mode: "chain"}).StatusCode)

	sum := env.createRoom(t, "chain", 4)
	assert.Equal(t, game.ModeChain, sum.Mode)
	assert.Equal(t, game.PhaseWaiting, sum.Phase)
	path := "/rooms/" + sum.ID.String()

	resp := env.do(t, &alice, http.MethodGet, "/rooms", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []game.RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, sum.ID, list[0].ID)

	// alice is not an admin until the site admin says so
	assert.Equal(t, http.StatusForbidden, env.do(t, &alice, http.MethodPost, path+"/stop", nil).StatusCode)
	admins := []int64{siteAdmin.ID, alice.ID}
	resp = env.do(t, &siteAdmin, http.MethodPut, path, updateRoomRequest{Name: "renamed", Admins: &admins})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated game.RoomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 4, updated.MaxPlayers, "omitted max_players keeps the current limit")

	assert.Equal(t, http.StatusBadRequest,
		env.do(t, &alice, http.MethodPost, path+"/start", startRequest{Answer: "x"}).StatusCode, "chain needs a problem")
	assert.Equal(t, http.StatusBadRequest,
		env.do(t, &alice, http.MethodPost, path+"/start", startRequest{Problem: "AB"}).StatusCode, "answer is required")
	assert.Equal(t, http.StatusOK,
		env.do(t, &alice, http.MethodPost, path+"/start", startRequest{Problem: "AB", Answer: "x"}).StatusCode)
	assert.Equal(t, http.StatusOK, env.do(t, &alice, http.MethodPost, path+"/stop", nil).StatusCode)

	assert.Equal(t, http.StatusNotFound,
		env.do(t, &alice, http.MethodPost, path+"/kick", kickRequest{UserID: bob.ID}).StatusCode)

	assert.Equal(t, http.StatusBadRequest, env.do(t, &alice, http.MethodDelete, "/rooms/not-a-uuid", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, &alice, http.MethodDelete, "/rooms/"+uuid.NewString(), nil).StatusCode)
	assert.Equal(t, http.StatusNoContent, env.do(t, &alice, http.MethodDelete, path, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, env.do(t, &alice, http.MethodDelete, path, nil).StatusCode)
}

func TestStartPinyinValidatesAnswer(t *testing.T) {
	env := setupTestServer(t)
	sum := env.createRoom(t, "pinyin", 4)
	path := "/rooms/" + sum.ID.String() + "/start"

	assert.Equal(t, http.StatusBadRequest,
		env.do(t, &siteAdmin, http.MethodPost, path, startRequest{Answer: "猫狗"}).StatusCode)
	assert.Equal(t, http.StatusOK,
		env.do(t, &siteAdmin, http.MethodPost, path, startRequest{Answer: "猫"}).StatusCode)
}

// wsClient is a test-side room socket.
type wsClient struct {
	t *testing.T
	c *websocket.Conn
}

func (e *testEnv) dial(t *testing.T, u models.User, roomID uuid.UUID, query string, subprotocols ...string) *wsClient {
	t.Helper()
	if subprotocols == nil {
		subprotocols = []string{Subprotocol}
	}
	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + fmt.Sprintf("/rooms/%s/ws%s", roomID, query)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: subprotocols,
		HTTPHeader:   http.Header{"Cookie": {auth.CookieName + "=" + tokenFor(t, u)}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return &wsClient{t: t, c: c}
}

type rawServerMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (w *wsClient) read() (rawServerMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := w.c.Read(ctx)
	if err != nil {
		return rawServerMessage{}, err
	}
	var msg rawServerMessage
	require.NoError(w.t, json.Unmarshal(data, &msg))
	return msg, nil
}

// until reads messages until match accepts one.
func (w *wsClient) until(typ string, match func(json.RawMessage) bool) json.RawMessage {
	w.t.Helper()
	for {
		msg, err := w.read()
		require.NoError(w.t, err)
		if msg.Type == typ && (match == nil || match(msg.Data)) {
			return msg.Data
		}
	}
}

func (w *wsClient) view(match func(game.View) bool) game.View {
	w.t.Helper()
	var v game.View
	w.until("update", func(raw json.RawMessage) bool {
		v = game.View{}
		require.NoError(w.t, json.Unmarshal(raw, &v))
		return match == nil || match(v)
	})
	return v
}

func (w *wsClient) send(typ string, data interface{}) {
	w.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(w.t, err)
	msg, err := json.Marshal(ClientMessage{Type: typ, Data: raw})
	require.NoError(w.t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(w.t, w.c.Write(ctx, websocket.MessageText, msg))
}

func (w *wsClient) closeStatus() websocket.StatusCode {
	w.t.Helper()
	for {
		_, err := w.read()
		if err != nil {
			return websocket.CloseStatus(err)
		}
	}
}

func TestRoomSocketFlow(t *testing.T) {
	env := setupTestServer(t)
	sum := env.createRoom(t, "chain", 4)

	a := env.dial(t, alice, sum.ID, "")
	first := a.view(nil)
	assert.Equal(t, sum.ID, first.RoomID)
	assert.Equal(t, alice.ID, first.MyID)
	assert.Equal(t, game.ModeChain, first.Mode)

	b := env.dial(t, bob, sum.ID, "")
	b.view(nil)

	joined := a.until("log", func(raw json.RawMessage) bool {
		var l LogData
		require.NoError(t, json.Unmarshal(raw, &l))
		return l.Text == "bob joined"
	})
	var entry LogData
	require.NoError(t, json.Unmarshal(joined, &entry))
	assert.Equal(t, "System", entry.Who)
	assert.Len(t, entry.Time, len("15:04:05"))

	resp := env.do(t, &siteAdmin, http.MethodPost, "/rooms/"+sum.ID.String()+"/start", startRequest{Problem: "ABCD", Answer: "abcd"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	started := a.view(func(v game.View) bool { return v.Phase == game.PhasePicking })
	require.Len(t, started.Grid, 4)
	var active int64
	for _, p := range started.Players {
		if p.IsActive {
			active = p.ID
		}
	}
	require.NotZero(t, active)

	mover, watcher := a, b
	if active == bob.ID {
		mover, watcher = b, a
	}
	mover.send("action", actionData{Action: "take"})

	mine := mover.view(func(v game.View) bool { return len(v.Grid) > 0 && v.Grid[0].OwnerColorHue != nil })
	assert.Equal(t, "A", mine.Grid[0].Char)
	theirs := watcher.view(func(v game.View) bool { return len(v.Grid) > 0 && v.Grid[0].OwnerColorHue != nil })
	assert.Empty(t, theirs.Grid[0].Char, "claimed characters are private")

	// kicking closes the target socket with the kick code
	resp = env.do(t, &siteAdmin, http.MethodPost, "/rooms/"+sum.ID.String()+"/kick", kickRequest{UserID: bob.ID})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, KickedError, b.closeStatus())

	room, err := env.store.Get(sum.ID)
	require.NoError(t, err)
	_, present := room.Player(bob.ID)
	assert.False(t, present)
}

func TestRoomSocketRejections(t *testing.T) {
	env := setupTestServer(t)
	sum := env.createRoom(t, "chain", 1)

	a := env.dial(t, alice, sum.ID, "")
	a.view(nil)

	full := env.dial(t, bob, sum.ID, "")
	assert.Equal(t, JoinRejectedError, full.closeStatus())

	// spectators do not need a seat
	watcher := env.dial(t, bob, sum.ID, "?spectate=1")
	v := watcher.view(nil)
	assert.Len(t, v.Players, 1, "spectators are hidden from non-admins, including themselves")

	wrong := env.dial(t, alice, sum.ID, "", "chat")
	assert.Equal(t, BadSubprotocolError, wrong.closeStatus())
}

func TestRoomSocketClosesWithRoom(t *testing.T) {
	env := setupTestServer(t)
	sum := env.createRoom(t, "chain", 2)

	a := env.dial(t, alice, sum.ID, "")
	a.view(nil)

	resp := env.do(t, &siteAdmin, http.MethodDelete, "/rooms/"+sum.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, websocket.StatusGoingAway, a.closeStatus())
}
