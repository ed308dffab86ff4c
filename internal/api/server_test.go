// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/channel"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/health"
	"github.com/parleyhq/parley/internal/otp"
	"github.com/parleyhq/parley/internal/store"
	"github.com/parleyhq/parley/internal/ws"
)

// captureMailer records sent mail for assertions.
type captureMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, body)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var codeRe = regexp.MustCompile(`\d{6}`)

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	code := codeRe.FindString(m.sent[len(m.sent)-1])
	require.NotEmpty(t, code)
	return code
}

type testEnv struct {
	server *Server
	router http.Handler
	mailer *captureMailer
	tokens *auth.Tokens
	users  *store.Users
	rooms  *store.Rooms
	msgs   *store.Messages
	bus    *channel.Bus
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db, err := store.Open(filepath.Join(t.TempDir(), "parley.sqlite"), store.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Defaults()
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.BcryptCost = 4
	cfg.RateLimitRPM = 10000
	cfg.AuthRateLimitPM = 10000
	cfg.AllowedOrigins = []string{"*"}

	bus := channel.NewBus(client, zerolog.Nop())
	hub := ws.NewHub(bus, 2, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)
	users := store.NewUsers(db)
	rooms := store.NewRooms(db)
	msgs := store.NewMessages(db)
	mailer := &captureMailer{}
	sockets := ws.NewService(hub, tokens, rooms, msgs, cfg.HistoryLimit, cfg.AllowedOrigins, zerolog.Nop())

	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewRedisChecker(client))
	hm.RegisterChecker(health.NewDatabaseChecker(db))

	srv := New(Deps{
		Config:   cfg,
		Logger:   zerolog.Nop(),
		Users:    users,
		Rooms:    rooms,
		Messages: msgs,
		Tokens:   tokens,
		OTP:      otp.NewStore(client, cfg.OTPTTL, cfg.OTPDigits, zerolog.Nop()),
		Mailer:   mailer,
		Hub:      hub,
		Sockets:  sockets,
		Health:   hm,
	})

	return &testEnv{
		server: srv,
		router: srv.Router(),
		mailer: mailer,
		tokens: tokens,
		users:  users,
		rooms:  rooms,
		msgs:   msgs,
		bus:    bus,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

// registeredUser creates an account through the real flow and returns its
// access token.
func (e *testEnv) registeredUser(t *testing.T, name string) (domain.User, string) {
	t.Helper()
	email := name + "@example.com"

	w := e.do(t, http.MethodPost, "/api/users/request-otp", "", map[string]string{"email": email})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = e.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username":  name,
		"email":     email,
		"password":  "sup3r secret pw",
		"password2": "sup3r secret pw",
		"otp":       e.mailer.lastCode(t),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		User   domain.User `json:"user"`
		Tokens auth.Pair   `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.User, resp.Tokens.Access
}

func TestRegistrationFlow(t *testing.T) {
	e := newEnv(t)
	user, token := e.registeredUser(t, "alice")
	assert.Equal(t, "alice", user.Username)
	assert.NotZero(t, user.ID)

	w := e.do(t, http.MethodGet, "/api/users/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var profile domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, user.ID, profile.ID)
	assert.Equal(t, "alice@example.com", profile.Email)
}

func TestRegisterWrongCode(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/users/request-otp", "", map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = e.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username":  "bob",
		"email":     "bob@example.com",
		"password":  "sup3r secret pw",
		"password2": "sup3r secret pw",
		"otp":       "000000",
	})
	if e.mailer.lastCode(t) == "000000" {
		t.Skip("generated the guessed code")
	}
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterPasswordMismatch(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/users/request-otp", "", map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = e.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username":  "bob",
		"email":     "bob@example.com",
		"password":  "sup3r secret pw",
		"password2": "different pw!!!",
		"otp":       e.mailer.lastCode(t),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "passwords do not match")

	// The code was not consumed; the matching retry succeeds.
	w = e.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"username":  "bob",
		"email":     "bob@example.com",
		"password":  "sup3r secret pw",
		"password2": "sup3r secret pw",
		"otp":       e.mailer.lastCode(t),
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRequestOTPExistingEmailSendsNothing(t *testing.T) {
	e := newEnv(t)
	e.registeredUser(t, "alice")
	before := e.mailer.count()

	w := e.do(t, http.MethodPost, "/api/users/request-otp", "", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, before, e.mailer.count())
}

func TestLoginAndRefresh(t *testing.T) {
	e := newEnv(t)
	e.registeredUser(t, "alice")

	w := e.do(t, http.MethodPost, "/api/users/token", "", map[string]string{
		"email":    "alice@example.com",
		"password": "sup3r secret pw",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User   domain.User `json:"user"`
		Tokens auth.Pair   `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Tokens.Refresh)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, "alice@example.com", resp.User.Email)

	w = e.do(t, http.MethodPost, "/api/users/token/refresh", "", map[string]string{"refresh": resp.Tokens.Refresh})
	require.Equal(t, http.StatusOK, w.Code)

	// Wrong password.
	w = e.do(t, http.MethodPost, "/api/users/token", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Unknown user looks identical to a bad password.
	w = e.do(t, http.MethodPost, "/api/users/token", "", map[string]string{
		"email":    "ghost@example.com",
		"password": "whatever",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	e := newEnv(t)
	user, _ := e.registeredUser(t, "alice")
	require.NoError(t, e.users.SetActive(context.Background(), user.ID, false))

	w := e.do(t, http.MethodPost, "/api/users/token", "", map[string]string{
		"email":    "alice@example.com",
		"password": "sup3r secret pw",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileRequiresAuth(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/users/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/api/chat/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	_, token := e.registeredUser(t, "alice")

	w := e.do(t, http.MethodPut, "/api/users/profile", token, map[string]string{
		"username":   "alice_f",
		"avatar_url": "https://cdn.example.com/a.png",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var user domain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "alice_f", user.Username)
}

func TestGroupRoomEndpoints(t *testing.T) {
	e := newEnv(t)
	_, aliceToken := e.registeredUser(t, "alice")
	bob, bobToken := e.registeredUser(t, "bob")
	_, carolToken := e.registeredUser(t, "carol")

	w := e.do(t, http.MethodPost, "/api/chat/rooms", aliceToken, map[string]any{
		"name":    "standup",
		"members": []int64{bob.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var room domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.Equal(t, domain.RoomGroup, room.Type)
	assert.Len(t, room.Members, 2)

	// Members can fetch, outsiders cannot.
	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/chat/rooms/%d", room.ID), bobToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/chat/rooms/%d", room.ID), carolToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Duplicate name conflicts.
	w = e.do(t, http.MethodPost, "/api/chat/rooms", aliceToken, map[string]any{"name": "standup"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unnamed group rejected.
	w = e.do(t, http.MethodPost, "/api/chat/rooms", aliceToken, map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Listing includes the room.
	w = e.do(t, http.MethodGet, "/api/chat/rooms", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
}

func TestMemberManagement(t *testing.T) {
	e := newEnv(t)
	_, aliceToken := e.registeredUser(t, "alice")
	bob, bobToken := e.registeredUser(t, "bob")
	carol, _ := e.registeredUser(t, "carol")

	w := e.do(t, http.MethodPost, "/api/chat/rooms", aliceToken, map[string]any{
		"name":    "ops",
		"members": []int64{bob.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var room domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))

	// Non-admin cannot add members.
	w = e.do(t, http.MethodPost, fmt.Sprintf("/api/chat/rooms/%d/members", room.ID), bobToken,
		map[string]int64{"user_id": carol.ID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin adds carol.
	w = e.do(t, http.MethodPost, fmt.Sprintf("/api/chat/rooms/%d/members", room.ID), aliceToken,
		map[string]int64{"user_id": carol.ID})
	require.Equal(t, http.StatusCreated, w.Code)

	// Promote bob.
	w = e.do(t, http.MethodPut, fmt.Sprintf("/api/chat/rooms/%d/members/%d", room.ID, bob.ID), aliceToken,
		map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)

	// Kick carol.
	w = e.do(t, http.MethodDelete, fmt.Sprintf("/api/chat/rooms/%d/members/%d", room.ID, carol.ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Demote bob back, then alice is the last admin again.
	w = e.do(t, http.MethodPut, fmt.Sprintf("/api/chat/rooms/%d/members/%d", room.ID, bob.ID), aliceToken,
		map[string]string{"role": "member"})
	require.Equal(t, http.StatusOK, w.Code)

	// Demoting the last admin conflicts.
	w = e.do(t, http.MethodPut, fmt.Sprintf("/api/chat/rooms/%d/members/%d", room.ID, room.Members[0].UserID), aliceToken,
		map[string]string{"role": "member"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLeaveRoom(t *testing.T) {
	e := newEnv(t)
	_, aliceToken := e.registeredUser(t, "alice")
	bob, bobToken := e.registeredUser(t, "bob")

	w := e.do(t, http.MethodPost, "/api/chat/rooms", aliceToken, map[string]any{
		"name":    "ephemeral",
		"members": []int64{bob.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var room domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))

	w = e.do(t, http.MethodDelete, fmt.Sprintf("/api/chat/rooms/%d", room.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["room_deleted"])

	// Last admin leaving deletes the room.
	w = e.do(t, http.MethodDelete, fmt.Sprintf("/api/chat/rooms/%d", room.ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["room_deleted"])

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/chat/rooms/%d", room.ID), aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDirectRoomEndpoint(t *testing.T) {
	e := newEnv(t)
	alice, aliceToken := e.registeredUser(t, "alice")
	bob, bobToken := e.registeredUser(t, "bob")

	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/chat/direct/%d", bob.ID), aliceToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var room domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.Equal(t, domain.RoomDirect, room.Type)

	// Second call, either direction, returns the same room with 200.
	w = e.do(t, http.MethodPost, fmt.Sprintf("/api/chat/direct/%d", alice.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var again domain.Room
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, room.ID, again.ID)

	// Unknown counterpart.
	w = e.do(t, http.MethodPost, "/api/chat/direct/9999", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Yourself.
	w = e.do(t, http.MethodPost, fmt.Sprintf("/api/chat/direct/%d", alice.ID), aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessageHistoryEndpoint(t *testing.T) {
	e := newEnv(t)
	alice, aliceToken := e.registeredUser(t, "alice")
	bob, _ := e.registeredUser(t, "bob")
	_, carolToken := e.registeredUser(t, "carol")

	ctx := context.Background()
	room, _, err := e.rooms.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := e.msgs.Create(ctx, room.ID, bob.ID, fmt.Sprintf("msg %d", i), domain.StatusSent, "", "")
		require.NoError(t, err)
	}

	w := e.do(t, http.MethodGet, fmt.Sprintf("/api/chat/rooms/%d/messages?limit=3", room.ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []domain.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg 2", msgs[0].Content)

	// Page backwards.
	w = e.do(t, http.MethodGet,
		fmt.Sprintf("/api/chat/rooms/%d/messages?limit=3&before=%d", room.ID, msgs[0].ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)

	// Outsiders are rejected.
	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/chat/rooms/%d/messages", room.ID), carolToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateMessageEndpoint(t *testing.T) {
	e := newEnv(t)
	alice, aliceToken := e.registeredUser(t, "alice")
	bob, _ := e.registeredUser(t, "bob")
	_, carolToken := e.registeredUser(t, "carol")

	ctx := context.Background()
	room, _, err := e.rooms.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	path := fmt.Sprintf("/api/chat/rooms/%d/messages", room.ID)
	w := e.do(t, http.MethodPost, path, aliceToken, map[string]string{"content": "hello over rest"})
	require.Equal(t, http.StatusCreated, w.Code)

	var msg domain.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, "hello over rest", msg.Content)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, domain.StatusSent, msg.Status)

	// Persisted and visible through history.
	got, err := e.msgs.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello over rest", got.Content)

	// Empty body and outsiders are rejected.
	w = e.do(t, http.MethodPost, path, aliceToken, map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPost, path, carolToken, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateMessageNotifiesMembers(t *testing.T) {
	e := newEnv(t)
	alice, aliceToken := e.registeredUser(t, "alice")
	bob, _ := e.registeredUser(t, "bob")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	room, _, err := e.rooms.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	events, err := e.bus.Subscribe(ctx, channel.UserChannel(bob.ID))
	require.NoError(t, err)

	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/chat/rooms/%d/messages", room.ID), aliceToken,
		map[string]string{"content": "psst"})
	require.Equal(t, http.StatusCreated, w.Code)

	select {
	case env := <-events:
		var out ws.Outbound
		require.NoError(t, json.Unmarshal(env.Payload, &out))
		assert.Equal(t, ws.EventNotification, out.Type)
		assert.Equal(t, room.ID, out.RoomID)
		require.NotNil(t, out.Message)
		assert.Equal(t, "psst", out.Message.Content)
		assert.Equal(t, alice.ID, out.Message.SenderID)
	case <-time.After(3 * time.Second):
		t.Fatal("no notification on the recipient's channel")
	}
}

func TestDeleteMessageEndpoint(t *testing.T) {
	e := newEnv(t)
	alice, aliceToken := e.registeredUser(t, "alice")
	bob, bobToken := e.registeredUser(t, "bob")

	ctx := context.Background()
	room, _, err := e.rooms.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := e.msgs.Create(ctx, room.ID, alice.ID, "oops", domain.StatusSent, "", "")
	require.NoError(t, err)

	// Only the sender may delete.
	w := e.do(t, http.MethodDelete, fmt.Sprintf("/api/chat/messages/%d", msg.ID), bobToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodDelete, fmt.Sprintf("/api/chat/messages/%d", msg.ID), aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var deleted domain.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &deleted))
	assert.NotNil(t, deleted.DeletedAt)
	assert.Empty(t, deleted.Content)
}

func TestReactionEndpoints(t *testing.T) {
	e := newEnv(t)
	alice, _ := e.registeredUser(t, "alice")
	bob, bobToken := e.registeredUser(t, "bob")

	ctx := context.Background()
	room, _, err := e.rooms.GetOrCreateDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	msg, err := e.msgs.Create(ctx, room.ID, alice.ID, "hi", domain.StatusSent, "", "")
	require.NoError(t, err)

	path := fmt.Sprintf("/api/chat/messages/%d/reactions", msg.ID)
	w := e.do(t, http.MethodPost, path, bobToken, map[string]string{"emoji": "👍"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Duplicate conflicts.
	w = e.do(t, http.MethodPost, path, bobToken, map[string]string{"emoji": "👍"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodDelete, path, bobToken, map[string]string{"emoji": "👍"})
	require.Equal(t, http.StatusOK, w.Code)

	// Removing again is a 404.
	w = e.do(t, http.MethodDelete, path, bobToken, map[string]string{"emoji": "👍"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp health.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Ready)
	assert.Len(t, resp.Checks, 2)
}

func TestUnknownRouteIs404JSON(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}
