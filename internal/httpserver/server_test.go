package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"relaychat/internal/domain"
	"relaychat/internal/httpserver"
	"relaychat/internal/moderation"
	"relaychat/internal/security"
	"relaychat/internal/service"
	"relaychat/internal/store/blob"
	"relaychat/internal/store/sqlite"
	"relaychat/internal/ws"
)

const testOrigin = "http://localhost:3000"

type testServer struct {
	srv      *httptest.Server
	tokens   *security.TokenService
	friends  *sqlite.FriendshipRepo
	messages *sqlite.MessageRepo
	words   *sqlite.CriticalWordRepo
	subs    *sqlite.SubscriptionRepo
}

type fakeBus struct{ connected bool }

func (b fakeBus) IsConnected() bool { return b.connected }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithBus(t, nil)
}

func newTestServerWithBus(t *testing.T, bus httpserver.ConnectivityChecker) *testServer {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	log := zap.NewNop()
	friends := sqlite.NewFriendshipRepo(db)
	messages := sqlite.NewMessageRepo(db)
	words := sqlite.NewCriticalWordRepo(db)
	flags := sqlite.NewFlaggedConversationRepo(db)
	files := sqlite.NewTempFileRepo(db)
	subRepo := sqlite.NewSubscriptionRepo(db)
	subs := service.NewSubscriptionService(subRepo)

	hub := ws.NewHub(log)
	dispatcher := service.NewDispatcher(friends, messages, flags, subs,
		service.NewQuotaTracker(messages, nil), moderation.NewScanner(words, messages), hub, log)
	fileSvc := service.NewFileService(files, blobs, friends, subs, dispatcher, hub, service.FileConfig{
		TTL:      time.Hour,
		Grace:    time.Millisecond,
		MaxBytes: 1 << 20,
	}, log)
	tokens := security.NewTokenService("test-secret", time.Hour)

	router := httpserver.NewRouter(httpserver.Deps{
		Auth:           tokens,
		Dispatcher:     dispatcher,
		Messages:       service.NewMessageService(friends, messages, log),
		Friends:        service.NewFriendService(friends, subs, log),
		Files:          fileSvc,
		Hub:            hub,
		NATS:           bus,
		CORSOrigins:    []string{testOrigin},
		MaxUploadBytes: 1 << 20,
		Log:            log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, tokens: tokens, friends: friends, messages: messages, words: words, subs: subRepo}
}

func (s *testServer) token(t *testing.T, identity string) string {
	t.Helper()
	tok, err := s.tokens.CreateForIdentity(identity)
	require.NoError(t, err)
	return tok
}

func (s *testServer) befriend(t *testing.T, a, b string) {
	t.Helper()
	require.NoError(t, s.friends.Add(context.Background(), a, b))
}

func (s *testServer) makePaid(t *testing.T, identity string) {
	t.Helper()
	require.NoError(t, s.subs.Upsert(context.Background(), &domain.Subscription{
		Identity:  identity,
		Tier:      "plus",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}))
}

func (s *testServer) do(t *testing.T, method, path, identity string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, identity))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func (s *testServer) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Origin", testOrigin)
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *testServer) connect(t *testing.T, identity string) *websocket.Conn {
	t.Helper()
	conn := s.dial(t, http.Header{"Authorization": {"Bearer " + s.token(t, identity)}})
	ready := readFrame(t, conn)
	require.Equal(t, "ready", ready["type"])
	require.Equal(t, identity, ready["identity"])
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.NotContains(t, body, "nats")
}

func TestHealth_ReportsBusState(t *testing.T) {
	up := newTestServerWithBus(t, fakeBus{connected: true})
	resp, body := up.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["nats"])

	down := newTestServerWithBus(t, fakeBus{connected: false})
	_, body = down.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["nats"])
}

func TestREST_RequiresAuth(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodPost, "/api/messages", "", map[string]any{"to": "bob", "text": "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthenticated", body["code"])
}

func TestREST_SendDeliversToRecipientSocket(t *testing.T) {
	s := newTestServer(t)
	s.befriend(t, "alice", "bob")
	bob := s.connect(t, "bob")

	resp, body := s.do(t, http.MethodPost, "/api/messages", "alice", map[string]any{"to": "bob", "text": "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, false, body["flagged"])
	assert.NotZero(t, body["message_id"])

	frame := readFrame(t, bob)
	assert.Equal(t, "incoming", frame["type"])
	assert.Equal(t, "alice", frame["from"])
	assert.Equal(t, "hello", frame["text"])
	assert.Equal(t, body["message_id"], frame["message_id"])
}

func TestREST_NotFriends(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(t, http.MethodPost, "/api/messages", "alice", map[string]any{"to": "bob", "text": "hi"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "not-friends", body["code"])
	assert.Equal(t, false, body["upgrade_required"])
}

func TestREST_FreeQuota(t *testing.T) {
	s := newTestServer(t)
	s.befriend(t, "alice", "bob")

	for i := 0; i < service.FreeDailyMessageLimit; i++ {
		resp, _ := s.do(t, http.MethodPost, "/api/messages", "alice", map[string]any{"to": "bob", "text": "hi"})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "message %d", i+1)
	}

	resp, body := s.do(t, http.MethodPost, "/api/messages", "alice", map[string]any{"to": "bob", "text": "one more"})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "quota-exceeded", body["code"])
	assert.Equal(t, true, body["upgrade_required"])

	s.makePaid(t, "alice")
	resp, _ = s.do(t, http.MethodPost, "/api/messages", "alice", map[string]any{"to": "bob", "text": "paid now"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestREST_FlaggedMessage(t *testing.T) {
	s := newTestServer(t)
	s.befriend(t, "alice", "bob")
	require.NoError(t, s.words.Add(context.Background(), "scam"))

	resp, body := s.do(t, http.MethodPost, "/api/messages", "alice", map[string]any{"to": "bob", "text": "this is a SCAM"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["flagged"])
}

func TestREST_HistoryAndMarkRead(t *testing.T) {
	s := newTestServer(t)
	s.befriend(t, "alice", "bob")
	for _, text := range []string{"one", "two"} {
		resp, _ := s.do(t, http.MethodPost, "/api/messages", "alice", map[string]any{"to": "bob", "text": text})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/messages/alice", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token(t, "bob"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msgs []domain.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", *msgs[0].Text)
	assert.Equal(t, "two", *msgs[1].Text)

	resp2, body := s.do(t, http.MethodPost, "/api/messages/alice/read", "bob", nil)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, float64(2), body["updated"])

	_, body = s.do(t, http.MethodPost, "/api/messages/alice/read", "bob", nil)
	assert.Equal(t, float64(0), body["updated"])
}

func TestREST_Friends(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/friends", "alice", map[string]any{"identity": "bob"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not-found", body["code"])

	s.makePaid(t, "bob")
	resp, _ = s.do(t, http.MethodPost, "/api/friends", "alice", map[string]any{"identity": "bob"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/friends", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token(t, "alice"))
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var list []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0]["identity"])
}

func TestWS_AuthFrameHandshake(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, nil)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth", "token": s.token(t, "alice")}))
	ready := readFrame(t, conn)
	assert.Equal(t, "ready", ready["type"])
	assert.Equal(t, "alice", ready["identity"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn)["type"])
}

func TestWS_BadTokenRejectedBeforeUpgrade(t *testing.T) {
	s := newTestServer(t)
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	header := http.Header{"Origin": {testOrigin}, "Authorization": {"Bearer nope"}}

	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWS_SendAndReceive(t *testing.T) {
	s := newTestServer(t)
	s.befriend(t, "alice", "bob")
	alice := s.connect(t, "alice")
	bob := s.connect(t, "bob")

	require.NoError(t, alice.WriteJSON(map[string]any{"type": "send", "to": "bob", "text": "over the wire"}))

	delivered := readFrame(t, alice)
	assert.Equal(t, "delivered", delivered["type"])
	assert.Equal(t, "bob", delivered["to"])

	incoming := readFrame(t, bob)
	assert.Equal(t, "incoming", incoming["type"])
	assert.Equal(t, "over the wire", incoming["text"])
	assert.Equal(t, delivered["message_id"], incoming["message_id"])

	require.NoError(t, bob.WriteJSON(map[string]any{"type": "mark_read", "peer": "alice"}))
	read := readFrame(t, bob)
	assert.Equal(t, "read", read["type"])
	assert.Equal(t, float64(1), read["updated"])
}

func TestWS_MalformedFrame(t *testing.T) {
	s := newTestServer(t)
	conn := s.connect(t, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "invalid-request", frame["code"])
}

// Both ingress paths must reject the same input with the same code.
func TestIngressPathsAgree(t *testing.T) {
	s := newTestServer(t)
	s.befriend(t, "alice", "bob")
	conn := s.connect(t, "alice")

	cases := []struct {
		name  string
		input map[string]any
		code  string
	}{
		{"not friends", map[string]any{"to": "carol", "text": "hi"}, "not-friends"},
		{"blank text", map[string]any{"to": "bob", "text": "   "}, "invalid-text"},
		{"too long", map[string]any{"to": "bob", "text": strings.Repeat("x", service.MaxTextLength+1)}, "invalid-text"},
		{"no recipient", map[string]any{"text": "hi"}, "invalid-text"},
		{"client file ref", map[string]any{"to": "bob", "file_ref": "no-such-file"}, "invalid-text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, body := s.do(t, http.MethodPost, "/api/messages", "alice", tc.input)
			assert.Equal(t, tc.code, body["code"])

			frame := map[string]any{"type": "send"}
			for k, v := range tc.input {
				frame[k] = v
			}
			require.NoError(t, conn.WriteJSON(frame))
			got := readFrame(t, conn)
			assert.Equal(t, "error", got["type"])
			assert.Equal(t, tc.code, got["code"])
		})
	}
}

func sendOverWS(t *testing.T, conn *websocket.Conn, input map[string]any) map[string]any {
	t.Helper()
	frame := map[string]any{"type": "send"}
	for k, v := range input {
		frame[k] = v
	}
	require.NoError(t, conn.WriteJSON(frame))
	return readFrame(t, conn)
}

func TestIngressPathsStoreTheSameMessage(t *testing.T) {
	s := newTestServer(t)
	s.befriend(t, "alice", "bob")
	conn := s.connect(t, "alice")
	input := map[string]any{"to": "bob", "text": "hello"}

	resp, body := s.do(t, http.MethodPost, "/api/messages", "alice", input)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	delivered := sendOverWS(t, conn, input)
	require.Equal(t, "delivered", delivered["type"])
	assert.Equal(t, body["flagged"], delivered["flagged"])

	hist, err := s.messages.History(context.Background(), "alice", "bob", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)

	viaREST, viaWS := *hist[0], *hist[1]
	assert.Equal(t, body["message_id"], float64(viaREST.ID))
	assert.Equal(t, delivered["message_id"], float64(viaWS.ID))
	viaREST.ID, viaWS.ID = 0, 0
	viaREST.CreatedAt, viaWS.CreatedAt = time.Time{}, time.Time{}
	assert.Equal(t, viaREST, viaWS)
	assert.Equal(t, "hello", *viaWS.Text)
	assert.Nil(t, viaWS.FileRef)
}

func TestIngressPathsAgreeOnQuota(t *testing.T) {
	s := newTestServer(t)
	s.befriend(t, "alice", "bob")
	conn := s.connect(t, "alice")

	for i := 0; i < service.FreeDailyMessageLimit; i++ {
		resp, _ := s.do(t, http.MethodPost, "/api/messages", "alice", map[string]any{"to": "bob", "text": "hi"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	input := map[string]any{"to": "bob", "text": "one more"}
	resp, body := s.do(t, http.MethodPost, "/api/messages", "alice", input)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Equal(t, "quota-exceeded", body["code"])
	assert.Equal(t, true, body["upgrade_required"])

	got := sendOverWS(t, conn, input)
	assert.Equal(t, "error", got["type"])
	assert.Equal(t, "quota-exceeded", got["code"])
	assert.Equal(t, true, got["upgrade_required"])

	// A client-supplied file reference is not a way around the allowance.
	bogus := map[string]any{"to": "bob", "file_ref": "no-such-file"}
	for i := 0; i < 3; i++ {
		r, b := s.do(t, http.MethodPost, "/api/messages", "alice", bogus)
		assert.Equal(t, http.StatusBadRequest, r.StatusCode)
		assert.Equal(t, "invalid-text", b["code"])
		assert.Equal(t, "error", sendOverWS(t, conn, bogus)["type"])
	}

	hist, err := s.messages.History(context.Background(), "alice", "bob", 50)
	require.NoError(t, err)
	assert.Len(t, hist, service.FreeDailyMessageLimit)
}

func TestREST_OversizedBodyRejected(t *testing.T) {
	s := newTestServer(t)
	s.befriend(t, "alice", "bob")

	resp, body := s.do(t, http.MethodPost, "/api/messages", "alice",
		map[string]any{"to": "bob", "text": strings.Repeat("x", 100<<10)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid-request", body["code"])
}

func TestFiles_ShareAndDownloadOnce(t *testing.T) {
	s := newTestServer(t)
	s.befriend(t, "alice", "bob")
	s.makePaid(t, "alice")
	bob := s.connect(t, "bob")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("to", "bob"))
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("secret notes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/files", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token(t, "alice"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var shared map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&shared))
	fileID, _ := shared["file_id"].(string)
	require.NotEmpty(t, fileID)

	incoming := readFrame(t, bob)
	assert.Equal(t, "incoming", incoming["type"])
	assert.Equal(t, fileID, incoming["file_ref"])
	available := readFrame(t, bob)
	assert.Equal(t, "file-available", available["type"])
	assert.Equal(t, "notes.txt", available["name"])

	// Only the recipient can download.
	r, _ := s.do(t, http.MethodGet, "/api/files/"+fileID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, r.StatusCode)

	dl, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/files/"+fileID, nil)
	require.NoError(t, err)
	dl.Header.Set("Authorization", "Bearer "+s.token(t, "bob"))
	got, err := http.DefaultClient.Do(dl)
	require.NoError(t, err)
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)
	content, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, "secret notes", string(content))
	assert.Contains(t, got.Header.Get("Content-Disposition"), "notes.txt")

	r, _ = s.do(t, http.MethodGet, "/api/files/"+fileID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
}

func TestFiles_FreeTierRejected(t *testing.T) {
	s := newTestServer(t)
	s.befriend(t, "alice", "bob")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("to", "bob"))
	part, err := mw.CreateFormFile("file", "a.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("x"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/files", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token(t, "alice"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "paid-feature", body["code"])
}
