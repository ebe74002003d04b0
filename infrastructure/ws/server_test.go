package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"support-chat/auth"
	"support-chat/domain"
	"support-chat/envelope"
	"support-chat/errors"
	"support-chat/mocks"
	"support-chat/observability"
	"support-chat/services"
)

type serverFixture struct {
	conversations *mocks.MockIConversationRepository
	messages      *mocks.MockIMessageService
	eventLog      *mocks.MockIEventLog
	unread        *mocks.MockIUnreadStore
	index         *mocks.MockIMessageIndex
	publisher     *mocks.MockIPublisher
	registry      *mocks.MockIRegistry
	tokens        *auth.TokenManager
	server        *httptest.Server
}

func newServerFixture(t *testing.T) serverFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := serverFixture{
		conversations: mocks.NewMockIConversationRepository(ctrl),
		messages:      mocks.NewMockIMessageService(ctrl),
		eventLog:      mocks.NewMockIEventLog(ctrl),
		unread:        mocks.NewMockIUnreadStore(ctrl),
		index:         mocks.NewMockIMessageIndex(ctrl),
		publisher:     mocks.NewMockIPublisher(ctrl),
		registry:      mocks.NewMockIRegistry(ctrl),
		tokens:        auth.NewTokenManager([]byte("test-secret"), time.Hour),
	}

	srv := NewServer(Config{
		ConnectionBufferSize: 8,
		WriteTimeout:         time.Second,
		PingInterval:         time.Minute,
		ReplayDefaultLimit:   50,
		ReplayMaxLimit:       100,
	}, Deps{
		Log:           slog.Default(),
		Tokens:        f.tokens,
		Registry:      f.registry,
		Publisher:     f.publisher,
		Messages:      f.messages,
		Conversations: services.NewConversationService(slog.Default(), f.conversations),
		Repository:    f.conversations,
		Unread:        f.unread,
		EventLog:      f.eventLog,
		Index:         f.index,
		Stats:         observability.NewStats(),
	})

	f.server = httptest.NewServer(srv.Router())
	t.Cleanup(f.server.Close)
	return f
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestServer_Healthz(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestServer_Replay(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	f.eventLog.EXPECT().
		ReplaySince(gomock.Nil(), 50).
		Return([]envelope.Envelope{{Version: "v1", EventID: "evt-1"}}, nil)

	var body struct {
		Events []envelope.Envelope `json:"events"`
	}
	status := getJSON(t, f.server.URL+"/v1/replay", &body)

	req.Equal(http.StatusOK, status)
	req.Len(body.Events, 1)
	req.Equal("evt-1", body.Events[0].EventID)
}

func TestServer_Replay_LimitCapped(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	// Requests above the cap are clamped, not refused
	f.eventLog.EXPECT().ReplaySince(gomock.Nil(), 100).Return(nil, nil)

	status := getJSON(t, f.server.URL+"/v1/replay?limit=5000", nil)
	req.Equal(http.StatusOK, status)
}

func TestServer_Replay_UnknownCursor(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	f.eventLog.EXPECT().
		ReplaySince(gomock.Any(), 50).
		Return(nil, errors.ErrCursorNotFound)

	status := getJSON(t, f.server.URL+"/v1/replay?since_event_id=ghost", nil)
	req.Equal(http.StatusNotFound, status)
}

func TestServer_History(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.messages.EXPECT().
		List(gomock.Any(), "conv-1", 50, 0).
		Return([]domain.Message{{
			ID:             "msg-1",
			ConversationID: "conv-1",
			SenderType:     domain.SenderCustomer,
			Content:        "hello",
			CreatedAt:      created,
		}}, nil)

	var body struct {
		Messages []map[string]any `json:"messages"`
	}
	status := getJSON(t, f.server.URL+"/v1/conversations/conv-1/messages", &body)

	req.Equal(http.StatusOK, status)
	req.Len(body.Messages, 1)
	req.Equal("msg-1", body.Messages[0]["id"])
	req.Equal("hello", body.Messages[0]["content"])
	req.Equal("customer", body.Messages[0]["sender_type"])
}

func TestServer_Unread(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	f.unread.EXPECT().Get("shop-1", "cust-1").Return(3, nil)

	var body struct {
		Count int `json:"count"`
	}
	status := getJSON(t, f.server.URL+"/v1/unread?shop_id=shop-1&customer_id=cust-1", &body)

	req.Equal(http.StatusOK, status)
	req.Equal(3, body.Count)
}

func TestServer_Unread_MissingParams(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	status := getJSON(t, f.server.URL+"/v1/unread?shop_id=shop-1", nil)
	req.Equal(http.StatusBadRequest, status)
}

func TestServer_Search_MissingQuery(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	status := getJSON(t, f.server.URL+"/v1/search", nil)
	req.Equal(http.StatusBadRequest, status)
}

func TestServer_CloseConversation(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	now := time.Now().UTC()
	conv := domain.Rehydrate("conv-1", "shop-1", "cust-1", domain.StatusActive, now, now, nil)
	f.conversations.EXPECT().Find("conv-1").Return(conv, nil)
	f.conversations.EXPECT().Save(gomock.Any()).Return(nil)

	// The resulting event reaches the publisher
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Len(1))

	resp, err := http.Post(f.server.URL+"/v1/conversations/conv-1/close", "application/json", nil)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestServer_CloseConversation_AlreadyClosed(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	now := time.Now().UTC()
	conv := domain.Rehydrate("conv-1", "shop-1", "cust-1", domain.StatusClosed, now, now, nil)
	f.conversations.EXPECT().Find("conv-1").Return(conv, nil)

	resp, err := http.Post(f.server.URL+"/v1/conversations/conv-1/close", "application/json", nil)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusConflict, resp.StatusCode)
}

func TestServer_CloseConversation_Unknown(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	f.conversations.EXPECT().Find("ghost").Return(nil, errors.ErrNotFound)

	resp, err := http.Post(f.server.URL+"/v1/conversations/ghost/close", "application/json", nil)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestServer_UpdateMessage(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	f.messages.EXPECT().
		Update(gomock.Any(), "msg-1", "new text").
		Return(nil, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any())

	request, err := http.NewRequest(http.MethodPatch,
		f.server.URL+"/v1/messages/msg-1", strings.NewReader(`{"content":"new text"}`))
	req.NoError(err)
	resp, err := http.DefaultClient.Do(request)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}

func TestServer_DeleteMessage_Hard(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	f.messages.EXPECT().
		Delete(gomock.Any(), "msg-1", true).
		Return(nil, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Any())

	request, err := http.NewRequest(http.MethodDelete,
		f.server.URL+"/v1/messages/msg-1?hard=true", nil)
	req.NoError(err)
	resp, err := http.DefaultClient.Do(request)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}

// --- websocket state machine ---

func dialWS(t *testing.T, f serverFixture) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(f.server.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func staffToken(t *testing.T, f serverFixture) string {
	t.Helper()
	token, err := f.tokens.Generate(auth.ConnectionClaims{
		Role: auth.RoleStaff, UserID: "agent-1", ShopID: "shop-1",
	})
	require.NoError(t, err)
	return token
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame any) {
	t.Helper()
	payload, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestServer_WS_FrameBeforeAuthDropped(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)
	f.registry.EXPECT().Unregister(gomock.Any()).AnyTimes()
	f.registry.EXPECT().RegisterStaff(gomock.Any(), "agent-1", "shop-1", gomock.Any())

	conn := dialWS(t, f)

	// Given frames arriving before any auth: a send that would hit the
	// message service, and a keepalive ping
	writeFrame(t, conn, map[string]any{"type": "send", "content": "hello"})
	writeFrame(t, conn, map[string]any{"type": "ping"})

	// When the client authenticates on the same socket
	writeFrame(t, conn, map[string]any{"type": "auth", "token": staffToken(t, f)})

	// Then the connection survived: the first reply is the auth ack, with
	// no pong or send ack ahead of it, and the message service was never hit
	frame := readFrame(t, conn)
	req.Equal("ack", frame["type"])
	req.Equal("auth", frame["op"])
}

func TestServer_WS_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)
	f.registry.EXPECT().Unregister(gomock.Any()).AnyTimes()
	f.registry.EXPECT().RegisterStaff(gomock.Any(), "agent-1", "shop-1", gomock.Any())

	conn := dialWS(t, f)

	// Given garbage bytes and a frame failing validation
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json{{")))
	writeFrame(t, conn, map[string]any{"type": "teleport"})

	// When a valid auth follows on the same socket
	writeFrame(t, conn, map[string]any{"type": "auth", "token": staffToken(t, f)})

	// Then the socket is still usable
	frame := readFrame(t, conn)
	req.Equal("ack", frame["type"])
	req.Equal("auth", frame["op"])
}

func TestServer_WS_PingAnsweredOnlyAfterAuth(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)
	f.registry.EXPECT().Unregister(gomock.Any()).AnyTimes()
	f.registry.EXPECT().RegisterStaff(gomock.Any(), "agent-1", "shop-1", gomock.Any())

	conn := dialWS(t, f)

	// A ping before auth is dropped like any other frame
	writeFrame(t, conn, map[string]any{"type": "ping"})
	writeFrame(t, conn, map[string]any{"type": "auth", "token": staffToken(t, f)})

	frame := readFrame(t, conn)
	req.Equal("ack", frame["type"])

	// After auth the same ping gets its pong
	writeFrame(t, conn, map[string]any{"type": "ping"})
	frame = readFrame(t, conn)
	req.Equal("pong", frame["type"])
}

func TestServer_WS_CustomerAuthBindsConversation(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)
	f.registry.EXPECT().Unregister(gomock.Any()).AnyTimes()
	f.registry.EXPECT().
		RegisterCustomer(gomock.Any(), "shop-1", "cust-1", gomock.Any()).
		Return(nil)

	now := time.Now().UTC()
	existing := domain.Rehydrate("conv-1", "shop-1", "cust-1", domain.StatusActive, now, now, nil)
	f.conversations.EXPECT().FindActive("shop-1", "cust-1").Return(existing, nil)
	f.publisher.EXPECT().Publish(gomock.Any(), gomock.Len(0))

	token, err := f.tokens.Generate(auth.ConnectionClaims{
		Role: auth.RoleCustomer, ShopID: "shop-1", CustomerCode: "cust-1",
	})
	req.NoError(err)

	conn := dialWS(t, f)
	writeFrame(t, conn, map[string]any{"type": "auth", "token": token})

	frame := readFrame(t, conn)
	req.Equal("ack", frame["type"])
	req.Equal("auth", frame["op"])
	req.Equal("conv-1", frame["conversation_id"])
}

func TestServer_WS_RejectedAuthKeepsConnectionOpen(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)
	f.registry.EXPECT().Unregister(gomock.Any()).AnyTimes()
	f.registry.EXPECT().RegisterStaff(gomock.Any(), "agent-1", "shop-1", gomock.Any())

	conn := dialWS(t, f)

	// A bad token does not end the session; the client may retry
	writeFrame(t, conn, map[string]any{"type": "auth", "token": "garbage"})
	writeFrame(t, conn, map[string]any{"type": "auth", "token": staffToken(t, f)})

	frame := readFrame(t, conn)
	req.Equal("ack", frame["type"])
	req.Equal("auth", frame["op"])
}
