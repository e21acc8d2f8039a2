package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/fake-audience/backend/internal/model/persona"
	"github.com/zhouzirui/fake-audience/backend/internal/service/ai"
	"github.com/zhouzirui/fake-audience/backend/internal/service/audience"
	"github.com/zhouzirui/fake-audience/backend/internal/service/hub"
	"github.com/zhouzirui/fake-audience/backend/internal/service/session"
)

type envelope struct {
	Type     string          `json:"type"`
	StreamID string          `json:"streamId"`
	Data     json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := audience.DefaultConfig()
	cfg.IdleMin = time.Hour
	cfg.IdleMax = time.Hour
	cfg.DriftInterval = 0
	cfg.Stagger = 0

	registry := session.NewRegistry(context.Background())
	rooms := hub.New()
	sched := audience.New(cfg, registry, rooms, persona.Seed(), ai.NewGenerator(nil, 0), audience.WithSeed(1))
	t.Cleanup(sched.Close)

	r := chi.NewRouter()
	NewWebSocketHandler(sched, rooms, registry).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if env := readUntil(t, conn, replyConnected); env.Type != replyConnected {
		t.Fatalf("expected connected, got %s", env.Type)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteJSON(inboundMessage{Type: typ, Data: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil skips envelopes until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if env.Type == typ {
			return env
		}
	}
}

func TestStartSpeechStopFlow(t *testing.T) {
	srv := newTestServer(t)
	streamer := dial(t, srv)

	send(t, streamer, TypeStartAudience, "s1")
	env := readUntil(t, streamer, audience.EventAudienceUpdate)
	if env.StreamID != "s1" || string(env.Data) != "5" {
		t.Fatalf("unexpected audience update %+v", env)
	}

	viewer := dial(t, srv)
	send(t, viewer, TypeJoinStream, "s1")
	readUntil(t, viewer, replyJoined)
	if env := readUntil(t, viewer, audience.EventAudienceUpdate); string(env.Data) != "5" {
		t.Fatalf("late joiner expected current count, got %s", env.Data)
	}

	send(t, streamer, TypeSpeechDetected, map[string]any{
		"streamId":      "s1",
		"speechContent": "hello xqc",
		"confidence":    0.9,
	})
	env = readUntil(t, viewer, audience.EventFakeChat)
	var msg struct {
		Username string `json:"username"`
		IsFake   bool   `json:"isFake"`
	}
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	if msg.Username != "xQc" || !msg.IsFake {
		t.Fatalf("expected xQc to answer the mention, got %+v", msg)
	}

	send(t, streamer, TypeStopAudience, "s1")
	readUntil(t, viewer, audience.EventStreamStopped)
}

func TestRealChatPassthrough(t *testing.T) {
	srv := newTestServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	send(t, a, TypeJoinStream, map[string]string{"streamId": "room"})
	readUntil(t, a, replyJoined)
	send(t, b, TypeJoinStream, "room")
	readUntil(t, b, replyJoined)

	send(t, a, TypeChatMessage, map[string]string{"streamId": "room", "username": "amy", "message": "hi all"})
	env := readUntil(t, b, audience.EventRealChat)

	var msg struct {
		Username string `json:"username"`
		Message  string `json:"message"`
		IsReal   bool   `json:"isReal"`
	}
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	if msg.Username != "amy" || msg.Message != "hi all" || !msg.IsReal {
		t.Fatalf("unexpected chat %+v", msg)
	}
}

func TestUnsupportedTypeRepliesError(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	send(t, conn, "dance", "s1")
	env := readUntil(t, conn, replyError)

	var body map[string]string
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(body["message"], "dance") {
		t.Fatalf("unexpected error message %q", body["message"])
	}

	send(t, conn, TypePing, nil)
	readUntil(t, conn, replyPong)
}

func TestStreamIDFrom(t *testing.T) {
	cases := []struct {
		name string
		msg  inboundMessage
		want string
	}{
		{"bare string", inboundMessage{Data: json.RawMessage(`" s1 "`)}, "s1"},
		{"object", inboundMessage{Data: json.RawMessage(`{"streamId":"s2","person":"abi"}`)}, "s2"},
		{"envelope", inboundMessage{StreamID: "s3", Data: json.RawMessage(`{"person":"abi"}`)}, "s3"},
		{"empty", inboundMessage{}, ""},
	}
	for _, tc := range cases {
		if got := streamIDFrom(&tc.msg); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
