// Package realtime serves the bidirectional room channel over websocket.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/fake-audience/backend/internal/model/chat"
	"github.com/zhouzirui/fake-audience/backend/internal/service/audience"
	"github.com/zhouzirui/fake-audience/backend/internal/service/hub"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
	queueSize    = 128
)

// Inbound message types.
const (
	TypeJoinStream         = "join-stream"
	TypeLeaveStream        = "leave-stream"
	TypeStartAudience      = "start-fake-audience"
	TypeStopAudience       = "stop-fake-audience"
	TypeSpeechDetected     = "speech-detected"
	TypeFaceDetected       = "face-detected"
	TypeFaceLeft           = "face-left"
	TypeFacesLeft          = "faces-left"
	TypeCurrentFaces       = "current-faces"
	TypeChatMessage        = "chat-message"
	TypeUpdateStreamerName = "update-streamer-name"
	TypePing               = "ping"
)

// Replies addressed to the sender only.
const (
	replyConnected = "connected"
	replyJoined    = "joined"
	replyLeft      = "left"
	replyPong      = "pong"
	replyError     = "error"
)

// Audience is the scheduler surface driven by inbound events.
type Audience interface {
	Start(streamID string) (chat.Session, bool, error)
	Stop(streamID string) bool
	UpdateStreamerName(streamID, name string) error
	HandleChat(streamID, username, message string) bool
	HandleSpeech(streamID, transcript string, confidence float64) bool
	HandleFaceDetected(streamID string, sig audience.FaceSignal)
	HandleFaceLeft(streamID, person string)
	HandleFacesLeft(streamID string)
	HandleCurrentFaces(streamID string, faces []audience.PresentFace)
}

// Rooms is the membership side of the hub.
type Rooms interface {
	Join(m hub.Member, streamID string) error
	Leave(memberID, streamID string)
	Disconnect(memberID string)
}

// Sessions answers read-only session lookups.
type Sessions interface {
	Get(streamID string) (chat.Session, error)
}

// WebSocketHandler WebSocket实时通道处理器
type WebSocketHandler struct {
	audience Audience
	rooms    Rooms
	sessions Sessions
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(aud Audience, rooms Rooms, sessions Sessions) *WebSocketHandler {
	return &WebSocketHandler{
		audience: aud,
		rooms:    rooms,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	StreamID  string          `json:"streamId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type speechPayload struct {
	StreamID      string   `json:"streamId"`
	SpeechContent string   `json:"speechContent"`
	Confidence    *float64 `json:"confidence"`
}

type chatPayload struct {
	StreamID string `json:"streamId"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type streamerPayload struct {
	StreamID     string `json:"streamId"`
	StreamerName string `json:"streamerName"`
}

// client is one websocket connection. Only the writer goroutine touches the
// connection's write side; everything else goes through queue.
type client struct {
	id    string
	conn  *websocket.Conn
	queue *hub.Queue
}

// reply queues a message for this connection only.
func (c *client) reply(event, streamID string, data any) {
	msg := hub.Message{
		Event:     event,
		StreamID:  streamID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	if err := c.queue.Send(msg); err != nil {
		log.Printf("[websocket] dropped %s reply for %s: %v", event, c.id, err)
	}
}

func (c *client) sendError(streamID, message string) {
	c.reply(replyError, streamID, map[string]string{"message": message})
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	c := &client{
		id:    id,
		conn:  conn,
		queue: hub.NewQueue(id, queueSize),
	}
	log.Printf("[websocket] client %s connected from %s", c.id, r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, c)
	}()

	defer func() {
		h.rooms.Disconnect(c.id)
		c.queue.Close()
		<-writerDone
		cancel()
		conn.Close()
		log.Printf("[websocket] client %s disconnected", c.id)
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.reply(replyConnected, "", map[string]string{"clientId": c.id})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.sendError("", "invalid message")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error for %s: %v", c.id, err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleMessage(c, &msg)
	}
}

// writeLoop drains the client queue onto the wire and keeps the peer alive.
func (h *WebSocketHandler) writeLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.queue.C():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg.Envelope()); err != nil {
				log.Printf("[websocket] write to %s failed: %v", c.id, err)
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleMessage(c *client, msg *inboundMessage) {
	streamID := streamIDFrom(msg)

	switch msg.Type {
	case TypePing:
		c.reply(replyPong, streamID, nil)
	case TypeJoinStream:
		h.handleJoin(c, streamID)
	case TypeLeaveStream:
		h.rooms.Leave(c.id, streamID)
		c.reply(replyLeft, streamID, map[string]string{"streamId": streamID})
	case TypeStartAudience:
		h.handleStart(c, streamID)
	case TypeStopAudience:
		if !h.audience.Stop(streamID) {
			log.Printf("[websocket] stop ignored, stream %q not active", streamID)
		}
	case TypeSpeechDetected:
		h.handleSpeech(c, streamID, msg.Data)
	case TypeFaceDetected:
		var sig audience.FaceSignal
		if err := json.Unmarshal(msg.Data, &sig); err != nil {
			c.sendError(streamID, "invalid face-detected payload")
			return
		}
		h.audience.HandleFaceDetected(streamID, sig)
	case TypeFaceLeft:
		var left audience.FaceLeft
		if err := json.Unmarshal(msg.Data, &left); err != nil {
			c.sendError(streamID, "invalid face-left payload")
			return
		}
		h.audience.HandleFaceLeft(streamID, left.Person)
	case TypeFacesLeft:
		h.audience.HandleFacesLeft(streamID)
	case TypeCurrentFaces:
		var current audience.CurrentFaces
		if err := json.Unmarshal(msg.Data, &current); err != nil {
			c.sendError(streamID, "invalid current-faces payload")
			return
		}
		h.audience.HandleCurrentFaces(streamID, current.Faces)
	case TypeChatMessage:
		var p chatPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.sendError(streamID, "invalid chat-message payload")
			return
		}
		h.audience.HandleChat(streamID, p.Username, p.Message)
	case TypeUpdateStreamerName:
		var p streamerPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			c.sendError(streamID, "invalid update-streamer-name payload")
			return
		}
		if err := h.audience.UpdateStreamerName(streamID, p.StreamerName); err != nil {
			log.Printf("[websocket] rename ignored for %q: %v", streamID, err)
		}
	default:
		c.sendError(streamID, "unsupported message type: "+msg.Type)
	}
}

// handleJoin 加入房间，并把当前观众数单独发给新成员
func (h *WebSocketHandler) handleJoin(c *client, streamID string) {
	if err := h.rooms.Join(c.queue, streamID); err != nil {
		c.sendError(streamID, err.Error())
		return
	}
	c.reply(replyJoined, streamID, map[string]string{"streamId": streamID})

	if s, err := h.sessions.Get(streamID); err == nil {
		c.reply(audience.EventAudienceUpdate, streamID, s.AudienceSize)
	}
}

func (h *WebSocketHandler) handleStart(c *client, streamID string) {
	// The starter always watches its own room.
	if err := h.rooms.Join(c.queue, streamID); err != nil {
		c.sendError(streamID, err.Error())
		return
	}
	if _, _, err := h.audience.Start(streamID); err != nil {
		c.sendError(streamID, err.Error())
	}
}

func (h *WebSocketHandler) handleSpeech(c *client, streamID string, raw json.RawMessage) {
	var p speechPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError(streamID, "invalid speech-detected payload")
		return
	}
	confidence := 1.0
	if p.Confidence != nil {
		confidence = *p.Confidence
	}
	h.audience.HandleSpeech(streamID, p.SpeechContent, confidence)
}

// streamIDFrom accepts the id as a bare JSON string payload, as a streamId
// field of an object payload, or on the envelope itself.
func streamIDFrom(msg *inboundMessage) string {
	data := bytes.TrimSpace(msg.Data)
	if len(data) > 0 {
		switch data[0] {
		case '"':
			var id string
			if err := json.Unmarshal(data, &id); err == nil && strings.TrimSpace(id) != "" {
				return strings.TrimSpace(id)
			}
		case '{':
			var obj struct {
				StreamID string `json:"streamId"`
			}
			if err := json.Unmarshal(data, &obj); err == nil && strings.TrimSpace(obj.StreamID) != "" {
				return strings.TrimSpace(obj.StreamID)
			}
		}
	}
	return strings.TrimSpace(msg.StreamID)
}
