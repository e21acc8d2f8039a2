package stream

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zhouzirui/fake-audience/backend/internal/model/chat"
	"github.com/zhouzirui/fake-audience/backend/internal/service/hub"
	"github.com/zhouzirui/fake-audience/backend/internal/service/session"
	"github.com/zhouzirui/fake-audience/backend/pkg/utils"
)

const defaultHeartbeat = 15 * time.Second

// Sessions is the read side of the session registry.
type Sessions interface {
	List() []chat.Session
	Get(id string) (chat.Session, error)
}

// Rooms lets a read-only subscriber follow a stream's room.
type Rooms interface {
	Join(m hub.Member, streamID string) error
	Disconnect(memberID string)
}

// Handler exposes session queries and the SSE room subscription.
type Handler struct {
	sessions  Sessions
	rooms     Rooms
	heartbeat time.Duration
}

// New creates a stream handler. A non-positive heartbeat uses 15s.
func New(sessions Sessions, rooms Rooms, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Handler{
		sessions:  sessions,
		rooms:     rooms,
		heartbeat: heartbeat,
	}
}

// RegisterRoutes 注册直播会话相关路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/streams", h.handleListStreams)
	r.Get("/stream/{streamID}", h.handleGetStream)
	r.Get("/streams/{streamID}/events", h.handleEvents)
}

func (h *Handler) handleListStreams(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.sessions.List())
}

func (h *Handler) handleGetStream(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(chi.URLParam(r, "streamID"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrStreamIDRequired) {
			utils.RespondError(w, http.StatusNotFound, "Stream not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, s)
}

// handleEvents 以SSE方式订阅房间广播，仅接收不发送
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	queue := hub.NewQueue("sse-"+uuid.NewString(), 0)
	if err := h.rooms.Join(queue, streamID); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer func() {
		h.rooms.Disconnect(queue.ID())
		queue.Close()
	}()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	log.Printf("[sse] subscriber %s joined stream=%s", queue.ID(), streamID)

	if err := utils.SendSSEEvent(w, flusher, "joined", map[string]string{"streamId": streamID}); err != nil {
		log.Printf("[sse] %v", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] subscriber %s left stream=%s", queue.ID(), streamID)
			return
		case msg, ok := <-queue.C():
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, msg.Event, msg.Envelope()); err != nil {
				log.Printf("[sse] %v", err)
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}
