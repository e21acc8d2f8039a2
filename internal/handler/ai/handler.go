package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/fake-audience/backend/pkg/utils"
)

// Pinger is the health surface of the response generator.
type Pinger interface {
	Online() bool
	Ping(ctx context.Context) (string, error)
}

// Handler reports whether the completion backend answers.
type Handler struct {
	pinger Pinger
}

func New(pinger Pinger) *Handler {
	return &Handler{pinger: pinger}
}

// RegisterRoutes 注册AI健康检查路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ai/health", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.pinger == nil || !h.pinger.Online() {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"enabled": false,
			"status":  "offline",
		})
		return
	}

	start := time.Now()
	reply, err := h.pinger.Ping(r.Context())
	latency := time.Since(start).Milliseconds()
	if err != nil {
		utils.RespondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"enabled":   true,
			"status":    "error",
			"error":     err.Error(),
			"latencyMs": latency,
		})
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"enabled":   true,
		"status":    "ok",
		"reply":     strings.TrimSpace(reply),
		"latencyMs": latency,
	})
}
