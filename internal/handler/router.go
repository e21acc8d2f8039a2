package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/fake-audience/backend/internal/analysis/facematch"
	aiHandler "github.com/zhouzirui/fake-audience/backend/internal/handler/ai"
	faceHandler "github.com/zhouzirui/fake-audience/backend/internal/handler/face"
	personaHandler "github.com/zhouzirui/fake-audience/backend/internal/handler/persona"
	"github.com/zhouzirui/fake-audience/backend/internal/handler/realtime"
	"github.com/zhouzirui/fake-audience/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/fake-audience/backend/internal/middleware"
	"github.com/zhouzirui/fake-audience/backend/internal/model/face"
	"github.com/zhouzirui/fake-audience/backend/internal/model/persona"
	"github.com/zhouzirui/fake-audience/backend/internal/service/hub"
	"github.com/zhouzirui/fake-audience/backend/internal/service/session"
	"github.com/zhouzirui/fake-audience/backend/pkg/utils"
)

// Dependencies 汇总路由需要的核心服务
type Dependencies struct {
	Personas    persona.Store
	Sessions    *session.Registry
	Hub         *hub.Hub
	Audience    realtime.Audience
	Faces       face.Store
	Matcher     *facematch.Matcher
	KeepSamples bool
	Generator   aiHandler.Pinger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": len(deps.Sessions.List()),
			"hub":      deps.Hub.Stats(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		personaHandler.New(deps.Personas).RegisterRoutes(api)
		stream.New(deps.Sessions, deps.Hub, 0).RegisterRoutes(api)
		faceHandler.New(deps.Faces, deps.Matcher, deps.KeepSamples).RegisterRoutes(api)
		aiHandler.New(deps.Generator).RegisterRoutes(api)
	})

	realtime.NewWebSocketHandler(deps.Audience, deps.Hub, deps.Sessions).RegisterRoutes(r)

	return r
}
