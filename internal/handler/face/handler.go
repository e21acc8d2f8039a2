package face

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/fake-audience/backend/internal/analysis/facematch"
	"github.com/zhouzirui/fake-audience/backend/internal/model/face"
	"github.com/zhouzirui/fake-audience/backend/pkg/utils"
)

// Handler 人脸库的HTTP处理器
type Handler struct {
	store       face.Store
	matcher     *facematch.Matcher
	keepSamples bool
}

// New 创建人脸库处理器
func New(store face.Store, matcher *facematch.Matcher, keepSamples bool) *Handler {
	if matcher == nil {
		matcher = facematch.New(facematch.DefaultThreshold)
	}
	return &Handler{
		store:       store,
		matcher:     matcher,
		keepSamples: keepSamples,
	}
}

// RegisterRoutes 注册人脸库路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/faces", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/match", h.handleMatch)
		r.Put("/{label}", h.handleEnroll)
		r.Delete("/{label}", h.handleDelete)
	})
}

type enrollRequest struct {
	Samples    []face.Descriptor `json:"samples"`
	Descriptor face.Descriptor   `json:"descriptor"`
}

type matchRequest struct {
	Descriptor face.Descriptor `json:"descriptor"`
}

type matchResponse struct {
	Matched    bool    `json:"matched"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Distance   float64 `json:"distance,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.List())
}

// handleEnroll 训练或覆盖一个身份
func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	samples := req.Samples
	if len(samples) == 0 && len(req.Descriptor) > 0 {
		samples = []face.Descriptor{req.Descriptor}
	}

	enrolled, err := face.Enroll(label, samples, h.keepSamples)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Put(enrolled); err != nil {
		log.Printf("[faces] failed to store %s: %v", enrolled.Label, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to store face")
		return
	}

	log.Printf("[faces] enrolled %s from %d samples", enrolled.Label, enrolled.SampleCount)
	utils.RespondJSON(w, http.StatusOK, enrolled)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if err := h.store.Delete(label); err != nil {
		if errors.Is(err, face.ErrFaceNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Face not found")
			return
		}
		log.Printf("[faces] failed to delete %s: %v", label, err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete face")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMatch 将描述符与人脸库比对
func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Descriptor) == 0 {
		utils.RespondError(w, http.StatusBadRequest, face.ErrEmptyDescriptor.Error())
		return
	}

	m, ok := h.matcher.Match(req.Descriptor, h.store.List())
	if !ok {
		utils.RespondJSON(w, http.StatusOK, matchResponse{Label: face.UnknownLabel})
		return
	}
	utils.RespondJSON(w, http.StatusOK, matchResponse{
		Matched:    true,
		Label:      m.Label,
		Confidence: m.Confidence,
		Distance:   m.Distance,
	})
}
