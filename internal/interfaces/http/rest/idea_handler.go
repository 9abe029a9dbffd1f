package rest

import (
	"net/http"

	"ideagraph-backend/internal/application"
	"ideagraph-backend/internal/domain/idea"
	"ideagraph-backend/pkg/api"
	appErrors "ideagraph-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IdeaHandler exposes a user's ideas over HTTP. Bodies use the distiller's
// idea document shape.
type IdeaHandler struct {
	service *application.IdeaService
	logger  *zap.Logger
}

// NewIdeaHandler creates a new idea handler
func NewIdeaHandler(service *application.IdeaService, logger *zap.Logger) *IdeaHandler {
	return &IdeaHandler{service: service, logger: logger}
}

// Routes mounts the idea endpoints on r.
func (h *IdeaHandler) Routes(r chi.Router) {
	r.Get("/ideas", h.ListIdeas)
	r.Post("/ideas", h.SaveIdea)
	r.Get("/ideas/{ideaID}", h.GetIdea)
}

// SaveIdea handles POST /ideas
func (h *IdeaHandler) SaveIdea(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	var it idea.Idea
	if err := readJSON(r, &it); err != nil {
		if err == errNoBody {
			err = appErrors.NewValidation("request body is required")
		}
		h.fail(w, r, err)
		return
	}

	saved, err := h.service.SaveIdea(r.Context(), userID, it)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, saved)
}

// GetIdea handles GET /ideas/{ideaID}
func (h *IdeaHandler) GetIdea(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	it, err := h.service.GetIdea(r.Context(), userID, chi.URLParam(r, "ideaID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, it)
}

// ListIdeas handles GET /ideas
func (h *IdeaHandler) ListIdeas(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}

	ideas, err := h.service.ListIdeas(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ideas == nil {
		ideas = []idea.Idea{}
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"ideas": ideas})
}

func (h *IdeaHandler) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		h.fail(w, r, appErrors.NewValidation(UserIDHeader+" header is required"))
		return "", false
	}
	return userID, true
}

func (h *IdeaHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	handleServiceError(w, r, h.logger, err)
}
