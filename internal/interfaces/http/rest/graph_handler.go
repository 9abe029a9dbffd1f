package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"ideagraph-backend/internal/application"
	"ideagraph-backend/pkg/api"
	appErrors "ideagraph-backend/pkg/errors"
	"ideagraph-backend/pkg/validation"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserIDHeader identifies the caller opening a session.
const UserIDHeader = "X-User-ID"

// GraphHandler exposes the graph service over HTTP.
type GraphHandler struct {
	service *application.GraphService
	logger  *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(service *application.GraphService, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{service: service, logger: logger}
}

type openSessionRequest struct {
	SimilarityThreshold *float64 `json:"similarity_threshold" validate:"omitempty,gte=0,lte=1"`
}

type thresholdRequest struct {
	SimilarityThreshold *float64 `json:"similarity_threshold" validate:"required,gte=0,lte=1"`
}

type focusRequest struct {
	IdeaID string `json:"idea_id" validate:"required"`
}

// Routes mounts the session endpoints on r.
func (h *GraphHandler) Routes(r chi.Router) {
	r.Post("/sessions", h.OpenSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.SessionState)
		r.Delete("/", h.CloseSession)
		r.Post("/refresh", h.RefreshIdeas)
		r.Get("/graph", h.GraphData)
		r.Post("/level/micro", h.FocusIdea)
		r.Post("/level/macro", h.ReturnToMacro)
		r.Put("/threshold", h.SetThreshold)
		r.Get("/similarity", h.SimilarityBetween)
		r.Get("/similarity-edges", h.SimilarityEdges)
		r.Get("/ideas/{ideaID}/related", h.RelatedIdeas)
	})
}

// OpenSession handles POST /sessions
func (h *GraphHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		h.fail(w, r, appErrors.NewValidation(UserIDHeader+" header is required"))
		return
	}

	var req openSessionRequest
	if err := decodeOptional(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.service.OpenSession(r.Context(), userID, req.SimilarityThreshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, view)
}

// CloseSession handles DELETE /sessions/{sessionID}
func (h *GraphHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CloseSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionState handles GET /sessions/{sessionID}
func (h *GraphHandler) SessionState(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.SessionState(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, view)
}

// RefreshIdeas handles POST /sessions/{sessionID}/refresh
func (h *GraphHandler) RefreshIdeas(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RefreshIdeas(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, view)
}

// GraphData handles GET /sessions/{sessionID}/graph
func (h *GraphHandler) GraphData(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.GraphData(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, data)
}

// FocusIdea handles POST /sessions/{sessionID}/level/micro
func (h *GraphHandler) FocusIdea(w http.ResponseWriter, r *http.Request) {
	var req focusRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	data, err := h.service.FocusIdea(r.Context(), chi.URLParam(r, "sessionID"), req.IdeaID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, data)
}

// ReturnToMacro handles POST /sessions/{sessionID}/level/macro
func (h *GraphHandler) ReturnToMacro(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ReturnToMacro(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, data)
}

// SetThreshold handles PUT /sessions/{sessionID}/threshold
func (h *GraphHandler) SetThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.SetThreshold(r.Context(), chi.URLParam(r, "sessionID"), *req.SimilarityThreshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, view)
}

// SimilarityBetween handles GET /sessions/{sessionID}/similarity?a=&b=
func (h *GraphHandler) SimilarityBetween(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := h.service.SimilarityBetween(r.Context(), chi.URLParam(r, "sessionID"), query.Get("a"), query.Get("b"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, result)
}

// SimilarityEdges handles GET /sessions/{sessionID}/similarity-edges
func (h *GraphHandler) SimilarityEdges(w http.ResponseWriter, r *http.Request) {
	edges, err := h.service.SimilarityEdges(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"edges": edges})
}

// RelatedIdeas handles GET /sessions/{sessionID}/ideas/{ideaID}/related
func (h *GraphHandler) RelatedIdeas(w http.ResponseWriter, r *http.Request) {
	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, appErrors.NewValidationf("top_k must be an integer, got %q", raw))
			return
		}
		if err := validation.Var("top_k", parsed, "gte=0"); err != nil {
			h.fail(w, r, err)
			return
		}
		topK = parsed
	}

	related, err := h.service.RelatedIdeas(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "ideaID"), topK)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"related": related})
}

func (h *GraphHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	handleServiceError(w, r, h.logger, err)
}

// errNoBody reports a request without a JSON document. Chunked requests
// carry ContentLength -1 even when empty, so emptiness is judged by reading.
var errNoBody = errors.New("empty request body")

func readJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errNoBody
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errNoBody
		}
		return appErrors.NewValidation("invalid request body")
	}
	return nil
}

// decode reads a required JSON body into dst and validates it.
func decode(r *http.Request, dst interface{}) error {
	if err := readJSON(r, dst); err != nil {
		if errors.Is(err, errNoBody) {
			return appErrors.NewValidation("request body is required")
		}
		return err
	}
	return validation.Struct(dst)
}

// decodeOptional is decode for endpoints whose body may be omitted.
func decodeOptional(r *http.Request, dst interface{}) error {
	if err := readJSON(r, dst); err != nil {
		if errors.Is(err, errNoBody) {
			return nil
		}
		return err
	}
	return validation.Struct(dst)
}
