package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/playlists"
	"github.com/desertthunder/vidx/internal/shared"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// Handlers contains HTTP handlers for the API.
type Handlers struct {
	svc           *playlists.Service
	refreshMaxAge time.Duration
}

// NewHandlers creates handlers over svc.
func NewHandlers(svc *playlists.Service, refreshMaxAge time.Duration) *Handlers {
	if refreshMaxAge <= 0 {
		refreshMaxAge = 24 * time.Hour
	}
	return &Handlers{svc: svc, refreshMaxAge: refreshMaxAge}
}

type createPlaylistRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Kind           string          `json:"kind"`
	FilterCriteria json.RawMessage `json:"filter_criteria"`
	Public         bool            `json:"is_public"`
	Featured       bool            `json:"is_featured"`
	AutoUpdate     *bool           `json:"auto_update"`
}

type updateCriteriaRequest struct {
	FilterCriteria json.RawMessage `json:"filter_criteria"`
	AutoUpdate     *bool           `json:"auto_update"`
}

type previewRequest struct {
	FilterCriteria json.RawMessage `json:"filter_criteria"`
	Limit          int             `json:"limit"`
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTemplates handles GET /api/templates.
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListTemplates())
}

// CreateFromTemplate handles POST /api/templates/{id}/playlists.
func (h *Handlers) CreateFromTemplate(w http.ResponseWriter, r *http.Request) {
	var overrides playlists.TemplateOverrides
	if err := decodeBody(r, &overrides, true); err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.svc.CreateFromTemplate(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"), overrides)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// CreatePlaylist handles POST /api/playlists. Kind defaults to DYNAMIC and auto_update to true.
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	kind := models.KindDynamic
	if req.Kind != "" {
		k, err := models.ParsePlaylistKind(req.Kind)
		if err != nil {
			writeError(w, err)
			return
		}
		kind = k
	}

	actor := ActorFrom(r.Context())

	if kind == models.KindStatic {
		detail, err := h.svc.CreateStatic(r.Context(), actor, playlists.CreateStaticInput{
			Name: req.Name, Description: req.Description, Public: req.Public,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, detail)
		return
	}

	criteria, err := models.DecodeCriteria(req.FilterCriteria)
	if err != nil {
		writeError(w, err)
		return
	}

	autoUpdate := true
	if req.AutoUpdate != nil {
		autoUpdate = *req.AutoUpdate
	}

	detail, err := h.svc.CreateDynamic(r.Context(), actor, playlists.CreateDynamicInput{
		Name:        req.Name,
		Description: req.Description,
		Criteria:    criteria,
		Public:      req.Public,
		AutoUpdate:  autoUpdate,
		Featured:    req.Featured,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// GetPlaylist handles GET /api/playlists/{id}.
func (h *Handlers) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Get(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// RefreshPlaylist handles POST /api/playlists/{id}/refresh.
func (h *Handlers) RefreshPlaylist(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Refresh(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// UpdateCriteria handles PUT /api/playlists/{id}/criteria.
func (h *Handlers) UpdateCriteria(w http.ResponseWriter, r *http.Request) {
	var req updateCriteriaRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	criteria, err := models.DecodeCriteria(req.FilterCriteria)
	if err != nil {
		writeError(w, err)
		return
	}
	if criteria == nil {
		writeError(w, fmt.Errorf("%w: filter_criteria is required", shared.ErrValidation))
		return
	}

	result, err := h.svc.UpdateCriteria(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"), *criteria, req.AutoUpdate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Preview handles POST /api/playlists/preview.
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	criteria, err := models.ParseCriteria(req.FilterCriteria)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Preview(r.Context(), criteria, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RefreshAll handles POST /api/playlists/refresh-all?max_age_hours=N.
func (h *Handlers) RefreshAll(w http.ResponseWriter, r *http.Request) {
	maxAge := h.refreshMaxAge
	if raw := r.URL.Query().Get("max_age_hours"); raw != "" {
		d, err := parseMaxAgeHours(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		maxAge = d
	}

	summary, err := h.svc.UpdateAll(r.Context(), ActorFrom(r.Context()), maxAge, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// maxAgeHours is the largest number of hours a time.Duration can hold.
var maxAgeHours = float64(math.MaxInt64) / float64(time.Hour)

// parseMaxAgeHours converts a fractional hour count to a duration. Sign is left to the service.
func parseMaxAgeHours(raw string) (time.Duration, error) {
	hours, err := strconv.ParseFloat(raw, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		return 0, fmt.Errorf("%w: max_age_hours is out of range", shared.ErrValidation)
	case err != nil:
		return 0, fmt.Errorf("%w: max_age_hours must be a number", shared.ErrValidation)
	case math.IsNaN(hours) || math.IsInf(hours, 0):
		return 0, fmt.Errorf("%w: max_age_hours must be a finite number", shared.ErrValidation)
	case math.Abs(hours) >= maxAgeHours:
		return 0, fmt.Errorf("%w: max_age_hours is out of range", shared.ErrValidation)
	}
	return time.Duration(hours * float64(time.Hour)), nil
}

// decodeBody reads a JSON request body. Unknown fields are ignored. An empty body is accepted when optional.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: malformed request body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrNotDynamic), errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrLockTimeout), errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
