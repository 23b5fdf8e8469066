package api

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"codeberg.org/mutker/plantsim/internal/errors"
	"codeberg.org/mutker/plantsim/internal/logger"
	"codeberg.org/mutker/plantsim/internal/session"
	"codeberg.org/mutker/plantsim/internal/websocket"
	"github.com/go-chi/chi/v5"
)

// Handler serves the page control API.
type Handler struct {
	manager *session.Manager
	hub     *websocket.Hub
	log     logger.Logger
}

// NewHandler creates a Handler. hub may be nil, in which case no WebSocket
// endpoint is routed.
func NewHandler(m *session.Manager, hub *websocket.Hub, log logger.Logger) *Handler {
	return &Handler{
		manager: m,
		hub:     hub,
		log:     log,
	}
}

// PageInfo summarizes a running page for listings.
type PageInfo struct {
	session.Page
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	CadenceMS int64  `json:"cadence_ms"`
}

const maxCadenceMS = math.MaxInt64 / int64(time.Millisecond)

type cadenceRequest struct {
	CadenceMS int64 `json:"cadence_ms"`
}

type errorBody struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListPages(w http.ResponseWriter, _ *http.Request) {
	sessions := h.manager.Sessions()

	pages := make([]PageInfo, len(sessions))
	for i, s := range sessions {
		pages[i] = PageInfo{
			Page:      s.Page(),
			SessionID: s.ID(),
			State:     s.State().String(),
			CadenceMS: s.Cadence().Milliseconds(),
		}
	}

	h.writeJSON(w, http.StatusOK, pages)
}

func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, func(s *session.Session) error {
		_, err := s.Toggle()
		return err
	})
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, (*session.Session).Resume)
}

func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, (*session.Session).Pause)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, func(s *session.Session) error {
		s.Clear()
		return nil
	})
}

func (h *Handler) SetCadence(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, func(s *session.Session) error {
		cadence, err := decodeCadence(r)
		if err != nil {
			return err
		}
		return s.SetCadence(cadence)
	})
}

func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, h.manager.Snapshots())
}

// decodeCadence reads the request body. Values that overflow a Duration are
// rejected here; the sign is left to the scheduler.
func decodeCadence(r *http.Request) (time.Duration, error) {
	var req cadenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, errors.New().Wrap(errors.ErrInvalidArgument, err)
	}

	if req.CadenceMS > maxCadenceMS || req.CadenceMS < -maxCadenceMS {
		return 0, errors.New().WithData(errors.ErrInvalidArgument, struct {
			CadenceMS int64
		}{
			CadenceMS: req.CadenceMS,
		})
	}

	return time.Duration(req.CadenceMS) * time.Millisecond, nil
}

func (h *Handler) control(w http.ResponseWriter, r *http.Request, op func(*session.Session) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if err := op(s); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.manager.Get(chi.URLParam(r, "page"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}

	return s, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)

	status := statusOf(code)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("error_code", string(code)).Msg("Request failed")
	}

	h.writeJSON(w, status, map[string]errorBody{
		"error": {Code: code, Message: err.Error()},
	})
}

func statusOf(code errors.ErrorCode) int {
	switch code {
	case errors.ErrNotFound, errors.ErrUnknownPage:
		return http.StatusNotFound
	case errors.ErrInvalidConfig, errors.ErrInvalidArgument, errors.ErrInvalidInterval:
		return http.StatusBadRequest
	case errors.ErrUnavailable, errors.ErrAlreadyRunning:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
