package handlers

import (
	"net/http"

	"github.com/diewo77/theses-app/internal/httpx"
	"github.com/diewo77/theses-app/internal/services"
)

type SessionHandler struct{ Svc *services.SessionService }

func NewSessionHandler(svc *services.SessionService) *SessionHandler {
	return &SessionHandler{Svc: svc}
}

// Collection: GET|POST /sessions
func (h *SessionHandler) Collection(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		sessions, err := h.Svc.List(r.Context(), ident)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": sessions, "total": len(sessions)})
	case http.MethodPost:
		var in services.CreateSessionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		sessions, err := h.Svc.Create(r.Context(), ident, in)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, map[string]any{"items": sessions, "total": len(sessions)})
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

// Visa: POST /sessions/visa?id=...
func (h *SessionHandler) Visa(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	id, ok := queryID(w, r)
	if !ok {
		return
	}
	var req struct {
		Type string `json:"type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.Svc.Visa(r.Context(), ident, id, req.Type)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

// Update: POST /sessions/update?id=...
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	id, ok := queryID(w, r)
	if !ok {
		return
	}
	var in services.UpdateSessionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	sess, err := h.Svc.Update(r.Context(), ident, id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

// Delete: POST /sessions/delete?id=...
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	id, ok := queryID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Delete(r.Context(), ident, id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
