package handlers

import (
	"net/http"

	"github.com/diewo77/theses-app/internal/httpx"
	"github.com/diewo77/theses-app/internal/services"
)

type SujetHandler struct{ Svc *services.SujetService }

func NewSujetHandler(svc *services.SujetService) *SujetHandler { return &SujetHandler{Svc: svc} }

// Collection: GET|POST /sujets
func (h *SujetHandler) Collection(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		sujets, err := h.Svc.List(r.Context(), ident)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": sujets, "total": len(sujets)})
	case http.MethodPost:
		var in services.CreateSujetInput
		if !decodeJSON(w, r, &in) {
			return
		}
		sujet, err := h.Svc.Create(r.Context(), ident, in)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, sujet)
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

// Validate: POST /sujets/validate?id=...
func (h *SujetHandler) Validate(w http.ResponseWriter, r *http.Request) {
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
	sujet, err := h.Svc.Validate(r.Context(), ident, id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sujet)
}
