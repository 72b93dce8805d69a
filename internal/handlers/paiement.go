package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/theses-app/internal/httpx"
	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/services"
)

type PaiementHandler struct{ Svc *services.PaiementService }

func NewPaiementHandler(svc *services.PaiementService) *PaiementHandler {
	return &PaiementHandler{Svc: svc}
}

// Collection: GET|POST /paiements
func (h *PaiementHandler) Collection(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		var etudiantID uint
		if v := r.URL.Query().Get("etudiant_id"); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				httpx.JSONError(w, http.StatusBadRequest, "invalid_etudiant_id", nil)
				return
			}
			etudiantID = uint(n)
		}
		ps, err := h.Svc.List(r.Context(), ident, etudiantID)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": ps, "total": len(ps)})
	case http.MethodPost:
		var in services.CreatePaiementInput
		if !decodeJSON(w, r, &in) {
			return
		}
		p, err := h.Svc.Create(r.Context(), ident, in)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, p)
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

// UpdateStatus: POST /paiements/status?id=...
func (h *PaiementHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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
		Status models.PaiementStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.Svc.UpdateStatus(r.Context(), ident, id, req.Status)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Update: POST /paiements/update?id=...
func (h *PaiementHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	var in services.UpdatePaiementInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.Svc.Update(r.Context(), ident, id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Stats: GET /paiements/stats
func (h *PaiementHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	stats, err := h.Svc.Stats(r.Context(), ident)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
