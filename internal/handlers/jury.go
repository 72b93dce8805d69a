package handlers

import (
	"net/http"

	"github.com/diewo77/theses-app/internal/httpx"
	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/services"
)

type JuryHandler struct{ Svc *services.JuryService }

func NewJuryHandler(svc *services.JuryService) *JuryHandler { return &JuryHandler{Svc: svc} }

// juryView decorates a jury with its displayed status label.
type juryView struct {
	models.Jury
	StatutAffiche string `json:"statut_affiche"`
}

// Collection: GET|POST /jurys
func (h *JuryHandler) Collection(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		js, err := h.Svc.List(r.Context(), ident)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		views := make([]juryView, 0, len(js))
		for _, j := range js {
			views = append(views, juryView{Jury: j, StatutAffiche: j.StatutAffiche()})
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": views, "total": len(views)})
	case http.MethodPost:
		var in services.CreateJuryInput
		if !decodeJSON(w, r, &in) {
			return
		}
		j, err := h.Svc.Create(r.Context(), ident, in)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, j)
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

// Update: POST /jurys/update?id=...
func (h *JuryHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	var in services.UpdateJuryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	j, err := h.Svc.Update(r.Context(), ident, id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, j)
}

// Delete: POST /jurys/delete?id=...
func (h *JuryHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
