package handlers

import (
	"net/http"

	"github.com/diewo77/theses-app/internal/httpx"
	"github.com/diewo77/theses-app/internal/models"
	"github.com/diewo77/theses-app/internal/services"
	"github.com/diewo77/theses-app/internal/storage"
)

type MemoireHandler struct {
	Svc   *services.MemoireService
	Store storage.FileStore
}

func NewMemoireHandler(svc *services.MemoireService, store storage.FileStore) *MemoireHandler {
	return &MemoireHandler{Svc: svc, Store: store}
}

// List/Create: GET|POST /memoires
func (h *MemoireHandler) Collection(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		if idParam := r.URL.Query().Get("id"); idParam != "" {
			id, ok := queryID(w, r)
			if !ok {
				return
			}
			m, err := h.Svc.Get(r.Context(), ident, id)
			if err != nil {
				httpx.Error(w, err)
				return
			}
			httpx.JSON(w, http.StatusOK, m)
			return
		}
		ms, err := h.Svc.List(r.Context(), ident)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": ms, "total": len(ms)})
	case http.MethodPost:
		var in services.CreateMemoireInput
		if !decodeJSON(w, r, &in) {
			return
		}
		m, err := h.Svc.Create(r.Context(), ident, in)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, m)
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

// UpdateStatus: POST /memoires/status?id=...
func (h *MemoireHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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
		Status      models.MemoireStatus `json:"status"`
		Commentaire string               `json:"commentaire"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.Svc.UpdateStatus(r.Context(), ident, id, req.Status, req.Commentaire)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

// Update: POST /memoires/update?id=...
func (h *MemoireHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	var in services.UpdateMemoireInput
	if !decodeJSON(w, r, &in) {
		return
	}
	m, err := h.Svc.Update(r.Context(), ident, id, in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

// storeUpload reads the multipart "fichier" part and returns its stored URL.
func (h *MemoireHandler) storeUpload(w http.ResponseWriter, r *http.Request) (string, bool) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "fichier_manquant", nil)
		return "", false
	}
	f, header, err := r.FormFile("fichier")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "fichier_manquant", nil)
		return "", false
	}
	defer f.Close()
	url, err := h.Store.Store(header.Filename, f)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "stockage_fichier_echoue", nil)
		return "", false
	}
	return url, true
}

// UploadFinal: POST /memoires/final?id=... (multipart, champ "fichier")
func (h *MemoireHandler) UploadFinal(w http.ResponseWriter, r *http.Request) {
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
	url, ok := h.storeUpload(w, r)
	if !ok {
		return
	}
	m, err := h.Svc.UploadFinal(r.Context(), ident, id, url)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

// ValidateFinal: POST /memoires/final/validate?id=...
func (h *MemoireHandler) ValidateFinal(w http.ResponseWriter, r *http.Request) {
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
		Action string `json:"action"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.Svc.ValidateFinal(r.Context(), ident, id, req.Action)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

// Documents: GET|POST /memoires/documents?memoire_id=...
func (h *MemoireHandler) Documents(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	memoireID, ok := queryUint(w, r, "memoire_id")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		docs, err := h.Svc.ListDocuments(r.Context(), ident, memoireID)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": docs, "total": len(docs)})
	case http.MethodPost:
		url, ok := h.storeUpload(w, r)
		if !ok {
			return
		}
		doc, err := h.Svc.AddDocument(r.Context(), ident, memoireID, url)
		if err != nil {
			httpx.Error(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, doc)
	default:
		methodNotAllowed(w, "GET,POST")
	}
}

// DocumentComment: POST /memoires/documents/comment?id=...
func (h *MemoireHandler) DocumentComment(w http.ResponseWriter, r *http.Request) {
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
		Commentaire string `json:"commentaire"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	doc, err := h.Svc.UpdateDocumentComment(r.Context(), ident, id, req.Commentaire)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

// Historique: GET /memoires/historique?memoire_id=...
func (h *MemoireHandler) Historique(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	memoireID, ok := queryUint(w, r, "memoire_id")
	if !ok {
		return
	}
	hist, err := h.Svc.Historique(r.Context(), ident, memoireID)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": hist, "total": len(hist)})
}
