package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/diewo77/theses-app/internal/auth"
	"github.com/diewo77/theses-app/internal/httpx"
)

// identity extracts the caller identity; routes are behind RequireAuth so a
// missing identity is a programming error, reported as 401 anyway.
func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
	}
	return ident, ok
}

// queryID parses the "id" query parameter.
func queryID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	return queryUint(w, r, "id")
}

func queryUint(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_"+name, nil)
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil || n == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_"+name, nil)
		return 0, false
	}
	return uint(n), true
}

// decodeJSON decodes the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}
