package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diewo77/theses-app/internal/apperr"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// Error maps a business failure to its HTTP status and writes it as JSON.
// Non-business errors are reported as a generic 500.
func Error(w http.ResponseWriter, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	var details any
	if len(e.Fields) > 0 {
		details = e.Fields
	}
	JSONError(w, statusFor(e.Kind), e.Code, details)
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict, apperr.KindConflictOfInterest, apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case apperr.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
