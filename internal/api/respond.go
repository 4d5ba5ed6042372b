package api

import (
	"encoding/json"
	"net/http"

	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message with an explicit status.
func writeError(w http.ResponseWriter, status int, kind errors.Kind, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: string(kind)})
}

// writeErr maps err to its status code.
func writeErr(w http.ResponseWriter, err error) {
	kind := errors.KindOf(err)
	writeError(w, StatusFor(kind), kind, err.Error())
}

// StatusFor returns the HTTP status code for an error kind.
func StatusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindBusy, errors.KindInvalidTransition:
		return http.StatusConflict
	case errors.KindInvalidPath, errors.KindInvalidDefinition, errors.KindRenderError:
		return http.StatusBadRequest
	case errors.KindPermissionDenied:
		return http.StatusForbidden
	case errors.KindRuntimeUnavailable:
		return http.StatusServiceUnavailable
	case errors.KindRuntimeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
