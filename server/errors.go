package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finbridge/finbridge/connector"
	"github.com/finbridge/finbridge/driver"
	"github.com/finbridge/finbridge/task"
)

var (
	// ErrUnauthorized indicates a request without credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates a request with credentials that do not match.
	ErrForbidden = errors.New("forbidden")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Message: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, task.ErrLoginFailed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, task.ErrNotFound), errors.Is(err, connector.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, task.ErrBadRequest),
		errors.Is(err, driver.ErrConnectionClosed),
		errors.Is(err, driver.ErrHeadless):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, task.ErrNotImplemented):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
