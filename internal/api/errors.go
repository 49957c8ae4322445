package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atmx/settlement-engine/internal/model"
	"github.com/atmx/settlement-engine/internal/store"
)

// statusFor maps an engine error onto an HTTP status by category.
func statusFor(err error) int {
	if errors.Is(err, model.ErrUnknownAgreement) || errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	switch model.KindOf(err) {
	case "precondition":
		return http.StatusConflict
	case "authorization":
		return http.StatusForbidden
	case "arithmetic":
		return http.StatusUnprocessableEntity
	case "oracle":
		return http.StatusBadGateway
	case "custody":
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure reports err with the status of its category. Internal errors
// are not echoed to the client.
func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"kind":  model.KindOf(err),
	})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
