package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"warelay/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingFields),
		errors.Is(err, domain.ErrUnknownType),
		errors.Is(err, domain.ErrBadTimestamp),
		errors.Is(err, domain.ErrInvalidPhone),
		errors.Is(err, domain.ErrNoRecipients):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicatePhone),
		errors.Is(err, domain.ErrWindowClosed),
		errors.Is(err, domain.ErrCampaignState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBlockedContact):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}
