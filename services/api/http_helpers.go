package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"assetdex/pkg/fault"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	var validation *fault.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest
	}
	var terminal *fault.TerminalError
	if errors.As(err, &terminal) {
		return http.StatusForbidden
	}
	var transient *fault.TransientError
	if errors.As(err, &transient) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 30*time.Second)
}
