package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	zlog "github.com/rs/zerolog/log"

	"github.com/beatline/beatline/internal/coreerr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zlog.Error().Err(err).Msg("http: encode response body")
	}
}

// writeError maps a core error to an HTTP status and a small JSON
// envelope, per spec.md §6's error surface. Anything that isn't a
// *coreerr.CoreError is treated as an unexpected internal failure.
func writeError(w http.ResponseWriter, err error) {
	ce, ok := coreerr.As(err)
	if !ok {
		zlog.Error().Err(err).Msg("http: unmapped error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch ce.Code {
	case coreerr.CodeValidation:
		status = http.StatusBadRequest
	case coreerr.CodeNotFound:
		status = http.StatusNotFound
	case coreerr.CodeConflict, coreerr.CodeEventNotActive:
		status = http.StatusConflict
	case coreerr.CodeVoteDenied:
		status = http.StatusTooManyRequests
	case coreerr.CodeProviderError:
		status = http.StatusBadGateway
	case coreerr.CodeInternal:
		status = http.StatusInternalServerError
	}

	body := map[string]any{
		"error":   string(ce.Code),
		"message": ce.Message,
	}
	if ce.Reason != "" {
		body["reason"] = ce.Reason
	}
	if ce.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(ce.RetryAfter.Seconds())))
		body["retryAfterSeconds"] = int(ce.RetryAfter.Seconds())
	}
	if status >= 500 {
		zlog.Error().Err(err).Str("code", string(ce.Code)).Msg("http: request failed")
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
