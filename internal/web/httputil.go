package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fpang/fedpath/internal/archive"
	"github.com/fpang/fedpath/internal/chat"
	"github.com/rs/zerolog/log"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode JSON response")
	}
}

// httpError sends a JSON error response. The clientMsg is returned to the caller.
// Optional internalDetails are logged server-side but never sent to the client.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"error": clientMsg})
}

// respondPipelineError maps pipeline errors to status codes. Configuration
// errors are user-correctable, archive errors reject the upload, and service
// errors are upstream failures.
func respondPipelineError(w http.ResponseWriter, err error) {
	var (
		cfgErr  *chat.ConfigurationError
		svcErr  *chat.ServiceError
		archErr *archive.Error
	)
	switch {
	case errors.As(err, &cfgErr):
		httpError(w, http.StatusBadRequest, cfgErr.Message)
	case errors.As(err, &archErr), errors.Is(err, archive.ErrNoImages):
		httpError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &svcErr):
		httpError(w, http.StatusBadGateway, svcErr.Error(), string(svcErr.Kind))
	default:
		httpError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
