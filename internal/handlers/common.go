// Package handlers implements the collector's HTTP API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"pcinventory/internal/models"
)

// JSONResponse sends a JSON response
func JSONResponse(w http.ResponseWriter, log zerolog.Logger, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode JSON response")
	}
}

// JSONError sends the error body agents understand.
func JSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.ErrorResponse{Status: models.StatusError, Message: message})
}
