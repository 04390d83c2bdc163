// Package httpjson holds the small JSON request/response helpers shared by the
// HTTP services.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// MaxBodySize limits request bodies to 1MB.
const MaxBodySize = 1 << 20

// ErrorResponse is the body written for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Write encodes v as the JSON response body with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// Error writes an ErrorResponse with the given status.
func Error(w http.ResponseWriter, status int, msg string) {
	Write(w, status, ErrorResponse{Error: msg})
}

// Decode reads a single JSON document from the request body into v.
func Decode(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodySize)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty request body")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
