// Package httpx provides the JSON envelope shared by every endpoint.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// M is the payload merged into a success envelope.
type M map[string]any

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success writes {"success": true, "message": message, ...payload}.
func Success(w http.ResponseWriter, status int, message string, payload M) {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	if message != "" {
		body["message"] = message
	}
	JSON(w, status, body)
}

// Fail writes {"success": false, "message": message}.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"success": false, "message": message})
}

// ErrMalformedBody is returned when a request body cannot be decoded.
var ErrMalformedBody = shared.Kind(shared.ErrValidation, "malformed request body")

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrMalformedBody
		}
		return errors.Join(ErrMalformedBody, err)
	}
	return nil
}
