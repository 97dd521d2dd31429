// Package shared centralizes JSON response envelopes so every handler
// translates domain errors the same way.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "pledgeit/pkg/domain-errors"
)

// ErrorResponse is the stable error envelope: a machine-readable kind and a
// human-readable detail.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// WriteError translates a domain error into the JSON error envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:  string(code),
		Detail: dErrors.MessageOf(err),
	})
}

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
