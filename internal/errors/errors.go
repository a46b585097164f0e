// ABOUTME: OData-shaped error responses for the fake CRM Web API.
// ABOUTME: Mirrors the {"error":{"code","message"}} envelope the real service returns.

package errors

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse is the Web API error envelope.
//
// Usage:
//
//	WriteError(w, http.StatusNotFound, ErrRecordNotFound, "contact With Id = ... Does Not Exist")
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a machine-readable code and a human-readable message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes an OData error response with the given status.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; odata.metadata=minimal")
	w.Header().Set("OData-Version", "4.0")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorBody{Code: code, Message: message}}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}

// Error codes returned by the platform.
const (
	ErrInvalidRequest   = "0x80060888"
	ErrRecordNotFound   = "0x80040217"
	ErrInvalidArgument  = "0x80048d19"
	ErrUnauthorized     = "0x80072560"
	ErrDuplicateRecord  = "0x80040237"
	ErrInternal         = "0x80040216"
	ErrMethodNotAllowed = "0x80060891"
)
