// Package handlers implements the HTTP handlers of the statekeep ops API:
// health probes, read-only catalog/run/quarantine views, coordinator stats,
// and the token-gated mutating endpoints (manual flush, quarantine deletion).
package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the envelope every API endpoint returns.
//
//   - Status is "healthy", "unhealthy", "ok" or "error"
//   - Timestamp is the server-side response time
//   - Data carries the payload when present
//   - Error carries details when Status indicates failure
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthyResponse(data any) Response {
	return Response{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthyResponse(errMsg string) Response {
	return Response{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: errMsg}
}

func unhealthyResponseWithData(data any) Response {
	return Response{Status: "unhealthy", Timestamp: time.Now().UTC(), Data: data}
}

func okResponse(data any) Response {
	return Response{Status: "ok", Timestamp: time.Now().UTC(), Data: data}
}

func errorResponse(errMsg string) Response {
	return Response{Status: "error", Timestamp: time.Now().UTC(), Error: errMsg}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Last resort; the header is already out, so this may not land.
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorResponse(detail))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusUnauthorized, errorResponse(detail))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusNotFound, errorResponse(detail))
}

// InternalServerError writes a 500 error response.
func InternalServerError(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusInternalServerError, errorResponse(detail))
}

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns false after writing a 400 response if decoding fails.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}
