// Package master implements the scheduler's HTTP control API: auth gating,
// allocator orchestration, registry consistency, and the reaper. Modeled on
// the teacher's internal/api package for its chi middleware stack and
// handler shape — but spec.md's External Interfaces table documents flat,
// unenveloped response bodies (e.g. `201 {"job_id": "<id>"}`), so unlike
// the teacher's `{"data": ...}`/`{"error": ...}` wrapper this package
// writes payloads directly.
package master

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes a JSON-encoded response with the given status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Ok writes a 200 OK response with payload as the literal response body.
func Ok(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, payload)
}

// Created writes a 201 Created response with payload as the literal
// response body.
func Created(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusCreated, payload)
}

type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func errJSON(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Message: message, Code: code})
}

// ErrBadRequest writes a 400 Bad Request error response.
func ErrBadRequest(w http.ResponseWriter, message string) {
	errJSON(w, http.StatusBadRequest, message, "bad_request")
}

// ErrUnauthorized writes a 401 Unauthorized error response.
func ErrUnauthorized(w http.ResponseWriter) {
	errJSON(w, http.StatusUnauthorized, "authentication required", "unauthorized")
}

// ErrNotFound writes a 404 Not Found error response.
func ErrNotFound(w http.ResponseWriter) {
	errJSON(w, http.StatusNotFound, "job not found", "not_found")
}

// ErrInternal writes a 500 Internal Server Error response. The underlying
// error detail is intentionally not exposed to the client — callers log it.
func ErrInternal(w http.ResponseWriter) {
	errJSON(w, http.StatusInternalServerError, "an internal error occurred", "internal_error")
}

// decodeJSON decodes the request body into dst, capping the body at 1 MiB.
// Returns false and writes a 400 if decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		ErrBadRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}
