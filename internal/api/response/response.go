// Package response writes the JSON envelope the VoxelMed API speaks: success
// bodies under "data", failures under "error" with a machine-readable code
// that polling clients and the inference callback switch on.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type successEnvelope struct {
	Data any `json:"data"`
}

// errorEnvelope carries the stable error codes the handlers emit
// (INVALID_REQUEST, RESOURCE_NOT_FOUND, JOB_CONFLICT, JOB_SUPERSEDED, ...).
// Details is optional field-level context and is omitted when nil.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details,omitempty"`
	} `json:"error"`
}

func JSON(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, successEnvelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, successEnvelope{Data: data})
}

// Accepted answers requests whose work continues after the response, like job
// creation: the body carries the job id the client polls with.
func Accepted(w http.ResponseWriter, data any) {
	write(w, http.StatusAccepted, successEnvelope{Data: data})
}

// NoContent answers operations with nothing to return, like the completion
// callback and key revocation.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	var env errorEnvelope
	env.Error.Code = code
	env.Error.Message = message
	env.Error.Details = details
	write(w, status, env)
}

func write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response body", "error", err)
	}
}
