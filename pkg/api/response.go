package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Error codes returned in the envelope.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeStorage        = "storage_error"
	CodeInternal       = "internal_error"
	CodeTooLarge       = "request_too_large"
)

// ErrorResponse is the body of every non-streaming error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// OKResponse acknowledges an operation with no other result.
type OKResponse struct {
	OK bool `json:"ok"`
}

// WriteJSON writes v as the JSON body with the given status.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.DebugContext(r.Context(), "failed to write response body", "error", err)
	}
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteJSON(w, r, status, ErrorResponse{Error: message, Code: code})
}

// WriteFieldError writes an invalid_request envelope naming the field.
func WriteFieldError(w http.ResponseWriter, r *http.Request, field, message string) {
	WriteJSON(w, r, http.StatusBadRequest, ErrorResponse{
		Error: message,
		Code:  CodeInvalidRequest,
		Field: field,
	})
}

// WriteOK writes {"ok": true}.
func WriteOK(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r, http.StatusOK, OKResponse{OK: true})
}

// BodyError reports a request body that could not be decoded.
type BodyError struct {
	Status int
	Err    error
}

func (e *BodyError) Error() string {
	return e.Err.Error()
}

func (e *BodyError) Unwrap() error {
	return e.Err
}

// DecodeJSON decodes the request body into v, reading at most limit bytes.
// Trailing data after the first JSON value is rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &BodyError{
				Status: http.StatusRequestEntityTooLarge,
				Err:    fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit),
			}
		}
		if errors.Is(err, io.EOF) {
			return &BodyError{Status: http.StatusBadRequest, Err: errors.New("request body is empty")}
		}
		return &BodyError{Status: http.StatusBadRequest, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if dec.More() {
		return &BodyError{Status: http.StatusBadRequest, Err: errors.New("invalid JSON: unexpected data after body")}
	}
	return nil
}

// WriteBodyError writes the envelope for an error returned by DecodeJSON.
func WriteBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var be *BodyError
	if errors.As(err, &be) {
		code := CodeInvalidRequest
		if be.Status == http.StatusRequestEntityTooLarge {
			code = CodeTooLarge
		}
		WriteError(w, r, be.Status, code, be.Error())
		return
	}
	WriteError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
}
