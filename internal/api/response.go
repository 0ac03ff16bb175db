// BrewOps - Tea Factory Operations Platform
// Copyright 2026 BrewOps Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/brewops/brewops

// Package api exposes the HTTP surface of the messaging core. Every
// endpoint speaks the same response envelope and maps the shared error
// taxonomy onto HTTP status codes.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/brewops/brewops/internal/errdefs"
	"github.com/brewops/brewops/internal/logging"
)

// Machine-readable error codes carried in the envelope.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

// APIResponse is the uniform envelope for every JSON endpoint.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

// APIError carries a machine-readable code and a human-readable message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta carries pagination info for list endpoints.
type Meta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// respondJSON writes the envelope with the given status.
func respondJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

// respondSuccess writes a successful envelope around data.
func respondSuccess(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, APIResponse{Success: true, Data: data})
}

// respondList writes a successful envelope with pagination metadata.
func respondList(w http.ResponseWriter, data any, limit, offset, count int) {
	respondJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &Meta{Limit: limit, Offset: offset, Count: count},
	})
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
}

// respondFromError maps the shared error taxonomy to HTTP statuses.
// Storage failures are logged in full and reported generically.
func respondFromError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errdefs.IsValidation(err):
		respondError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errdefs.IsAuthentication(err):
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
	case errdefs.IsAuthorization(err):
		respondError(w, http.StatusForbidden, CodeForbidden, err.Error())
	case errdefs.IsNotFound(err):
		respondError(w, http.StatusNotFound, CodeNotFound, err.Error())
	default:
		logging.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		respondError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
