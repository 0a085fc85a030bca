package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Client-attributable failures of the exchange and session lifecycle.
// Anything that is not one of these is an internal failure.
var (
	ErrInvalidTerms     = fmt.Errorf("exchange terms do not satisfy reciprocity")
	ErrSelfReference    = fmt.Errorf("cannot propose an exchange to yourself")
	ErrDuplicatePending = fmt.Errorf("an identical pending proposal already exists")
	ErrNotFound         = fmt.Errorf("resource not found")
	ErrForbidden        = fmt.Errorf("access forbidden")
	ErrNotPending       = fmt.Errorf("proposal is not pending")
	ErrExpired          = fmt.Errorf("proposal has expired")
	ErrSessionClosed    = fmt.Errorf("session has ended")
	ErrInvalidMessage   = fmt.Errorf("message payload does not match its kind")
	ErrAlreadyEnded     = fmt.Errorf("session already ended")
	ErrAlreadyExists    = fmt.Errorf("session already exists for proposal")
	ErrAuthRequired     = fmt.Errorf("authentication required")
	ErrInvalidInput     = fmt.Errorf("invalid input data")
)

var statuses = []struct {
	err    error
	status int
	code   string
}{
	{ErrInvalidTerms, http.StatusBadRequest, "invalid_terms"},
	{ErrSelfReference, http.StatusBadRequest, "self_reference"},
	{ErrDuplicatePending, http.StatusConflict, "duplicate_pending"},
	{ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrForbidden, http.StatusForbidden, "forbidden"},
	{ErrNotPending, http.StatusConflict, "not_pending"},
	{ErrExpired, http.StatusGone, "expired"},
	{ErrSessionClosed, http.StatusConflict, "session_closed"},
	{ErrInvalidMessage, http.StatusBadRequest, "invalid_message"},
	{ErrAlreadyEnded, http.StatusConflict, "already_ended"},
	{ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{ErrAuthRequired, http.StatusUnauthorized, "auth_required"},
	{ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

// HTTPStatus maps an error to the status code returned to clients.
func HTTPStatus(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Code returns a stable machine-readable code for realtime error frames.
func Code(err error) string {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return "internal"
}

// IsClientError reports whether err belongs to the client taxonomy.
func IsClientError(err error) bool {
	return HTTPStatus(err) != http.StatusInternalServerError
}
