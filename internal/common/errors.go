package common

import (
	"errors"
	"net/http"
)

// Kind classifies an error by how the caller should recover from it.
type Kind string

const (
	// KindValidation is a local precondition failure; re-prompt, no network call was made.
	KindValidation Kind = "validation"
	// KindCollaborator is a business-logic rejection from a backend collaborator.
	KindCollaborator Kind = "collaborator"
	// KindNetwork is a transport failure talking to a collaborator; retryable by the user.
	KindNetwork Kind = "network"
	// KindAmbiguousPayment marks a verification failure after the gateway reported success.
	KindAmbiguousPayment Kind = "ambiguous_payment"
	// KindBusy rejects a duplicate submission while another request is in flight.
	KindBusy Kind = "busy"
	// KindConflict is an operation attempted from a state that does not allow it.
	KindConflict Kind = "conflict"
	// KindInternal covers misconfiguration and unexpected failures.
	KindInternal Kind = "internal"
)

// AppError represents an error with an attached kind, code and HTTP status.
type AppError struct {
	Kind       Kind
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(kind Kind, code, message string, err error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, HTTPStatus: statusFor(kind), Err: err}
}

// Validation builds a KindValidation error wrapping err.
func Validation(code, message string, err error) *AppError {
	return NewAppError(KindValidation, code, message, err)
}

// Collaborator builds a KindCollaborator error; message is the collaborator's text, verbatim.
func Collaborator(code, message string, err error) *AppError {
	return NewAppError(KindCollaborator, code, message, err)
}

// Network builds a KindNetwork error.
func Network(code string, err error) *AppError {
	return NewAppError(KindNetwork, code, "service temporarily unavailable, please retry", err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// KindOf returns the kind of the first AppError in the chain, or KindInternal.
func KindOf(err error) Kind {
	var target *AppError
	if errors.As(err, &target) && target.Kind != "" {
		return target.Kind
	}
	return KindInternal
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindCollaborator:
		return http.StatusUnprocessableEntity
	case KindNetwork:
		return http.StatusBadGateway
	case KindAmbiguousPayment:
		return http.StatusAccepted
	case KindBusy, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
