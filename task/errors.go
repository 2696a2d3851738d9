// Package task runs bank-connector workflows: it orchestrates the common
// login/consent/retrieval sequence, hands human interaction to a driver,
// and provides the capability helpers (HTTP session, OAuth, Berlin-group
// consent) workflows build on.
package task

import "errors"

var (
	// ErrBadRequest indicates the caller's request body cannot be served.
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotImplemented indicates the workflow lacks a requested capability.
	ErrNotImplemented = errors.New("not implemented")
	// ErrMissingConfig indicates a required connector configuration value
	// is absent.
	ErrMissingConfig = errors.New("missing configuration")
	// ErrLoginFailed indicates the remote side rejected the credentials.
	ErrLoginFailed = errors.New("login failed")
	// ErrInvalidState indicates an unexpected remote protocol state.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnsupportedType indicates a remote value this implementation
	// cannot handle.
	ErrUnsupportedType = errors.New("unsupported type")
)
