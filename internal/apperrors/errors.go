// Baktainer - Label-driven Database Backup Orchestrator
// Copyright 2026 The Baktainer Authors
//
// https://github.com/baktainer/baktainer

// Package apperrors defines the error taxonomy shared across the backup
// engine: which kinds are retryable, and how the orchestrator's retry loop
// and the notifier's event classification discriminate between them.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error taxonomy's classes. It is attached to
// every error the core packages return so callers can classify failures
// without string matching.
type Kind string

const (
	// KindConfig marks invalid or inconsistent configuration. Fatal at startup.
	KindConfig Kind = "config"

	// KindValidation marks a container that cannot be backed up.
	KindValidation Kind = "validation"

	// KindSecurity marks an unsafe command shape or TLS misconfiguration.
	KindSecurity Kind = "security"

	// KindRuntime marks a transport-level container-runtime problem.
	KindRuntime Kind = "runtime"

	// KindRuntimeTimeout marks a container-runtime operation that timed out.
	KindRuntimeTimeout Kind = "runtime_timeout"

	// KindIO marks a disk-related failure: full, permission, unreadable.
	KindIO Kind = "io"

	// KindEncryption marks an authentication failure or key problem.
	KindEncryption Kind = "encryption"

	// KindIntegrity marks an empty or too-small artifact.
	KindIntegrity Kind = "integrity"
)

// Error wraps an underlying cause with a taxonomy Kind and a message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error of the given kind with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ok=false if err isn't one of
// ours (e.g. a plain I/O error that never got classified).
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Retryable reports whether the orchestrator's retry_with_backoff loop
// should retry an error of this kind. Only I/O, exec-timeout, and runtime
// errors retry; validation and security errors do not.
func Retryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindRuntime, KindRuntimeTimeout, KindIO:
		return true
	default:
		return false
	}
}
