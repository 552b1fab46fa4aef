package facerecognition

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind unterscheidet die Fehlerarten an der Router-Grenze
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindProviderUnavailable
	KindBackendTimeout
	KindBackendRequestFailed
	KindUnsupportedOperation
)

func (k ErrorKind) String() string {
	switch k {
	case KindProviderUnavailable:
		return "ProviderUnavailable"
	case KindBackendTimeout:
		return "BackendTimeout"
	case KindBackendRequestFailed:
		return "BackendRequestFailed"
	case KindUnsupportedOperation:
		return "UnsupportedOperation"
	default:
		return "Unknown"
	}
}

// Sentinels für errors.Is
var (
	ErrProviderUnavailable  = &Error{Kind: KindProviderUnavailable}
	ErrBackendTimeout       = &Error{Kind: KindBackendTimeout}
	ErrBackendRequestFailed = &Error{Kind: KindBackendRequestFailed}
	ErrUnsupportedOperation = &Error{Kind: KindUnsupportedOperation}
)

// Error ist ein Fehler mit Art, Dienst und Operation
type Error struct {
	Kind       ErrorKind
	Provider   ProviderType
	Operation  Operation
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Provider != "" {
		msg += " [" + string(e.Provider) + "]"
	}
	if e.Operation != "" {
		msg += " " + string(e.Operation)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is vergleicht nur die Fehlerart, damit errors.Is(err, ErrBackendTimeout) funktioniert
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable meldet, ob ein erneuter Versuch sinnvoll sein kann
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindProviderUnavailable, KindBackendTimeout:
		return true
	case KindBackendRequestFailed:
		return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// NewError erstellt einen neuen Fehler
func NewError(kind ErrorKind, provider ProviderType, op Operation, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Operation: op, Err: err}
}

// RequestFailed erstellt einen BackendRequestFailed-Fehler mit HTTP-Status
func RequestFailed(provider ProviderType, op Operation, status int, err error) *Error {
	return &Error{Kind: KindBackendRequestFailed, Provider: provider, Operation: op, StatusCode: status, Err: err}
}

// Classify wandelt einen beliebigen Fehler in einen *Error um.
// Zeitüberschreitungen werden als BackendTimeout erkannt.
func Classify(err error, provider ProviderType, op Operation) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindBackendTimeout, provider, op, err)
	}
	return NewError(KindBackendRequestFailed, provider, op, err)
}

// KindOf gibt die Fehlerart zurück, KindUnknown für fremde Fehler
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}
