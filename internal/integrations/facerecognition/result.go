package facerecognition

import "errors"

// ErrorInfo ist die serialisierbare Form eines Fehlers
type ErrorInfo struct {
	Kind      string       `json:"kind"`
	Message   string       `json:"message"`
	Provider  ProviderType `json:"provider,omitempty"`
	Operation Operation    `json:"operation,omitempty"`
	Retryable bool         `json:"retryable"`
}

// Result ist der typisierte Rückgabewert aller Router-Operationen: {success, data?, error?}
type Result[T any] struct {
	Success bool       `json:"success"`
	Data    T          `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`

	err error
}

// Ok erstellt ein erfolgreiches Ergebnis
func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail erstellt ein fehlgeschlagenes Ergebnis
func Fail[T any](err error) Result[T] {
	info := &ErrorInfo{Kind: KindUnknown.String(), Message: err.Error()}
	var fe *Error
	if errors.As(err, &fe) {
		info.Kind = fe.Kind.String()
		info.Provider = fe.Provider
		info.Operation = fe.Operation
		info.Retryable = fe.Retryable()
	}
	return Result[T]{Success: false, Error: info, err: err}
}

// Err gibt den ursprünglichen Fehler zurück (nil bei Erfolg)
func (r Result[T]) Err() error {
	return r.err
}
