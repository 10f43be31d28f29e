// Package apierror provides standardized error response structures for the API
// and the typed failures shared by the backend and the terminal core.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}

// ── Typed failures ───────────────────────────────────────────────────────────

// Kind classifies a failure by how callers must react to it.
type Kind int

const (
	// KindValidacion is detected locally and never reaches the network.
	KindValidacion Kind = iota + 1
	// KindConflicto means the backend refused because an invariant would break;
	// callers re-sync instead of trusting local state.
	KindConflicto
	// KindNoEncontrado is a legitimate state for callers that expect it.
	KindNoEncontrado
	// KindTransporte is a network/timeout failure, retryable by the user.
	KindTransporte
	// KindProgramacion is a contract violation between components. Fatal.
	KindProgramacion
)

func (k Kind) String() string {
	switch k {
	case KindValidacion:
		return "validacion"
	case KindConflicto:
		return "conflicto"
	case KindNoEncontrado:
		return "no_encontrado"
	case KindTransporte:
		return "transporte"
	case KindProgramacion:
		return "programacion"
	default:
		return "desconocido"
	}
}

// Error is a typed domain failure. Msg is safe to show to an operator.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// MensajeTransporte is the only text an operator sees for network failures.
const MensajeTransporte = "No se pudo contactar al servidor. Intente nuevamente."

func Validacion(msg string) *Error   { return &Error{Kind: KindValidacion, Msg: msg} }
func Conflicto(msg string) *Error    { return &Error{Kind: KindConflicto, Msg: msg} }
func NoEncontrado(msg string) *Error { return &Error{Kind: KindNoEncontrado, Msg: msg} }

func Transporte(err error) *Error {
	return &Error{Kind: KindTransporte, Msg: MensajeTransporte, Err: err}
}

func Programacion(msg string, err error) *Error {
	return &Error{Kind: KindProgramacion, Msg: msg, Err: err}
}

// TipoDe returns the Kind carried by err, or 0 when err is not typed.
func TipoDe(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// EsTipo reports whether err carries the given Kind anywhere in its chain.
func EsTipo(err error, k Kind) bool {
	return err != nil && TipoDe(err) == k
}

// Mensaje returns the operator-facing text for err. Untyped errors never leak.
func Mensaje(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "Error interno"
}

// StatusHTTP maps a typed failure to the response status the backend uses.
func StatusHTTP(err error) int {
	switch TipoDe(err) {
	case KindValidacion:
		return http.StatusUnprocessableEntity
	case KindConflicto:
		return http.StatusConflict
	case KindNoEncontrado:
		return http.StatusNotFound
	case KindTransporte:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DesdeStatus rebuilds a typed failure from a backend response.
func DesdeStatus(status int, detail string) *Error {
	if detail == "" {
		detail = http.StatusText(status)
	}
	switch {
	case status == http.StatusConflict:
		return Conflicto(detail)
	case status == http.StatusNotFound:
		return NoEncontrado(detail)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return Validacion(detail)
	default:
		return Transporte(fmt.Errorf("backend respondió %d: %s", status, detail))
	}
}
