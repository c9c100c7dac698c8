package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"media-access/internal/platform/httpclient"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrRateLimited      = errors.New("rate limited")
	// ErrTransient: red caída, timeout o 5xx. Solo estos se reintentan (y solo en lecturas).
	ErrTransient = errors.New("transient failure")
)

// APIError es lo que devuelven todas las operaciones cuando falla la llamada.
// errors.Is(err, ErrConflict) etc. funciona a través de Unwrap.
type APIError struct {
	Op     string
	Status int // 0 si no hubo respuesta
	Body   string

	kind  error
	cause error
}

func (e *APIError) Error() string {
	switch {
	case e.Status == 0 && e.cause != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.kind, e.cause)
	case e.Body != "":
		return fmt.Sprintf("%s: %v (status %d): %s", e.Op, e.kind, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s: %v (status %d)", e.Op, e.kind, e.Status)
	}
}

func (e *APIError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusBadRequest:
		return ErrValidation
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrPermissionDenied
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrTransient
	}
}

// classify traduce el error de httpclient al vocabulario del cliente.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Op: op, kind: ErrTransient, cause: err}
	}

	var he *httpclient.HTTPError
	if errors.As(err, &he) {
		return &APIError{Op: op, Status: he.StatusCode, Body: he.Body, kind: kindForStatus(he.StatusCode)}
	}
	return &APIError{Op: op, kind: ErrTransient, cause: err}
}

// validation arma un APIError local (sin llamada de red) que además conserva el
// error de dominio (p.ej. shares.ErrTooManyPhotos).
func validation(op string, err error) error {
	return &APIError{Op: op, kind: ErrValidation, cause: err}
}
