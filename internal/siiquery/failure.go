package siiquery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
)

type FailureKind string

const (
	FailureTimeout      FailureKind = "timeout"
	FailureUnavailable  FailureKind = "unavailable"
	FailureUnauthorized FailureKind = "unauthorized"
	// FailureRevalidation means the backend dropped its SII session; the
	// local grant has been revoked.
	FailureRevalidation FailureKind = "revalidation"
	FailureForbidden    FailureKind = "forbidden"
	FailureNotFound     FailureKind = "not_found"
	FailureServer       FailureKind = "server"
	// FailureRejected is a 2xx answer whose success flag was false.
	FailureRejected FailureKind = "rejected"
	FailureInvalid  FailureKind = "invalid"
	FailureUnknown  FailureKind = "unknown"
)

// Failure is a classified SII flow failure.
type Failure struct {
	Kind       FailureKind
	StatusCode int
	// Message is the backend message or a trimmed error body.
	Message string
	Err     error
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sii %s failure", f.Kind)
	if f.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", f.StatusCode)
	}
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

const maxMessage = 300

// classifyError sorts errors that kept the call from producing a response.
func classifyError(err error) *Failure {
	failure := &Failure{Kind: FailureUnknown, Err: err}

	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	message := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, api.ErrNoSession), errors.Is(err, api.ErrUnauthorized):
		failure.Kind = FailureUnauthorized
	case errors.Is(err, api.ErrNoCompany):
		failure.Kind = FailureInvalid
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		failure.Kind = FailureTimeout
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.As(err, &dnsErr),
		errors.As(err, &opErr):
		failure.Kind = FailureUnavailable
	case strings.Contains(message, "timeout"), strings.Contains(message, "deadline"):
		failure.Kind = FailureTimeout
	case strings.Contains(message, "connect"):
		failure.Kind = FailureUnavailable
	}
	return failure
}

// classifyResult sorts a response that did not succeed.
func classifyResult(result api.Result) *Failure {
	failure := &Failure{
		StatusCode: result.StatusCode,
		Message:    resultMessage(result),
	}

	switch code := result.StatusCode; {
	case code >= 200 && code < 300:
		failure.Kind = FailureRejected
	case code == http.StatusUnauthorized:
		failure.Kind = FailureUnauthorized
	case result.AccessDenied():
		failure.Kind = FailureRevalidation
	case code == http.StatusForbidden:
		failure.Kind = FailureForbidden
	case code == http.StatusNotFound:
		failure.Kind = FailureNotFound
	case code == http.StatusUnprocessableEntity:
		failure.Kind = FailureInvalid
	case code >= 500:
		failure.Kind = FailureServer
	default:
		failure.Kind = FailureUnknown
	}
	return failure
}

func resultMessage(result api.Result) string {
	if message := result.Message(); message != "" {
		return message
	}
	body := result.ErrorBody
	if strings.Contains(body, "<!DOCTYPE html>") || strings.HasPrefix(body, "<html") {
		return ""
	}
	if len(body) > maxMessage {
		cut := maxMessage
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return body
}
