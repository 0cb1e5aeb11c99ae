// Package apperr defines the error type shared by services and handlers.
// Every error that reaches a client carries a stable machine readable code,
// anything else is logged and reported as INTERNAL_ERROR.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindAuthorization
	KindUnauthenticated
	KindConflict
	KindTooLarge
	KindUpstream
	KindRateLimited
)

// Codes used by more than one handler
const (
	CodeInternal        = "INTERNAL_ERROR"
	CodeInvalidBody     = "INVALID_REQUEST_BODY"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
)

type Error struct {
	Kind  Kind
	Code  string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Status() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUpstream:
		return http.StatusBadGateway
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

func Wrap(kind Kind, code string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Cause: cause}
}

func NotFound(code string) *Error { return New(KindNotFound, code) }
func Validation(code string) *Error { return New(KindValidation, code) }
func Forbidden(code string) *Error { return New(KindAuthorization, code) }
func Conflict(code string) *Error { return New(KindConflict, code) }

func Internal(cause error) *Error {
	return Wrap(KindInternal, CodeInternal, cause)
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// CodeOf returns the client facing code of err
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Respond aborts the request with the JSON error body for err. Internal and
// upstream failures are logged together with their cause.
func Respond(c *gin.Context, err error) {
	requestID := c.GetString("requestID")

	var e *Error
	if !errors.As(err, &e) {
		e = Internal(err)
	}

	if e.Kind == KindInternal || e.Kind == KindUpstream {
		zap.L().Error("Request failed",
			zap.String("code", e.Code),
			zap.Error(e.Cause),
			zap.String("requestID", requestID),
			zap.String("path", c.FullPath()),
		)
	}

	c.AbortWithStatusJSON(e.Status(), gin.H{
		"error":     e.Code,
		"requestID": requestID,
	})
}
