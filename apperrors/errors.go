package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error.
type Kind string

const (
	KindUnauthenticated       Kind = "unauthenticated"
	KindEmptyCart             Kind = "empty_cart"
	KindMissingAddress        Kind = "missing_address"
	KindTransientFetchFailure Kind = "transient_fetch_failure"
	KindPartialResolutionLoss Kind = "partial_resolution_loss"
	KindCommitStepFailure     Kind = "commit_step_failure"
	KindNotFound              Kind = "not_found"
	KindConflict              Kind = "conflict"
	KindBadRequest            Kind = "bad_request"
	KindForbidden             Kind = "forbidden"
	KindInternal              Kind = "internal"
)

var kindStatus = map[Kind]int{
	KindUnauthenticated:       http.StatusUnauthorized,
	KindEmptyCart:             http.StatusUnprocessableEntity,
	KindMissingAddress:        http.StatusUnprocessableEntity,
	KindTransientFetchFailure: http.StatusBadGateway,
	KindPartialResolutionLoss: http.StatusOK,
	KindCommitStepFailure:     http.StatusBadGateway,
	KindNotFound:              http.StatusNotFound,
	KindConflict:              http.StatusConflict,
	KindBadRequest:            http.StatusBadRequest,
	KindForbidden:             http.StatusForbidden,
	KindInternal:              http.StatusInternalServerError,
}

// Error represents an application error
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Step    string `json:"step,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	code, ok := kindStatus[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Sentinels for errors.Is.
var (
	ErrUnauthenticated       = New(KindUnauthenticated, "sign in required", nil)
	ErrEmptyCart             = New(KindEmptyCart, "your cart is empty", nil)
	ErrMissingAddress        = New(KindMissingAddress, "please add a shipping address before checking out", nil)
	ErrTransientFetchFailure = New(KindTransientFetchFailure, "could not reach the store, please try again", nil)
	ErrCommitStepFailure     = New(KindCommitStepFailure, "we could not place your order, please try again", nil)
	ErrNotFound              = New(KindNotFound, "not found", nil)
	ErrConflict              = New(KindConflict, "conflict", nil)
)

func Unauthenticated() *Error { return New(KindUnauthenticated, ErrUnauthenticated.Message, nil) }
func EmptyCart() *Error       { return New(KindEmptyCart, ErrEmptyCart.Message, nil) }
func MissingAddress() *Error  { return New(KindMissingAddress, ErrMissingAddress.Message, nil) }

func TransientFetchFailure(what string, err error) *Error {
	return New(KindTransientFetchFailure, "could not load "+what+", please try again", err)
}

// CommitStepFailure reports the commit step that failed.
func CommitStepFailure(step string, err error) *Error {
	e := New(KindCommitStepFailure, ErrCommitStepFailure.Message, err)
	e.Step = step
	return e
}

func NotFound(message string) *Error   { return New(KindNotFound, message, nil) }
func Conflict(message string) *Error   { return New(KindConflict, message, nil) }
func BadRequest(message string) *Error { return New(KindBadRequest, message, nil) }
func Forbidden(message string) *Error  { return New(KindForbidden, message, nil) }

func Internal(message string, err error) *Error {
	return New(KindInternal, message, err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// LoginRedirect is where an unauthenticated client is sent.
const LoginRedirect = "/auth"

// Respond writes err as JSON. Unknown errors become a 500 without leaking details.
func Respond(c *gin.Context, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = Internal("Internal server error", err)
	}

	body := gin.H{"error": appErr.Message, "kind": appErr.Kind}
	if appErr.Step != "" {
		body["step"] = appErr.Step
	}
	if appErr.Kind == KindUnauthenticated {
		body["redirect"] = LoginRedirect
	}
	c.AbortWithStatusJSON(appErr.Code, body)
}

// ErrorMiddleware renders the last error attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			Respond(c, c.Errors.Last().Err)
		}
	}
}
