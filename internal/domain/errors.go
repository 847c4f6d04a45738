package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// FailureKind classifies why a call to the authority did not succeed.
type FailureKind int

const (
	// KindTransport connectivity/timeout; never implies a state change occurred.
	KindTransport FailureKind = iota + 1
	// KindAuth expired or invalid credentials; the session must re-authenticate.
	KindAuth
	// KindValidation malformed request.
	KindValidation
	// KindStateConflict the requested transition is illegal from the current status.
	KindStateConflict
	// KindNotFound the referenced record does not exist at the authority.
	KindNotFound
	// KindMalformed a success response whose body does not match the contract.
	KindMalformed
	// KindInternal the authority failed for a reason of its own.
	KindInternal
)

func (k FailureKind) String() string {
	switch k {
	case KindTransport:
		return "transport_failure"
	case KindAuth:
		return "auth_failure"
	case KindValidation:
		return "validation_failure"
	case KindStateConflict:
		return "state_conflict"
	case KindNotFound:
		return "not_found"
	case KindMalformed:
		return "malformed_response"
	case KindInternal:
		return "internal_failure"
	}
	return "unknown_failure"
}

// Sentinels for errors.Is; a *Failure matches the sentinel of its kind.
var (
	ErrTransport     = &Failure{Kind: KindTransport, Message: "transport failure"}
	ErrAuth          = &Failure{Kind: KindAuth, Message: "authentication failure"}
	ErrValidation    = &Failure{Kind: KindValidation, Message: "validation failure"}
	ErrStateConflict = &Failure{Kind: KindStateConflict, Message: "state conflict"}
	ErrNotFound      = &Failure{Kind: KindNotFound, Message: "not found"}
	ErrMalformed     = &Failure{Kind: KindMalformed, Message: "malformed response"}
	ErrInternal      = &Failure{Kind: KindInternal, Message: "internal failure"}
)

// Failure carries a human-readable message plus the machine code and HTTP status
// when the authority supplied them.
type Failure struct {
	Kind    FailureKind
	Code    int // envelope code, 0 if none
	Status  int // HTTP status, 0 if no response was received
	Message string
	Err     error
}

func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

func Failuref(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (f *Failure) Error() string {
	msg := f.Kind.String() + ": " + f.Message
	if f.Status != 0 {
		msg = fmt.Sprintf("%s (status %d", msg, f.Status)
		if f.Code != 0 {
			msg = fmt.Sprintf("%s, code %d", msg, f.Code)
		}
		msg += ")"
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches any *Failure of the same kind, so errors.Is(err, ErrStateConflict) works.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return t.Kind == f.Kind
}

// Rejected reports whether the authority answered with a non-success response.
func (f *Failure) Rejected() bool {
	switch f.Kind {
	case KindAuth, KindValidation, KindStateConflict, KindNotFound:
		return true
	}
	return false
}

// KindOf returns the failure kind of err, or 0 when err is not a *Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}

// IsRetryable is true only for transport failures.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransport
}

func IsRejected(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Rejected()
}

func IsStateConflict(err error) bool { return KindOf(err) == KindStateConflict }

func IsAuthFailure(err error) bool { return KindOf(err) == KindAuth }

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// Envelope codes exchanged with the authority.
const (
	CodeSuccess       = 2000
	CodeInternal      = -1
	CodeValidation    = 40001
	CodeForbidden     = 40301
	CodeNotFound      = 40401
	CodeStateConflict = 40901
	CodeTokenExpired  = 60401
)

// CodeFor returns the envelope code and HTTP status the authority answers with for kind.
func CodeFor(kind FailureKind) (code, status int) {
	switch kind {
	case KindAuth:
		return CodeTokenExpired, http.StatusUnauthorized
	case KindValidation:
		return CodeValidation, http.StatusBadRequest
	case KindNotFound:
		return CodeNotFound, http.StatusNotFound
	case KindStateConflict:
		return CodeStateConflict, http.StatusConflict
	}
	return CodeInternal, http.StatusInternalServerError
}

// KindForResponse classifies a non-success answer from the authority.
// Only 401 / 60401 is an auth failure; 403 is a scope rejection on valid credentials.
// A bare 5xx is a transport failure: nothing says the request was applied.
func KindForResponse(status, code int) FailureKind {
	switch {
	case status >= http.StatusInternalServerError && code == CodeInternal:
		return KindInternal
	case status >= http.StatusInternalServerError:
		return KindTransport
	case status == http.StatusUnauthorized, code == CodeTokenExpired:
		return KindAuth
	case status == http.StatusForbidden, code == CodeForbidden:
		return KindValidation
	case status == http.StatusConflict, code == CodeStateConflict:
		return KindStateConflict
	case status == http.StatusNotFound, code == CodeNotFound:
		return KindNotFound
	case code == CodeInternal && status < http.StatusBadRequest:
		return KindInternal
	}
	return KindValidation
}
