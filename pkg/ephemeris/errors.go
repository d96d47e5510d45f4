package ephemeris

import (
	"errors"
	"fmt"

	"github.com/chrissnell/birthchart/pkg/houses"
)

// Return codes, following the OK/ERR convention of classic ephemeris APIs.
const (
	OK  = 0
	ERR = -1
)

// ErrorKind classifies a failed calculation.
type ErrorKind int

const (
	KindInvalidInput ErrorKind = iota + 1
	KindUnknownBody
	KindDataUnavailable
	KindOutOfRange
	KindUnknownHouseSystem
	KindPolarCircle
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindUnknownBody:
		return "unknown body"
	case KindDataUnavailable:
		return "data unavailable"
	case KindOutOfRange:
		return "out of range"
	case KindUnknownHouseSystem:
		return "unknown house system"
	case KindPolarCircle:
		return "polar circle"
	default:
		return "unknown"
	}
}

// Error is returned by every failing Provider call. Code is always negative.
type Error struct {
	Code    int
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Code:    ERR,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// Code returns the return code carried by err: OK for nil, the Error's code
// for façade errors and ERR for anything else.
func Code(err error) int {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ERR
}

// KindOf returns the ErrorKind of err, or 0 if err is not a façade error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// houseError maps house-math failures onto façade errors.
func houseError(err error) *Error {
	switch {
	case errors.Is(err, houses.ErrUnknownSystem):
		return newError(KindUnknownHouseSystem, err, "%v", err)
	case errors.Is(err, houses.ErrPolarCircle):
		return newError(KindPolarCircle, err, "%v", err)
	case errors.Is(err, houses.ErrLatitude):
		return newError(KindInvalidInput, err, "%v", err)
	default:
		return newError(KindOutOfRange, err, "house calculation failed: %v", err)
	}
}
