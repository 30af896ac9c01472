package texture

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrorCode classifies texture codec failures.
type ErrorCode int

const (
	// CodeFormatMismatch means the data is not in the probed format.
	CodeFormatMismatch ErrorCode = iota
	// CodeCorruptFile means declared sizes or ids are inconsistent with the data.
	CodeCorruptFile
	// CodeUnsupported means the data is well formed but uses a feature that is not implemented.
	CodeUnsupported
	// CodeAllocation means a pixel buffer could not be allocated.
	CodeAllocation
	// CodeInvalidUsage means a caller invoked an operation that can never succeed for its inputs.
	CodeInvalidUsage
	// CodeSoftAnomaly tags warnings. It is never returned as an error.
	CodeSoftAnomaly
)

func (c ErrorCode) String() string {
	switch c {
	case CodeFormatMismatch:
		return "format mismatch"
	case CodeCorruptFile:
		return "corrupt file"
	case CodeUnsupported:
		return "unsupported feature"
	case CodeAllocation:
		return "allocation failure"
	case CodeInvalidUsage:
		return "invalid usage"
	case CodeSoftAnomaly:
		return "soft anomaly"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Sentinels for errors.Is comparisons against a code.
var (
	ErrFormatMismatch = &Error{Code: CodeFormatMismatch}
	ErrCorruptFile    = &Error{Code: CodeCorruptFile}
	ErrUnsupported    = &Error{Code: CodeUnsupported}
	ErrAllocation     = &Error{Code: CodeAllocation}
	ErrInvalidUsage   = &Error{Code: CodeInvalidUsage}
)

// Error is a classified failure raised by one stage of a parse, write or
// conversion.
type Error struct {
	Op      string
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates an Error without a cause.
func NewError(op string, code ErrorCode, message string) *Error {
	return &Error{Op: op, Code: code, Message: message}
}

// WrapError creates an Error with a cause.
func WrapError(op string, code ErrorCode, message string, err error) *Error {
	return &Error{Op: op, Code: code, Message: message, Err: err}
}

// Errorf creates an Error with a formatted message.
func Errorf(op string, code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Op: op, Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsError reports whether err is an *Error. With codes given, it also
// requires one of them to match.
func IsError(err error, codes ...ErrorCode) bool {
	var te *Error
	if !errors.As(err, &te) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if te.Code == c {
			return true
		}
	}
	return false
}

// GetErrorCode returns the code of the first *Error in err's chain.
func GetErrorCode(err error) (ErrorCode, bool) {
	var te *Error
	if !errors.As(err, &te) {
		return 0, false
	}
	return te.Code, true
}

// Warn reports a soft anomaly to log.
func Warn(log logrus.FieldLogger, op, format string, args ...interface{}) {
	if log == nil {
		return
	}
	log.WithFields(logrus.Fields{
		"op":   op,
		"kind": "soft-anomaly",
	}).Warnf(format, args...)
}
