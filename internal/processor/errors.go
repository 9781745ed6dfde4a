package processor

import (
	"errors"
	"fmt"
)

// Kind categorizes processing failures so the driver can pick an exit code
type Kind int

const (
	// KindUnknown indicates an uncategorised failure
	KindUnknown Kind = iota
	// KindDecode indicates the source could not be decoded
	KindDecode
	// KindEmptyResult indicates the operation would produce no audio
	KindEmptyResult
	// KindIO indicates a filesystem read, write or rename failure
	KindIO
	// KindConfig indicates invalid parameters
	KindConfig
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode failure"
	case KindEmptyResult:
		return "empty result"
	case KindIO:
		return "I/O failure"
	case KindConfig:
		return "invalid configuration"
	default:
		return "unknown failure"
	}
}

// Error is a processing failure on a single file
type Error struct {
	Kind Kind
	Op   string // trim, segment, normalize, rename
	Path string
	Err  error
}

// Sentinels for errors.Is matching on kind alone
var (
	ErrDecode      = &Error{Kind: KindDecode}
	ErrEmptyResult = &Error{Kind: KindEmptyResult}
	ErrIO          = &Error{Kind: KindIO}
	ErrConfig      = &Error{Kind: KindConfig}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" && e.Path != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	} else if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func decodeError(op, path string, err error) *Error {
	return newError(KindDecode, op, path, err)
}

func ioError(op, path string, err error) *Error {
	return newError(KindIO, op, path, err)
}

func emptyError(op, path string, err error) *Error {
	return newError(KindEmptyResult, op, path, err)
}

func configError(op string, format string, args ...any) *Error {
	return newError(KindConfig, op, "", fmt.Errorf(format, args...))
}
