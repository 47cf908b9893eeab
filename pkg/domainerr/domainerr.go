package domainerr

import "errors"

// ErrNotFound signals that the requested row does not exist. Handlers map it
// to HTTP 404.
var ErrNotFound = errors.New("not found")

// Error is a business-rule violation. Handlers map it to HTTP 422 with the
// message as-is; it carries no internals.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// New builds a domain guard failure with the given message.
func New(msg string) error { return &Error{Msg: msg} }

// As extracts a domain error from an error chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
