package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrWSDisconnect = errors.New("websocket disconnected")
	ErrContextDone  = errors.New("context cancelled")
)

// ParseError marks a malformed field in an incoming exchange message. The
// feed drops the whole message when it sees one, so a bad update can never
// half-apply and corrupt book state.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
