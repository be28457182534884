package mns

import (
	"errors"
	"fmt"
)

var (
	// ErrStopTimeout is returned by Acceptor.Stop when the accept loop did
	// not exit within the bounded wait. The listener is closed regardless.
	ErrStopTimeout = errors.New("acceptor stop timed out")
	// ErrAcceptorStarted is returned when Start is called more than once.
	ErrAcceptorStarted = errors.New("acceptor already started")
)

// listenError signals that a transport could not open its listening
// endpoint. It is fatal for the acceptor that hit it.
type listenError struct {
	kind Kind
	addr string
	err  error
}

func (e listenError) Error() string {
	return fmt.Sprintf("listen %s on %s: %v", e.kind, e.addr, e.err)
}

func (e listenError) Unwrap() error { return e.err }

// IsListenError reports whether err came from opening a listening endpoint.
func IsListenError(err error) bool {
	var le listenError
	return errors.As(err, &le)
}

// wireError signals that an accepted connection could not be turned into a
// session. The acceptor keeps running.
type wireError struct {
	kind Kind
	err  error
}

func (e wireError) Error() string { return fmt.Sprintf("wire %s session: %v", e.kind, e.err) }

func (e wireError) Unwrap() error { return e.err }

// IsWireError reports whether err came from session wiring.
func IsWireError(err error) bool {
	var we wireError
	return errors.As(err, &we)
}
