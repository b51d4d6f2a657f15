package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/gorilla/websocket"
)

// Kind represents the phase or cause of a transport failure
type Kind int

const (
	// KindDial indicates the connection or WebSocket handshake failed
	KindDial Kind = iota
	// KindSend indicates the request frame could not be written
	KindSend
	// KindReceive indicates the response frame could not be read
	KindReceive
	// KindTimeout indicates the exchange did not finish within its deadline
	KindTimeout
	// KindClosed indicates the unit closed the connection before answering
	KindClosed
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindDial:
		return "dial"
	case KindSend:
		return "send"
	case KindReceive:
		return "receive"
	case KindTimeout:
		return "timeout"
	case KindClosed:
		return "closed"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Error is a failed exchange with a unit
type Error struct {
	Kind Kind   // Category of failure
	Op   string // Phase the failure happened in: dial, send or receive
	URL  string // Unit URL
	Err  error  // Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Kind == KindTimeout || e.Kind == KindClosed {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Classify wraps an error from phase op into an *Error with a specific kind.
// ctx is the exchange context; an expired deadline always yields KindTimeout.
func Classify(ctx context.Context, op Kind, url string, err error) *Error {
	if err == nil {
		return nil
	}

	e := &Error{Kind: op, Op: op.String(), URL: url, Err: err}

	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		e.Kind = KindTimeout
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		e.Kind = KindTimeout
		return e
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		e.Kind = KindTimeout
		return e
	}

	if op == KindDial {
		return e
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, websocket.ErrCloseSent) {
		e.Kind = KindClosed
	}

	return e
}

// IsTimeout reports whether err is a transport timeout
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTimeout
}

// IsClosed reports whether err means the unit closed the connection
func IsClosed(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindClosed
}

// IsTransportError reports whether err is any transport failure
func IsTransportError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
