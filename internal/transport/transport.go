// Package transport establishes authenticated SSH sessions and
// classifies their failures. One session carries exactly one remote
// command.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fleetrun/fleetrun/internal/hostlist"
)

// Kind distinguishes how session establishment or command delivery
// failed. Callers report these differently to the operator.
type Kind int

const (
	// KindConnection is a network-level failure: unreachable, refused,
	// timed out, or dropped mid-command.
	KindConnection Kind = iota + 1
	// KindAuth means the server rejected the credentials.
	KindAuth
	// KindCommand means the transport failed to deliver the command's
	// output or exit status after authentication succeeded. A non-zero
	// remote exit is not a KindCommand failure.
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection error"
	case KindAuth:
		return "auth error"
	case KindCommand:
		return "command error"
	default:
		return "unknown error"
	}
}

// Error is a classified transport failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from err, defaulting to
// KindConnection for unclassified errors.
func KindOf(err error) Kind {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind
	}
	return KindConnection
}

// Streams exposes the live output of one remote command. Wait blocks
// until the command finishes and returns its exit status, or a
// classified *Error when the transport could not deliver one.
type Streams struct {
	Stdout io.Reader
	Stderr io.Reader
	Wait   func() (int, error)
}

// Session is one live authenticated connection to one host. Execute is
// valid exactly once per session. Close is idempotent and safe on
// every exit path, including mid-command.
type Session interface {
	Execute(command string) (*Streams, error)
	Close() error
}

// Dialer opens sessions. Implementations classify every failure as
// *Error with KindConnection or KindAuth.
type Dialer interface {
	Dial(ctx context.Context, host hostlist.Host) (Session, error)
}

// classify sorts a dial/handshake failure into the auth or connection
// bucket. The ssh package reports client-side auth rejection only
// through the handshake error text.
func classify(err error) *Error {
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "no supported methods remain") {
		return &Error{Kind: KindAuth, Err: err}
	}
	return &Error{Kind: KindConnection, Err: err}
}
