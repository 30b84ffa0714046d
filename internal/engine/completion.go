package engine

import (
	"fmt"

	"github.com/fleetrun/fleetrun/internal/transport"
)

// Status is the terminal state of one host's pipeline.
type Status int

const (
	// StatusSuccess means the command ran and reported an exit code.
	// The code itself may be non-zero; that is data, not a failure.
	StatusSuccess Status = iota
	// StatusConnectionError means the host was unreachable or the
	// connection dropped.
	StatusConnectionError
	// StatusAuthError means the host rejected the credentials.
	StatusAuthError
	// StatusCommandError means the transport failed to deliver the
	// command's output or exit status.
	StatusCommandError
	// StatusCancelled means the operator aborted the run before this
	// host finished.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusConnectionError:
		return "connection error"
	case StatusAuthError:
		return "auth error"
	case StatusCommandError:
		return "command error"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Completion is the immutable terminal outcome of one host's pipeline.
// ExitCode is meaningful only when Status is StatusSuccess.
type Completion struct {
	Alias    string
	Status   Status
	ExitCode int
	Err      error
}

// OK reports whether the host ran the command and it exited zero.
func (c Completion) OK() bool {
	return c.Status == StatusSuccess && c.ExitCode == 0
}

// Outcome is the aggregate result of a run. Hosts is in registration
// order regardless of completion order.
type Outcome struct {
	Hosts []Completion
	OK    bool
}

// statusOf maps a classified transport failure onto a pipeline status.
func statusOf(err error) Status {
	switch transport.KindOf(err) {
	case transport.KindAuth:
		return StatusAuthError
	case transport.KindCommand:
		return StatusCommandError
	default:
		return StatusConnectionError
	}
}
