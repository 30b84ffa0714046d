// Package engine runs one command against many hosts concurrently. One
// pipeline per host dials a transport session, executes the command,
// streams attributed output through a shared multiplexer and reports a
// terminal completion to a shared aggregator. Pipelines never observe
// each other: a dead host cannot stall or abort a live one.
package engine

// Stream identifies which remote stream a fragment came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Fragment is one attributed, ordered unit of remote output. Seq is
// strictly increasing per pipeline; the multiplexer rejects gaps and
// replays.
type Fragment struct {
	Alias   string
	Stream  Stream
	Payload string
	Seq     uint64
}
