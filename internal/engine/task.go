package engine

import (
	"bufio"
	"context"
	"io"

	"github.com/fleetrun/fleetrun/internal/lg"
	"github.com/fleetrun/fleetrun/internal/transport"
)

// readChunkSize bounds a single forwarded fragment. Lines longer than
// this arrive as several fragments, so a host can never force
// unbounded buffering.
const readChunkSize = 64 * 1024

// task executes one command on one open session and forwards its
// output line by line as it arrives. It owns the session: the caller
// dials, the task streams, the orchestrator closes.
type task struct {
	alias  string
	stream *HostStream
	log    lg.Logger
}

func newTask(alias string, mux *Mux, log lg.Logger) *task {
	return &task{alias: alias, stream: mux.Register(alias), log: log}
}

// run executes command on sess and blocks until the remote side is
// done or ctx is cancelled. Fragments already forwarded stay valid on
// every failure path.
func (t *task) run(ctx context.Context, sess transport.Session, command string) Completion {
	streams, err := sess.Execute(command)
	if err != nil {
		if ctx.Err() != nil {
			return Completion{Alias: t.alias, Status: StatusCancelled, Err: ctx.Err()}
		}
		return Completion{Alias: t.alias, Status: statusOf(err), Err: err}
	}

	// Closing the session on cancellation unblocks the pipe readers;
	// the remote process is abandoned best-effort.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			sess.Close()
		case <-watchDone:
		}
	}()
	defer close(watchDone)

	scanDone := make(chan struct{}, 2)
	go t.forward(streams.Stdout, Stdout, scanDone)
	go t.forward(streams.Stderr, Stderr, scanDone)

	code, waitErr := streams.Wait()
	<-scanDone
	<-scanDone

	if ctx.Err() != nil {
		return Completion{Alias: t.alias, Status: StatusCancelled, Err: ctx.Err()}
	}
	if waitErr != nil {
		return Completion{Alias: t.alias, Status: statusOf(waitErr), Err: waitErr}
	}
	return Completion{Alias: t.alias, Status: StatusSuccess, ExitCode: code}
}

// forward drains one pipe into the mux, line by line, as data arrives.
// The pipe is always read to the end: an undrained pipe would fill the
// channel window and block the remote command indefinitely.
func (t *task) forward(r io.Reader, stream Stream, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	br := bufio.NewReaderSize(r, readChunkSize)
	for {
		// ReadLine hands back at most one buffer's worth, so an
		// over-long line is forwarded chunked by arrival instead of
		// failing the stream.
		line, _, err := br.ReadLine()
		if err != nil {
			if err != io.EOF {
				// The terminal failure surfaces through Wait; the read
				// error here is only diagnostic.
				t.log.Debug("stream read ended", lg.String("host", t.alias),
					lg.String("stream", stream.String()), lg.Err(err))
			}
			return
		}
		if sendErr := t.stream.Send(stream, string(line)); sendErr != nil {
			t.log.Error("output sink failed, draining host stream",
				lg.String("host", t.alias), lg.Err(sendErr))
			_, _ = io.Copy(io.Discard, br)
			return
		}
	}
}
