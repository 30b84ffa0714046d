package engine

import (
	"fmt"
	"io"
	"sync"
)

// FormatFunc renders one fragment into the bytes written to the sink.
// It must end with a newline so host lines never merge.
type FormatFunc func(Fragment) []byte

// defaultFormat is the bare mandatory attribution prefix.
func defaultFormat(f Fragment) []byte {
	return []byte(f.Alias + ": " + f.Payload + "\n")
}

// Mux is the single serialization point between all pipelines and the
// shared output sink. Submissions from any number of goroutines are
// safe; each fragment is written whole, so lines from two hosts are
// never torn into each other.
type Mux struct {
	mu     sync.Mutex
	sink   io.Writer
	format FormatFunc
}

// NewMux writes fragments to sink rendered by format. A nil format
// falls back to the plain "alias: payload" form.
func NewMux(sink io.Writer, format FormatFunc) *Mux {
	if format == nil {
		format = defaultFormat
	}
	return &Mux{sink: sink, format: format}
}

// Register opens one pipeline's handle onto the mux. Sequence state is
// per handle, not per alias, so duplicate aliases stay internally
// ordered.
func (m *Mux) Register(alias string) *HostStream {
	return &HostStream{mux: m, alias: alias}
}

// HostStream is one pipeline's ordered lane into the mux.
type HostStream struct {
	mux   *Mux
	alias string
	seq   uint64
}

// Send stamps the next sequence number on payload and writes it to the
// sink. Safe for concurrent use by the pipeline's stream readers.
func (h *HostStream) Send(stream Stream, payload string) error {
	h.mux.mu.Lock()
	defer h.mux.mu.Unlock()

	f := Fragment{Alias: h.alias, Stream: stream, Payload: payload, Seq: h.seq + 1}
	if err := h.verify(f); err != nil {
		return err
	}
	h.seq = f.Seq

	if _, err := h.mux.sink.Write(h.mux.format(f)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// verify enforces the strictly-increasing per-host sequence. Held under
// the mux lock.
func (h *HostStream) verify(f Fragment) error {
	if f.Seq != h.seq+1 {
		return fmt.Errorf("host %s: fragment sequence %d after %d", h.alias, f.Seq, h.seq)
	}
	return nil
}

// Sent returns how many fragments this handle has written.
func (h *HostStream) Sent() uint64 {
	h.mux.mu.Lock()
	defer h.mux.mu.Unlock()
	return h.seq
}
