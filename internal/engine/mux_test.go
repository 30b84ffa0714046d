package engine_test

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetrun/fleetrun/internal/engine"
)

func TestMuxAttributesEveryLine(t *testing.T) {
	var buf bytes.Buffer
	mux := engine.NewMux(&buf, nil)

	a := mux.Register("a")
	require.NoError(t, a.Send(engine.Stdout, "one"))
	require.NoError(t, a.Send(engine.Stderr, "two"))

	assert.Equal(t, "a: one\na: two\n", buf.String())
	assert.Equal(t, uint64(2), a.Sent())
}

func TestMuxCustomFormat(t *testing.T) {
	var buf bytes.Buffer
	mux := engine.NewMux(&buf, func(f engine.Fragment) []byte {
		return []byte(fmt.Sprintf("%s[%s]#%d %s\n", f.Alias, f.Stream, f.Seq, f.Payload))
	})

	h := mux.Register("web")
	require.NoError(t, h.Send(engine.Stderr, "oops"))
	assert.Equal(t, "web[stderr]#1 oops\n", buf.String())
}

func TestMuxConcurrentSubmissionsNeverTearLines(t *testing.T) {
	const hosts = 8
	const linesPerHost = 200

	var buf bytes.Buffer
	mux := engine.NewMux(&buf, nil)

	var wg sync.WaitGroup
	for i := 0; i < hosts; i++ {
		alias := fmt.Sprintf("h%d", i)
		h := mux.Register(alias)
		wg.Add(1)
		go func(alias string, h *engine.HostStream) {
			defer wg.Done()
			for n := 0; n < linesPerHost; n++ {
				// payload is the alias repeated, so a torn line is
				// detectable as mixed content
				if err := h.Send(engine.Stdout, fmt.Sprintf("%s-%d", alias, n)); err != nil {
					t.Error(err)
					return
				}
			}
		}(alias, h)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, hosts*linesPerHost)

	// every host's lines are intact and in submission order
	next := make(map[string]int)
	for _, line := range lines {
		alias, rest, ok := strings.Cut(line, ": ")
		require.True(t, ok, "unattributed line %q", line)
		assert.Equal(t, fmt.Sprintf("%s-%d", alias, next[alias]), rest)
		next[alias]++
	}
	for alias, n := range next {
		assert.Equal(t, linesPerHost, n, "host %s", alias)
	}
}

func TestMuxDuplicateAliasesKeepSeparateLanes(t *testing.T) {
	var buf bytes.Buffer
	mux := engine.NewMux(&buf, nil)

	first := mux.Register("twin")
	second := mux.Register("twin")

	require.NoError(t, first.Send(engine.Stdout, "x"))
	require.NoError(t, second.Send(engine.Stdout, "y"))
	require.NoError(t, first.Send(engine.Stdout, "z"))

	assert.Equal(t, uint64(2), first.Sent())
	assert.Equal(t, uint64(1), second.Sent())
}

type failingWriter struct{ err error }

func (w failingWriter) Write([]byte) (int, error) { return 0, w.err }

func TestMuxPropagatesSinkErrors(t *testing.T) {
	mux := engine.NewMux(failingWriter{err: fmt.Errorf("pipe closed")}, nil)
	h := mux.Register("a")
	assert.Error(t, h.Send(engine.Stdout, "lost"))
}
