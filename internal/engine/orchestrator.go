package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/fleetrun/fleetrun/internal/hostlist"
	"github.com/fleetrun/fleetrun/internal/lg"
	"github.com/fleetrun/fleetrun/internal/transport"
)

// Options bound a run.
type Options struct {
	// Forks caps how many pipelines may hold a session at once. Zero
	// means unlimited. Waiting hosts are granted slots in registration
	// order.
	Forks int
}

// Orchestrator fans one pipeline out per host and fans completions
// back in. It is a pure coordinator: all run state lives in the
// aggregator and the mux.
type Orchestrator struct {
	dialer transport.Dialer
	mux    *Mux
	log    lg.Logger
}

func New(dialer transport.Dialer, mux *Mux, log lg.Logger) *Orchestrator {
	if log == nil {
		log = lg.Discard
	}
	return &Orchestrator{dialer: dialer, mux: mux, log: log}
}

// Run executes command on every host and blocks until each one has
// reached a terminal state or ctx is cancelled. Hosts that never got
// to run complete as cancelled; nothing is retried. The returned error
// reports only internal invariant violations, never host failures.
func (o *Orchestrator) Run(ctx context.Context, hosts []hostlist.Host, command string, opts Options) (Outcome, error) {
	log := o.log.With(lg.String("run", uuid.NewString()))
	log.Debug("starting run",
		lg.Int("hosts", len(hosts)),
		lg.Int("forks", opts.Forks),
		lg.String("command", command))

	agg := NewAggregator(len(hosts))

	var sem *semaphore.Weighted
	if opts.Forks > 0 {
		sem = semaphore.NewWeighted(int64(opts.Forks))
	}

	var wg sync.WaitGroup
	for i, h := range hosts {
		if sem != nil {
			// Acquiring here, in the launch loop, grants slots in
			// registration order.
			if err := sem.Acquire(ctx, 1); err != nil {
				o.recordCancelled(ctx, agg, hosts, i, log)
				break
			}
		}

		wg.Add(1)
		go func(slot int, h hostlist.Host) {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			c := o.runPipeline(ctx, h, command, log)
			if err := agg.Record(slot, c); err != nil {
				log.Error("completion rejected", lg.String("host", h.Alias), lg.Err(err))
			}
		}(i, h)
	}
	wg.Wait()

	outcome, err := agg.Finalize()
	if err != nil {
		return Outcome{}, err
	}
	log.Debug("run finished", lg.Bool("ok", outcome.OK))
	return outcome, nil
}

// runPipeline drives one host from dial to completion. Every failure
// is converted into a completion here; nothing escapes to siblings.
func (o *Orchestrator) runPipeline(ctx context.Context, h hostlist.Host, command string, log lg.Logger) Completion {
	if err := ctx.Err(); err != nil {
		return Completion{Alias: h.Alias, Status: StatusCancelled, Err: err}
	}

	sess, err := o.dialer.Dial(ctx, h)
	if err != nil {
		if ctx.Err() != nil {
			return Completion{Alias: h.Alias, Status: StatusCancelled, Err: ctx.Err()}
		}
		log.Debug("dial failed", lg.String("host", h.Alias), lg.Err(err))
		return Completion{Alias: h.Alias, Status: statusOf(err), Err: err}
	}
	defer sess.Close()

	c := newTask(h.Alias, o.mux, log).run(ctx, sess, command)
	log.Debug("pipeline done",
		lg.String("host", h.Alias),
		lg.String("status", c.Status.String()),
		lg.Int("exit", c.ExitCode))
	return c
}

// recordCancelled files cancelled completions for every host from
// first onward that never launched.
func (o *Orchestrator) recordCancelled(ctx context.Context, agg *Aggregator, hosts []hostlist.Host, first int, log lg.Logger) {
	var skipped []string
	for i := first; i < len(hosts); i++ {
		c := Completion{Alias: hosts[i].Alias, Status: StatusCancelled, Err: ctx.Err()}
		if err := agg.Record(i, c); err != nil {
			log.Error("completion rejected", lg.String("host", hosts[i].Alias), lg.Err(err))
			continue
		}
		skipped = append(skipped, hosts[i].Alias)
	}
	if len(skipped) > 0 {
		log.Info("run cancelled before hosts launched", lg.String("hosts", strings.Join(skipped, ",")))
	}
}
