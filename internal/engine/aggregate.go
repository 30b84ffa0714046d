package engine

import (
	"fmt"
	"sync"
)

// Aggregator collects exactly one completion per registered host and
// retains them in registration order, so the final report does not
// depend on network timing. Slots are indexed, not keyed by alias:
// duplicate aliases each get their own slot.
type Aggregator struct {
	mu      sync.Mutex
	records []*Completion
}

// NewAggregator sizes the record set for n hosts.
func NewAggregator(n int) *Aggregator {
	return &Aggregator{records: make([]*Completion, n)}
}

// Record files the completion for the host registered at slot. Filing
// a slot twice is a programming error: each host has exactly one
// pipeline.
func (a *Aggregator) Record(slot int, c Completion) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if slot < 0 || slot >= len(a.records) {
		return fmt.Errorf("completion slot %d out of range [0,%d)", slot, len(a.records))
	}
	if a.records[slot] != nil {
		return fmt.Errorf("host %s (slot %d): completion recorded twice", c.Alias, slot)
	}
	a.records[slot] = &c
	return nil
}

// Finalize computes the run outcome once every host has reported. A
// missing record means a pipeline was lost, which the orchestrator
// guarantees against by construction.
func (a *Aggregator) Finalize() (Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := Outcome{Hosts: make([]Completion, len(a.records)), OK: true}
	for i, rec := range a.records {
		if rec == nil {
			return Outcome{}, fmt.Errorf("slot %d: no completion recorded", i)
		}
		out.Hosts[i] = *rec
		if !rec.OK() {
			out.OK = false
		}
	}
	return out, nil
}
