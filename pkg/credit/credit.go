// Package credit wraps the operation credit table and accumulates
// credits charged per step, the credit-unit counterpart to the
// per-step real-cost tracking in pkg/opconfig.
package credit

import (
	"sort"
	"sync"

	"github.com/lonestarx1/opgraph/pkg/opconfig"
)

// Lookup resolves the credits an operation charges at a given quality
// level, falling back to the OperationCreditConfig's required
// "default" entry when the operation has no specific entry.
// usedDefault reports whether the fallback entry was used.
func Lookup(table opconfig.OperationCreditConfig, operationID string, quality opconfig.QualityLevel) (credits int, usedDefault bool) {
	if byQuality, ok := table[operationID]; ok {
		if c, ok := byQuality[quality]; ok {
			return c, false
		}
	}
	return table[opconfig.DefaultOperationID][quality], true
}

// Entry records a single credit charge, for audit and billing
// reconciliation.
type Entry struct {
	RunID       string
	StepID      string
	OperationID string
	Quality     opconfig.QualityLevel
	Credits     int
	UsedDefault bool
}

// Ledger accumulates credits charged per step across a pipeline run,
// the credit-side counterpart of cost.Tracker's per-entity USD
// accumulation. Safe for concurrent use — steps in the same dispatch
// wave charge credits concurrently.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
	total   int
}

// NewLedger creates an empty credit ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Charge records a credit charge and returns the running total.
func (l *Ledger) Charge(e Entry) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	l.total += e.Credits
	return l.total
}

// Total returns the total credits charged across the run so far.
func (l *Ledger) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Entries returns a copy of every charge recorded, in charge order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ByStep returns total credits charged per step id, for a run summary.
func (l *Ledger) ByStep() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int)
	for _, e := range l.entries {
		out[e.StepID] += e.Credits
	}
	return out
}

// StepIDs returns the distinct step ids that have charged credits, sorted.
func (l *Ledger) StepIDs() []string {
	byStep := l.ByStep()
	ids := make([]string, 0, len(byStep))
	for id := range byStep {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
