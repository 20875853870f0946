package trace

import (
	"errors"
	"sync"
	"time"
)

// ErrLedgerLocked is returned by Add after the ledger has been locked.
var ErrLedgerLocked = errors.New("decision ledger is locked")

// Ledger is an append-only, lock-once collection of decisions for a single
// processing run. After Lock (or a store Commit, which locks) any further
// Add fails.
type Ledger struct {
	mu      sync.Mutex
	records []Decision
	locked  bool
}

// NewLedger creates an empty, unlocked ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Add appends one decision, assigning its sequence number and timestamp.
func (l *Ledger) Add(d Decision) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return ErrLedgerLocked
	}

	d.Sequence = len(l.records)
	if d.At.IsZero() {
		d.At = time.Now().UTC()
	}
	l.records = append(l.records, d)
	return nil
}

// Lock makes the ledger immutable. One-way.
func (l *Ledger) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = true
}

// Locked reports whether the ledger has been locked.
func (l *Ledger) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// Records returns a copy of all decisions in append order.
func (l *Ledger) Records() []Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Decision, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of recorded decisions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Stats summarizes the ledger by action and reason code.
type Stats struct {
	ByAction map[ActionCode]int
	ByReason map[ReasonCode]int
}

// GetStatistics returns decision counts by action and by reason.
func (l *Ledger) GetStatistics() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		ByAction: make(map[ActionCode]int),
		ByReason: make(map[ReasonCode]int),
	}
	for _, d := range l.records {
		s.ByAction[d.Action]++
		s.ByReason[d.Reason]++
	}
	return s
}
