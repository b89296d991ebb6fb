package guard

import "sync"

// LedgerState is a point-in-time copy of a ledger.
type LedgerState struct {
	Depth             int     `json:"depth"`
	ChildrenGenerated int     `json:"children_generated"`
	CostSpent         float64 `json:"cost_spent"`
}

// Ledger is the mutable recursion counter of a single refinement tree. Its mutex
// serializes every authorization for the tree.
type Ledger struct {
	mu     sync.Mutex
	state  LedgerState
	loaded bool
}

// State returns a copy of the ledger.
func (l *Ledger) State() LedgerState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// Ledgers owns one ledger per root id. Roots never share a ledger. A ledger lives as
// long as its store; the guard reloads it from the audit trail when a process first
// sees the root.
type Ledgers struct {
	mu     sync.Mutex
	byRoot map[string]*Ledger
}

// NewLedgers creates an empty ledger store.
func NewLedgers() *Ledgers {
	return &Ledgers{byRoot: make(map[string]*Ledger)}
}

// For returns the ledger of rootID, creating it on first use.
func (l *Ledgers) For(rootID string) *Ledger {
	l.mu.Lock()
	defer l.mu.Unlock()

	ledger, ok := l.byRoot[rootID]
	if !ok {
		ledger = &Ledger{}
		l.byRoot[rootID] = ledger
	}

	return ledger
}
