package autosave

import (
	"github.com/zulandar/obras/internal/models"
)

// ChangeState is the lifecycle of a PendingChangeSet.
type ChangeState int

const (
	// StateClean means nothing has been notified since the cache opened the
	// contract.
	StateClean ChangeState = iota
	// StatePending means the set holds values not yet persisted. A failed
	// flush leaves the set in this state.
	StatePending
	// StateCommitted means the last flush persisted every value and nothing
	// has been notified since.
	StateCommitted
)

func (s ChangeState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	default:
		return "clean"
	}
}

// PendingChangeSet holds the values notified for the open contract since the
// last successful flush. Values are only dropped by commit or discard.
type PendingChangeSet struct {
	fields      map[string]any
	empresas    []models.Empresa
	hasEmpresas bool
	state       ChangeState
	prior       ChangeState
	failures    int
	lastErr     error
}

func newPendingChangeSet() *PendingChangeSet {
	return &PendingChangeSet{fields: make(map[string]any)}
}

// State returns the current lifecycle state.
func (p *PendingChangeSet) State() ChangeState { return p.state }

// Len returns the number of pending fields, counting empresas as one.
func (p *PendingChangeSet) Len() int {
	n := len(p.fields)
	if p.hasEmpresas {
		n++
	}
	return n
}

// Empty reports whether there is nothing to flush.
func (p *PendingChangeSet) Empty() bool { return p.Len() == 0 }

// Failures returns how many flushes of the current values have failed.
func (p *PendingChangeSet) Failures() int { return p.failures }

// LastError returns the error of the last failed flush, if any.
func (p *PendingChangeSet) LastError() error { return p.lastErr }

func (p *PendingChangeSet) set(field string, v any) {
	p.fields[field] = v
	p.markPending()
}

func (p *PendingChangeSet) markPending() {
	if p.state != StatePending {
		p.prior = p.state
	}
	p.state = StatePending
}

func (p *PendingChangeSet) unset(field string) {
	delete(p.fields, field)
	p.settle()
}

func (p *PendingChangeSet) setEmpresas(list []models.Empresa) {
	p.empresas = list
	p.hasEmpresas = true
	p.markPending()
}

func (p *PendingChangeSet) unsetEmpresas() {
	p.empresas = nil
	p.hasEmpresas = false
	p.settle()
}

// settle returns to the state before the set became pending once reverts
// have emptied it.
func (p *PendingChangeSet) settle() {
	if p.Empty() && p.state == StatePending {
		p.state = p.prior
		p.failures = 0
		p.lastErr = nil
	}
}

// patch returns a copy of the pending fields.
func (p *PendingChangeSet) patch() models.Patch {
	out := make(models.Patch, len(p.fields))
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}

func (p *PendingChangeSet) fail(err error) {
	p.failures++
	p.lastErr = err
}

// commit clears the set after a successful flush.
func (p *PendingChangeSet) commit() {
	p.fields = make(map[string]any)
	p.empresas = nil
	p.hasEmpresas = false
	p.state = StateCommitted
	p.failures = 0
	p.lastErr = nil
}

// reset drops everything and returns to the clean state.
func (p *PendingChangeSet) reset() {
	p.commit()
	p.state = StateClean
}
