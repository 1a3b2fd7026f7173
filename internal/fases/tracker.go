// Package fases tracks the document lifecycle of each contract: for every
// phase, when its document was generated and when it was signed.
//
// Phases are independent of each other. Nothing enforces an order; a phase
// counts as complete once it is signed.
package fases

import (
	"fmt"
	"iter"
	"log"
	"sort"
	"time"

	"github.com/zulandar/obras/internal/metrics"
	"github.com/zulandar/obras/internal/models"
)

// Store is the part of the record store the tracker needs.
type Store interface {
	Read(id string) (*models.Obra, error)
	Update(id string, patch models.Patch, commitNow bool) error
}

// EventKind says which date of a phase changed.
type EventKind string

const (
	KindGenerated EventKind = "generated"
	KindSigned    EventKind = "signed"
	KindUnsigned  EventKind = "unsigned"
)

// Event is passed to the hook after a successful write.
type Event struct {
	Obra  string
	Phase Phase
	Kind  EventKind
	Date  string
}

// Options configures a Tracker.
type Options struct {
	Now     func() time.Time // defaults to time.Now
	Hook    func(Event)
	Metrics *metrics.Metrics
}

// Tracker reads and writes fasesDocumentos through the record store. Every
// write is committed immediately.
type Tracker struct {
	store   Store
	now     func() time.Time
	hook    func(Event)
	metrics *metrics.Metrics
}

// New creates a Tracker over store.
func New(store Store, opts Options) *Tracker {
	t := &Tracker{
		store:   store,
		now:     opts.Now,
		hook:    opts.Hook,
		metrics: opts.Metrics,
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// Progress summarizes the lifecycle of one contract.
type Progress struct {
	Obra      string `json:"obra"`
	Generated int    `json:"generated"`
	Signed    int    `json:"signed"`
	Total     int    `json:"total"`
	// NextPending is the first phase in declaration order whose document has
	// not been generated, or nil when all have.
	NextPending *Phase `json:"nextPending"`
}

// Activity is one entry of the activity log.
type Activity struct {
	Date  string    `json:"date"`
	Kind  EventKind `json:"kind"`
	Phase Phase     `json:"phase"`
}

// MarkGenerated records today as the generation date of the phase that
// category belongs to. An unknown category is logged and ignored; the
// returned bool tells whether anything was written.
func (t *Tracker) MarkGenerated(contract, category string) (Phase, bool, error) {
	p, ok := LookupCategory(category)
	if !ok {
		log.Printf("fases: unknown document category %q for %s, nothing recorded", category, contract)
		t.metrics.PhaseEvent("unknown_category")
		return 0, false, nil
	}
	date := t.today()
	err := t.write(contract, p, KindGenerated, func(e *models.PhaseEntry) bool {
		e.Generado = &date
		return true
	})
	if err != nil {
		return p, false, err
	}
	return p, true, nil
}

// MarkSigned records the date the phase document was signed.
func (t *Tracker) MarkSigned(contract string, p Phase, date time.Time) error {
	if !p.Valid() {
		return fmt.Errorf("fases: invalid phase %d", int(p))
	}
	d := date.Format(models.DateLayout)
	return t.write(contract, p, KindSigned, func(e *models.PhaseEntry) bool {
		e.Firmado = &d
		return true
	})
}

// UnmarkSigned clears the signature date of a phase. A phase that is not
// signed is left alone.
func (t *Tracker) UnmarkSigned(contract string, p Phase) error {
	if !p.Valid() {
		return fmt.Errorf("fases: invalid phase %d", int(p))
	}
	return t.write(contract, p, KindUnsigned, func(e *models.PhaseEntry) bool {
		if e.Firmado == nil {
			return false
		}
		e.Firmado = nil
		return true
	})
}

// write applies change to the phase entry and stores the whole phase map.
// Nothing is written when change reports no change.
func (t *Tracker) write(contract string, p Phase, kind EventKind, change func(*models.PhaseEntry) bool) error {
	o, err := t.store.Read(contract)
	if err != nil {
		return fmt.Errorf("fases: %s %s: %w", kind, p, err)
	}
	phases := o.FasesDocumentos
	if phases == nil {
		phases = make(map[string]models.PhaseEntry)
	}
	entry := phases[p.ID()]
	if !change(&entry) {
		return nil
	}
	phases[p.ID()] = entry

	if err := t.store.Update(o.NombreObra, models.Patch{models.KeyFasesDocumentos: phases}, true); err != nil {
		return fmt.Errorf("fases: %s %s for %s: %w", kind, p, o.NombreObra, err)
	}
	t.metrics.PhaseEvent(string(kind))

	if t.hook != nil {
		ev := Event{Obra: o.NombreObra, Phase: p, Kind: kind}
		switch {
		case kind == KindGenerated && entry.Generado != nil:
			ev.Date = *entry.Generado
		case kind == KindSigned && entry.Firmado != nil:
			ev.Date = *entry.Firmado
		}
		t.hook(ev)
	}
	return nil
}

// Entry returns the stored dates of one phase.
func (t *Tracker) Entry(contract string, p Phase) (models.PhaseEntry, error) {
	o, err := t.store.Read(contract)
	if err != nil {
		return models.PhaseEntry{}, fmt.Errorf("fases: entry %s: %w", p, err)
	}
	return o.FasesDocumentos[p.ID()], nil
}

// Progress counts generated and signed phases of a contract.
func (t *Tracker) Progress(contract string) (Progress, error) {
	o, err := t.store.Read(contract)
	if err != nil {
		return Progress{}, fmt.Errorf("fases: progress: %w", err)
	}
	pr := Progress{Obra: o.NombreObra, Total: Total}
	for _, p := range All() {
		e, ok := o.FasesDocumentos[p.ID()]
		generated := ok && isSet(e.Generado)
		if generated {
			pr.Generated++
		} else if pr.NextPending == nil {
			next := p
			pr.NextPending = &next
		}
		if ok && isSet(e.Firmado) {
			pr.Signed++
		}
	}
	return pr, nil
}

// ActivityLog returns the generation and signature events of a contract,
// newest first, at most limit of them (limit <= 0 means all). The record is
// read again every time the sequence is ranged over. On the same date
// signatures come before generations, and later phases before earlier ones.
func (t *Tracker) ActivityLog(contract string, limit int) (iter.Seq[Activity], error) {
	o, err := t.store.Read(contract)
	if err != nil {
		return nil, fmt.Errorf("fases: activity log: %w", err)
	}
	name := o.NombreObra
	return func(yield func(Activity) bool) {
		o, err := t.store.Read(name)
		if err != nil {
			log.Printf("fases: activity log %s: %v", name, err)
			return
		}
		for i, a := range activities(o) {
			if limit > 0 && i >= limit {
				return
			}
			if !yield(a) {
				return
			}
		}
	}, nil
}

func activities(o *models.Obra) []Activity {
	var out []Activity
	for id, e := range o.FasesDocumentos {
		p, ok := phaseByID(id)
		if !ok {
			continue
		}
		if isSet(e.Generado) {
			out = append(out, Activity{Date: *e.Generado, Kind: KindGenerated, Phase: p})
		}
		if isSet(e.Firmado) {
			out = append(out, Activity{Date: *e.Firmado, Kind: KindSigned, Phase: p})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.Kind != b.Kind {
			return a.Kind == KindSigned
		}
		return a.Phase > b.Phase
	})
	return out
}

func (t *Tracker) today() string {
	return t.now().Format(models.DateLayout)
}

func isSet(s *string) bool { return s != nil && *s != "" }
