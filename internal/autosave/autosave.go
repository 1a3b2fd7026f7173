// Package autosave buffers field edits for the contract open in a view and
// writes them to the record store in batches.
//
// A flush issues at most one persisted write no matter how many fields
// changed. Values that match what was last flushed are never written again,
// and values that fail to flush stay pending until a later trigger succeeds.
package autosave

import (
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"

	"github.com/zulandar/obras/internal/metrics"
	"github.com/zulandar/obras/internal/models"
	"github.com/zulandar/obras/internal/obra"
)

// Writer is the part of the record store the cache needs.
type Writer interface {
	Read(id string) (*models.Obra, error)
	Update(id string, patch models.Patch, commitNow bool) error
	ReplaceEmpresas(id string, empresas []models.Empresa, commitNow bool) error
}

// Mode tells whether notifications are being recorded.
type Mode int

const (
	ModeLive Mode = iota
	ModeLoading
)

func (m Mode) String() string {
	if m == ModeLoading {
		return "loading"
	}
	return "live"
}

// Trigger names the event that caused a flush.
type Trigger string

const (
	TriggerFocusLost Trigger = "focus_lost"
	TriggerSave      Trigger = "save"
	TriggerSwitch    Trigger = "switch"
	TriggerShutdown  Trigger = "shutdown"
)

// Notification outcomes, as counted in metrics.
const (
	outcomeLoading    = "dropped_loading"
	outcomeNoContract = "dropped_no_contract"
	outcomeUnchanged  = "unchanged"
	outcomeReverted   = "reverted"
	outcomePending    = "pending"
	outcomeInvalid    = "invalid"
)

// FlushResult describes one flush.
type FlushResult struct {
	Trigger  Trigger
	Contract string
	Fields   []string // sorted keys written
	Empresas bool     // whether the empresas list was replaced
	Wrote    bool     // whether the store was asked to persist
}

// Options configures a Cache.
type Options struct {
	Metrics *metrics.Metrics
}

// Cache is the write-coalescing buffer between a view and the record store.
type Cache struct {
	store   Writer
	metrics *metrics.Metrics

	mu       sync.Mutex
	loading  int
	contract string
	pending  *PendingChangeSet

	// Last values this cache flushed (or loaded) for the open contract.
	flushed         map[string]any
	flushedEmpresas []models.Empresa
}

// New creates a cache over store. No contract is open until Open is called.
func New(store Writer, opts Options) *Cache {
	return &Cache{
		store:   store,
		metrics: opts.Metrics,
		pending: newPendingChangeSet(),
		flushed: make(map[string]any),
	}
}

// Mode returns ModeLoading while any LoadingScope is open.
func (c *Cache) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode()
}

func (c *Cache) mode() Mode {
	if c.loading > 0 {
		return ModeLoading
	}
	return ModeLive
}

// Contract returns the name of the open contract, or "" if none.
func (c *Cache) Contract() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contract
}

// State returns the state of the pending change set.
func (c *Cache) State() ChangeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.State()
}

// Pending returns a copy of the pending field values.
func (c *Cache) Pending() models.Patch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.patch()
}

// PendingEmpresas returns the pending empresas list and whether one is set.
func (c *Cache) PendingEmpresas() ([]models.Empresa, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending.hasEmpresas {
		return nil, false
	}
	return copyEmpresas(c.pending.empresas), true
}

// Open switches the cache to contract. Pending changes of the previous
// contract are flushed first; if that flush fails the switch is abandoned
// and the error returned, so the edits are not lost.
//
// The record is read and passed to populate inside a loading scope, so
// notifications fired while the view fills in are ignored. populate may be
// nil.
func (c *Cache) Open(contract string, populate func(*models.Obra)) (*models.Obra, error) {
	if _, err := c.Flush(TriggerSwitch); err != nil {
		return nil, fmt.Errorf("autosave: open %s: %w", contract, err)
	}

	scope := c.BeginLoading()
	defer scope.End()

	o, err := c.store.Read(contract)
	if err != nil {
		return nil, fmt.Errorf("autosave: open %s: %w", contract, err)
	}

	c.mu.Lock()
	c.contract = o.NombreObra
	c.pending.reset()
	c.seed(o)
	c.mu.Unlock()

	if populate != nil {
		view := o.Clone()
		populate(&view)
	}
	return o, nil
}

// seed replaces the last-flushed snapshot with the stored record. Must be
// called with the lock held.
func (c *Cache) seed(o *models.Obra) {
	c.flushed = make(map[string]any)
	for _, f := range models.Schema {
		if f.Kind == models.KindEmpresas || f.Kind == models.KindPhases {
			continue
		}
		if v, ok := o.Get(f.ID); ok {
			c.flushed[f.ID] = v
		}
	}
	for k, v := range o.Extra {
		c.flushed[k] = v
	}
	c.flushedEmpresas = copyEmpresas(o.Empresas)
}

// NotifyFieldChanged records that field now shows value. The call is
// dropped while loading, when no contract is open, or when value equals the
// last flushed value. A value that cannot be stored under field is rejected
// with an error wrapping models.ErrInvalidPatch.
func (c *Cache) NotifyFieldChanged(field string, value any) error {
	if field == models.KeyEmpresas {
		list, err := models.Normalize(field, value)
		if err != nil {
			c.metrics.Notified(outcomeInvalid)
			return fmt.Errorf("autosave: %w", err)
		}
		c.NotifyEmpresasChanged(list.([]models.Empresa))
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if outcome, drop := c.dropReason(); drop {
		c.metrics.Notified(outcome)
		return nil
	}
	if field == models.KeyFasesDocumentos || field == models.KeyFechaModificacion {
		c.metrics.Notified(outcomeInvalid)
		return fmt.Errorf("autosave: %w: %s is not editable", models.ErrInvalidPatch, field)
	}
	v, err := models.Normalize(field, value)
	if err != nil {
		c.metrics.Notified(outcomeInvalid)
		return fmt.Errorf("autosave: %w", err)
	}

	prev, ok := c.flushed[field]
	if sameValue(prev, ok, v) {
		if _, queued := c.pending.fields[field]; queued {
			c.pending.unset(field)
			c.metrics.Notified(outcomeReverted)
			return nil
		}
		c.metrics.Notified(outcomeUnchanged)
		return nil
	}
	c.pending.set(field, v)
	c.metrics.Notified(outcomePending)
	return nil
}

// NotifyEmpresasChanged records the whole empresas list as shown in the
// view. The list is copied and always replaces the stored one as a whole.
func (c *Cache) NotifyEmpresasChanged(list []models.Empresa) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if outcome, drop := c.dropReason(); drop {
		c.metrics.Notified(outcome)
		return
	}
	if sameEmpresas(c.flushedEmpresas, list) {
		if c.pending.hasEmpresas {
			c.pending.unsetEmpresas()
			c.metrics.Notified(outcomeReverted)
			return
		}
		c.metrics.Notified(outcomeUnchanged)
		return
	}
	c.pending.setEmpresas(copyEmpresas(list))
	c.metrics.Notified(outcomePending)
}

func (c *Cache) dropReason() (string, bool) {
	if c.mode() == ModeLoading {
		return outcomeLoading, true
	}
	if c.contract == "" {
		return outcomeNoContract, true
	}
	return "", false
}

// Flush writes every pending value of the open contract with a single
// persisted write. With nothing pending it does nothing. On failure the
// pending set is kept as is so the next trigger retries the same values.
func (c *Cache) Flush(trigger Trigger) (FlushResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := FlushResult{Trigger: trigger, Contract: c.contract}
	if c.contract == "" || c.pending.Empty() {
		c.metrics.Flushed(string(trigger), "noop")
		return res, nil
	}

	patch := c.pending.patch()
	res.Fields = patch.Keys()
	res.Empresas = c.pending.hasEmpresas
	res.Wrote = true

	err := c.write(patch)
	if err != nil {
		c.pending.fail(err)
		c.metrics.Flushed(string(trigger), "error")
		log.Printf("autosave: flush %s (%s) failed, keeping %d pending (attempt %d): %v",
			c.contract, trigger, c.pending.Len(), c.pending.Failures(), err)
		return res, fmt.Errorf("autosave: flush %s: %w", c.contract, err)
	}

	for k, v := range patch {
		c.flushed[k] = v
	}
	if res.Empresas {
		c.flushedEmpresas = copyEmpresas(c.pending.empresas)
	}
	res.Contract = c.contract
	c.pending.commit()
	c.metrics.Flushed(string(trigger), "ok")
	return res, nil
}

// write sends the pending values to the store. When both fields and the
// empresas list are pending, the field merge is not committed on its own so
// the empresas replacement persists both. Must be called with the lock held.
func (c *Cache) write(patch models.Patch) error {
	if len(patch) > 0 {
		err := c.store.Update(c.contract, patch, !c.pending.hasEmpresas)
		// A rename is in effect once merged, even when the write failed;
		// retries must use the new name.
		if err == nil || errors.Is(err, obra.ErrIO) {
			if name, ok := patch[models.KeyNombreObra].(string); ok {
				c.contract = name
			}
		}
		if err != nil {
			return err
		}
	}
	if c.pending.hasEmpresas {
		if err := c.store.ReplaceEmpresas(c.contract, copyEmpresas(c.pending.empresas), true); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops the pending values without writing them.
func (c *Cache) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pending.Empty() {
		log.Printf("autosave: discarding %d pending change(s) for %s", c.pending.Len(), c.contract)
	}
	c.pending.reset()
}

// Close flushes with TriggerShutdown and closes the contract. The contract
// stays open if the flush fails.
func (c *Cache) Close() error {
	if _, err := c.Flush(TriggerShutdown); err != nil {
		return err
	}
	c.mu.Lock()
	c.contract = ""
	c.flushed = make(map[string]any)
	c.flushedEmpresas = nil
	c.pending.reset()
	c.mu.Unlock()
	return nil
}

// sameValue compares a normalized value with the last flushed one. An
// absent field equals an empty value, which is what a view shows for it.
func sameValue(prev any, present bool, v any) bool {
	if !present {
		return v == nil || v == ""
	}
	return reflect.DeepEqual(prev, v)
}

func sameEmpresas(a, b []models.Empresa) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func copyEmpresas(list []models.Empresa) []models.Empresa {
	if list == nil {
		return nil
	}
	return models.Obra{Empresas: list}.Clone().Empresas
}
