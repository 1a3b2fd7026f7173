// Package obra owns the contract document: it loads it once, resolves
// imprecise identifiers to records and applies every mutation before
// persisting the whole document.
package obra

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zulandar/obras/internal/docstore"
	"github.com/zulandar/obras/internal/metrics"
	"github.com/zulandar/obras/internal/models"
	"golang.org/x/text/encoding/charmap"
)

// Typed failures. Check them with errors.Is.
var (
	ErrNotFound          = errors.New("obra: not found")
	ErrDuplicateName     = errors.New("obra: duplicate name")
	ErrIO                = errors.New("obra: i/o failure")
	ErrMalformedDocument = errors.New("obra: malformed document")
	ErrInvalidPatch      = models.ErrInvalidPatch
)

// Options configures a Store.
type Options struct {
	// Firmantes is the signer block of a synthesized document.
	Firmantes map[string]string
	// Now stamps fechaModificacion; defaults to time.Now.
	Now     func() time.Time
	Metrics *metrics.Metrics
}

// Summary is the list view of a record.
type Summary struct {
	NombreObra        string `json:"nombreObra"`
	NumeroExpediente  string `json:"numeroExpediente,omitempty"`
	TipoActuacion     string `json:"tipoActuacion,omitempty"`
	Empresas          int    `json:"empresas"`
	FechaModificacion string `json:"fechaModificacion,omitempty"`
}

// Store is the single owner of the parsed document. Callers only ever get
// copies of records, never references into the document.
type Store struct {
	mu        sync.Mutex
	backend   docstore.Backend
	doc       models.Document
	firmantes map[string]string
	now       func() time.Time
	metrics   *metrics.Metrics
	loadIssue error
	dirty     bool
}

// Open creates a Store over backend and loads the document.
func Open(backend docstore.Backend, opts Options) (*Store, error) {
	s := &Store{
		backend:   backend,
		firmantes: opts.Firmantes,
		now:       opts.Now,
		metrics:   opts.Metrics,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Backend returns the persistence backend.
func (s *Store) Backend() docstore.Backend { return s.backend }

// Load reads the whole document. A missing, empty, unreadable or
// unparsable document is replaced by a minimal valid one that is persisted
// right away; the reason is kept in LoadIssue.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadIssue = nil
	data, err := s.backend.Load()
	switch {
	case errors.Is(err, docstore.ErrNotExist):
		log.Printf("obra: no document at %s, starting empty", s.backend.Name())
		s.loadIssue = err
		return s.synthesize()
	case err != nil:
		log.Printf("obra: read %s: %v (starting empty)", s.backend.Name(), err)
		s.loadIssue = fmt.Errorf("%w: %v", ErrIO, err)
		return s.synthesize()
	case len(bytes.TrimSpace(data)) == 0:
		log.Printf("obra: document at %s is empty, starting empty", s.backend.Name())
		s.loadIssue = fmt.Errorf("%w: empty document", ErrMalformedDocument)
		return s.synthesize()
	}

	doc, err := s.decode(data)
	if err != nil {
		log.Printf("obra: parse %s: %v (starting empty)", s.backend.Name(), err)
		s.loadIssue = err
		return s.synthesize()
	}
	s.doc = doc
	s.dirty = false
	s.warnInconsistent()
	return nil
}

// LoadIssue returns why the last Load synthesized a fresh document, or nil
// when the stored document was used.
func (s *Store) LoadIssue() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadIssue
}

func (s *Store) synthesize() error {
	s.doc = models.NewDocument(s.firmantes)
	if err := s.persist(); err != nil {
		return err
	}
	return nil
}

func (s *Store) decode(data []byte) (models.Document, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return models.Document{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		log.Printf("obra: %s is not UTF-8, read as Windows-1252", s.backend.Name())
		data = decoded
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return models.Document{}, fmt.Errorf("%w: top level is not an object", ErrMalformedDocument)
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Document{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc.Obras == nil {
		doc.Obras = []models.Obra{}
	}
	if doc.Firmantes == nil {
		doc.Firmantes = models.NewDocument(s.firmantes).Firmantes
	}
	return doc, nil
}

// warnInconsistent logs records that break the name invariants. They are
// kept as stored; resolution still reaches the first of a duplicated pair.
func (s *Store) warnInconsistent() {
	seen := make(map[string]bool, len(s.doc.Obras))
	for i, o := range s.doc.Obras {
		name := normalizeName(o.NombreObra)
		if name == "" {
			log.Printf("obra: record %d has no nombreObra", i)
			continue
		}
		if seen[name] {
			log.Printf("obra: duplicate nombreObra %q at record %d", o.NombreObra, i)
		}
		seen[name] = true
	}
}

func (s *Store) encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.doc); err != nil {
		return nil, fmt.Errorf("obra: encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// persist serializes the whole in-memory document. Must be called with the
// lock held.
func (s *Store) persist() error {
	data, err := s.encode()
	if err != nil {
		return err
	}
	err = s.backend.Save(data)
	s.metrics.Persisted(err)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	s.dirty = false
	return nil
}

// find resolves id to an index. Must be called with the lock held.
func (s *Store) find(id string) (int, MatchKind, error) {
	i, kind := resolveIndex(s.doc.Obras, id)
	s.metrics.Resolved(kind.String())
	if i < 0 {
		return -1, MatchNone, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return i, kind, nil
}

// Resolve maps an identifier to the record it designates.
func (s *Store) Resolve(id string) (Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, kind, err := s.find(id)
	if err != nil {
		return Match{}, err
	}
	return Match{Name: s.doc.Obras[i].NombreObra, Kind: kind}, nil
}

// Read returns a copy of the record id resolves to.
func (s *Store) Read(id string) (*models.Obra, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, _, err := s.find(id)
	if err != nil {
		return nil, err
	}
	o := s.doc.Obras[i].Clone()
	return &o, nil
}

// List returns a summary of every record in stored order.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Summary, len(s.doc.Obras))
	for i, o := range s.doc.Obras {
		out[i] = Summary{
			NombreObra:        o.NombreObra,
			NumeroExpediente:  o.NumeroExpediente,
			TipoActuacion:     o.TipoActuacion,
			Empresas:          len(o.Empresas),
			FechaModificacion: o.FechaModificacion,
		}
	}
	return out
}

// Count returns the number of records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.doc.Obras)
}

// Update merges patch into the record id resolves to, replacing each value
// wholesale, and stamps fechaModificacion. With commitNow the whole document
// is persisted. A failed write leaves the in-memory merge in place and
// returns ErrIO, so a rename is already in effect when the caller retries.
func (s *Store) Update(id string, patch models.Patch, commitNow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, _, err := s.find(id)
	if err != nil {
		return err
	}
	if newName, ok := patch[models.KeyNombreObra].(string); ok && newName != s.doc.Obras[i].NombreObra {
		if j, kind := s.resolveOthers(newName, i); j >= 0 {
			return fmt.Errorf("%w: %s (%s match with %s)", ErrDuplicateName, newName, kind, s.doc.Obras[j].NombreObra)
		}
	}
	if err := models.ApplyPatch(&s.doc.Obras[i], patch); err != nil {
		return fmt.Errorf("obra: update %s: %w", id, err)
	}
	s.doc.Obras[i].FechaModificacion = s.stamp()
	s.dirty = true
	if !commitNow {
		return nil
	}
	if err := s.persist(); err != nil {
		return fmt.Errorf("obra: update %s: %w", id, err)
	}
	return nil
}

// ReplaceEmpresas swaps the whole empresas list of a record. The list order
// is kept exactly as given.
func (s *Store) ReplaceEmpresas(id string, empresas []models.Empresa, commitNow bool) error {
	list := make([]models.Empresa, len(empresas))
	copy(list, empresas)
	return s.Update(id, models.Patch{models.KeyEmpresas: list}, commitNow)
}

// Commit persists the document, including updates made without commitNow.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

// Dirty reports whether there are in-memory changes not yet persisted.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Create adds a record named name. It fails with ErrDuplicateName when the
// name already resolves to a record, near-duplicates included.
func (s *Store) Create(name string, fields models.Patch) (*models.Obra, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("obra: create: %w: nombreObra is required", ErrInvalidPatch)
	}
	if err := s.checkFree(name); err != nil {
		return nil, err
	}

	o := models.Obra{NombreObra: name}
	patch := fields.Clone()
	delete(patch, models.KeyNombreObra)
	delete(patch, models.KeyFechaModificacion)
	if err := models.ApplyPatch(&o, patch); err != nil {
		return nil, fmt.Errorf("obra: create %s: %w", name, err)
	}
	return s.insert(o)
}

// Clone creates newName from the selected field groups of the source record.
// Groups that are not selected are left out entirely, so the new record
// shows defaults for them rather than copied values.
func (s *Store) Clone(sourceID, newName string, groups map[string]bool) (*models.Obra, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for g := range groups {
		if !models.IsGroup(g) {
			return nil, fmt.Errorf("obra: clone: %w: unknown field group %q", ErrInvalidPatch, g)
		}
	}
	i, _, err := s.find(sourceID)
	if err != nil {
		return nil, fmt.Errorf("obra: clone source: %w", err)
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("obra: clone: %w: nombreObra is required", ErrInvalidPatch)
	}
	if err := s.checkFree(newName); err != nil {
		return nil, err
	}

	src := &s.doc.Obras[i]
	o := models.Obra{NombreObra: newName}
	for _, g := range models.Groups {
		if !groups[g] {
			continue
		}
		if err := models.ApplyPatch(&o, models.Pick(src, models.GroupFields(g))); err != nil {
			return nil, fmt.Errorf("obra: clone %s: %w", sourceID, err)
		}
	}
	return s.insert(o)
}

// checkFree fails when name resolves to an existing record. Must be called
// with the lock held.
func (s *Store) checkFree(name string) error {
	if j, kind := resolveIndex(s.doc.Obras, name); j >= 0 {
		return fmt.Errorf("%w: %s (%s match with %s)", ErrDuplicateName, name, kind, s.doc.Obras[j].NombreObra)
	}
	return nil
}

// resolveOthers resolves name against every record except the one at skip
// and returns an index into the full list. Must be called with the lock held.
func (s *Store) resolveOthers(name string, skip int) (int, MatchKind) {
	others := make([]models.Obra, 0, len(s.doc.Obras))
	others = append(others, s.doc.Obras[:skip]...)
	others = append(others, s.doc.Obras[skip+1:]...)
	j, kind := resolveIndex(others, name)
	if j >= skip {
		j++
	}
	return j, kind
}

// insert stamps, appends and persists a new record. Must be called with the
// lock held.
func (s *Store) insert(o models.Obra) (*models.Obra, error) {
	o.FechaModificacion = s.stamp()
	s.doc.Obras = append(s.doc.Obras, o)
	s.dirty = true
	if err := s.persist(); err != nil {
		return nil, fmt.Errorf("obra: create %s: %w", o.NombreObra, err)
	}
	c := o.Clone()
	return &c, nil
}

// Delete removes the record id resolves to and persists.
func (s *Store) Delete(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, _, err := s.find(id)
	if err != nil {
		return "", err
	}
	name := s.doc.Obras[i].NombreObra
	s.doc.Obras = append(s.doc.Obras[:i], s.doc.Obras[i+1:]...)
	s.dirty = true
	if err := s.persist(); err != nil {
		return name, fmt.Errorf("obra: delete %s: %w", name, err)
	}
	return name, nil
}

// Firmantes returns a copy of the signer block.
func (s *Store) Firmantes() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.doc.Firmantes))
	for k, v := range s.doc.Firmantes {
		out[k] = v
	}
	return out
}

// SetFirmante sets one signer role and persists.
func (s *Store) SetFirmante(role, name string) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return fmt.Errorf("obra: firmante role is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Firmantes == nil {
		s.doc.Firmantes = make(map[string]string)
	}
	s.doc.Firmantes[role] = name
	s.dirty = true
	return s.persist()
}

// Snapshot returns the serialized document as it would be persisted now.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encode()
}

func (s *Store) stamp() string {
	return s.now().Format(models.TimestampLayout)
}
