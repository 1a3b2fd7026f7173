package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Core keys of a contract record. Everything else lives in Obra.Extra.
const (
	KeyNombreObra        = "nombreObra"
	KeyNumeroExpediente  = "numeroExpediente"
	KeyTipoActuacion     = "tipoActuacion"
	KeyEmpresas          = "empresas"
	KeyFasesDocumentos   = "fasesDocumentos"
	KeyFechaModificacion = "fechaModificacion"
)

// Obra is one contract record. The name is the primary key.
//
// A key that is absent from the stored object stays absent after a round
// trip: empty strings and nil collections are not written.
type Obra struct {
	NombreObra        string
	NumeroExpediente  string
	TipoActuacion     string
	Empresas          []Empresa
	FasesDocumentos   map[string]PhaseEntry
	FechaModificacion string

	// Extra holds the business fields that have no typed slot
	// (amounts, terms, award data, ...).
	Extra map[string]any
}

// Empresa is a company invited to or awarded a contract. The position in
// Obra.Empresas matches the row in the offers view.
type Empresa struct {
	Nombre   string `json:"nombre"`
	NIF      string `json:"nif"`
	Email    string `json:"email"`
	Contacto string `json:"contacto"`
	Ofertas  any    `json:"ofertas"`
}

// PhaseEntry records when a phase document was generated and signed.
type PhaseEntry struct {
	Generado *string `json:"generado"`
	Firmado  *string `json:"firmado"`
}

// Has reports whether key is present on the record.
func (o *Obra) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Get returns the value stored under key, using the typed slot for core keys.
func (o *Obra) Get(key string) (any, bool) {
	switch key {
	case KeyNombreObra:
		return o.NombreObra, o.NombreObra != ""
	case KeyNumeroExpediente:
		return o.NumeroExpediente, o.NumeroExpediente != ""
	case KeyTipoActuacion:
		return o.TipoActuacion, o.TipoActuacion != ""
	case KeyFechaModificacion:
		return o.FechaModificacion, o.FechaModificacion != ""
	case KeyEmpresas:
		return o.Empresas, o.Empresas != nil
	case KeyFasesDocumentos:
		return o.FasesDocumentos, o.FasesDocumentos != nil
	}
	v, ok := o.Extra[key]
	return v, ok
}

// Clone returns a deep copy of the record.
func (o Obra) Clone() Obra {
	c := o
	if o.Empresas != nil {
		c.Empresas = make([]Empresa, len(o.Empresas))
		for i, e := range o.Empresas {
			e.Ofertas = cloneValue(e.Ofertas)
			c.Empresas[i] = e
		}
	}
	if o.FasesDocumentos != nil {
		c.FasesDocumentos = make(map[string]PhaseEntry, len(o.FasesDocumentos))
		for k, v := range o.FasesDocumentos {
			c.FasesDocumentos[k] = v.clone()
		}
	}
	if o.Extra != nil {
		c.Extra = make(map[string]any, len(o.Extra))
		for k, v := range o.Extra {
			c.Extra[k] = cloneValue(v)
		}
	}
	return c
}

func (p PhaseEntry) clone() PhaseEntry {
	var c PhaseEntry
	if p.Generado != nil {
		g := *p.Generado
		c.Generado = &g
	}
	if p.Firmado != nil {
		f := *p.Firmado
		c.Firmado = &f
	}
	return c
}

// cloneValue deep-copies values produced by encoding/json.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = cloneValue(x)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, x := range t {
			s[i] = cloneValue(x)
		}
		return s
	default:
		return v
	}
}

// MarshalJSON flattens the typed slots and Extra into one object.
func (o Obra) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(o.Extra)+6)
	for k, v := range o.Extra {
		m[k] = v
	}
	if o.NombreObra != "" {
		m[KeyNombreObra] = o.NombreObra
	}
	if o.NumeroExpediente != "" {
		m[KeyNumeroExpediente] = o.NumeroExpediente
	}
	if o.TipoActuacion != "" {
		m[KeyTipoActuacion] = o.TipoActuacion
	}
	if o.FechaModificacion != "" {
		m[KeyFechaModificacion] = o.FechaModificacion
	}
	if o.Empresas != nil {
		m[KeyEmpresas] = o.Empresas
	}
	if o.FasesDocumentos != nil {
		m[KeyFasesDocumentos] = o.FasesDocumentos
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits a stored object into typed slots and Extra.
func (o *Obra) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Obra{}
	for k, v := range raw {
		var err error
		switch k {
		case KeyNombreObra:
			err = unmarshalString(v, &o.NombreObra)
		case KeyNumeroExpediente:
			err = unmarshalString(v, &o.NumeroExpediente)
		case KeyTipoActuacion:
			err = unmarshalString(v, &o.TipoActuacion)
		case KeyFechaModificacion:
			err = unmarshalString(v, &o.FechaModificacion)
		case KeyEmpresas:
			if !isNull(v) {
				o.Empresas = []Empresa{}
				err = json.Unmarshal(v, &o.Empresas)
			}
		case KeyFasesDocumentos:
			if !isNull(v) {
				o.FasesDocumentos = map[string]PhaseEntry{}
				err = json.Unmarshal(v, &o.FasesDocumentos)
			}
		default:
			var x any
			if err = json.Unmarshal(v, &x); err == nil {
				if o.Extra == nil {
					o.Extra = make(map[string]any)
				}
				o.Extra[k] = x
			}
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
	}
	return nil
}

// unmarshalString accepts strings, numbers and null for a string slot.
// Old documents store some expediente numbers as JSON numbers.
func unmarshalString(data json.RawMessage, dst *string) error {
	if isNull(data) {
		*dst = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, dst)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*dst = n.String()
	return nil
}

func isNull(data json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
