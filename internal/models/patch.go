package models

import (
	"fmt"
	"sort"
	"strings"
)

// Patch maps field keys to new values. Applying a patch replaces each value
// wholesale; nested values such as empresas are never merged. A nil value
// removes the key from the record.
type Patch map[string]any

// Keys returns the patch keys in sorted order.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the patch.
func (p Patch) Clone() Patch {
	c := make(Patch, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// ApplyPatch validates every entry of p and then assigns them to o. If any
// entry is invalid the record is left untouched.
func ApplyPatch(o *Obra, p Patch) error {
	normalized := make(map[string]any, len(p))
	for _, k := range p.Keys() {
		v, err := coerceField(k, p[k])
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidPatch, k, err)
		}
		normalized[k] = v
	}
	for k, v := range normalized {
		assign(o, k, v)
	}
	return nil
}

// Normalize returns v in the form ApplyPatch would store it under key, so
// values typed by a user compare equal to values read back from a record.
func Normalize(key string, v any) (any, error) {
	n, err := coerceField(key, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPatch, key, err)
	}
	return n, nil
}

func coerceField(key string, v any) (any, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("empty field name")
	}
	switch key {
	case KeyNombreObra:
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("name must be a non-empty string")
		}
		return s, nil
	case KeyNumeroExpediente, KeyTipoActuacion, KeyFechaModificacion:
		switch t := v.(type) {
		case nil:
			return "", nil
		case string:
			return t, nil
		}
		return nil, fmt.Errorf("value of type %T is not a string", v)
	}
	if spec, ok := LookupField(key); ok {
		return spec.Kind.coerce(v)
	}
	return coerceScalar(v)
}

// assign stores an already-coerced value.
func assign(o *Obra, key string, v any) {
	switch key {
	case KeyNombreObra:
		o.NombreObra = v.(string)
	case KeyNumeroExpediente:
		o.NumeroExpediente = v.(string)
	case KeyTipoActuacion:
		o.TipoActuacion = v.(string)
	case KeyFechaModificacion:
		o.FechaModificacion = v.(string)
	case KeyEmpresas:
		o.Empresas = v.([]Empresa)
	case KeyFasesDocumentos:
		o.FasesDocumentos = v.(map[string]PhaseEntry)
	default:
		if v == nil {
			delete(o.Extra, key)
			return
		}
		if o.Extra == nil {
			o.Extra = make(map[string]any)
		}
		o.Extra[key] = v
	}
}

// Pick returns a patch holding the current values of the given keys. Keys
// absent from o are left out, so applying the result never creates them.
func Pick(o *Obra, keys []string) Patch {
	p := make(Patch, len(keys))
	for _, k := range keys {
		if v, ok := o.Get(k); ok {
			p[k] = cloneField(v)
		}
	}
	return p
}

func cloneField(v any) any {
	switch t := v.(type) {
	case []Empresa:
		c := Obra{Empresas: t}.Clone()
		return c.Empresas
	case map[string]PhaseEntry:
		c := Obra{FasesDocumentos: t}.Clone()
		return c.FasesDocumentos
	}
	return cloneValue(v)
}
