package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPatch is returned when a patch carries a value its field cannot hold.
var ErrInvalidPatch = errors.New("invalid patch")

// FieldKind is the value shape a field accepts.
type FieldKind string

const (
	KindText      FieldKind = "text"
	KindAmount    FieldKind = "amount"
	KindDate      FieldKind = "date"
	KindInteger   FieldKind = "integer"
	KindTimestamp FieldKind = "timestamp"
	KindEmpresas  FieldKind = "empresas"
	KindPhases    FieldKind = "phases"
)

// Field groups that can be selected when cloning a record.
const (
	GroupGeneral      = "datos_generales"
	GroupImportes     = "importes"
	GroupPlazos       = "plazos"
	GroupEmpresas     = "empresas_datos"
	GroupAdjudicacion = "adjudicacion"
)

// Groups lists the clone groups in display order.
var Groups = []string{GroupGeneral, GroupImportes, GroupPlazos, GroupEmpresas, GroupAdjudicacion}

// FieldSpec describes one editable field of a contract record.
// Fields with an empty Group are never copied by a clone.
type FieldSpec struct {
	ID    string
	Kind  FieldKind
	Group string
	Label string
}

// Schema is the static field table. Keys not listed here are still accepted
// by patches as long as their value is a scalar.
var Schema = []FieldSpec{
	{KeyNombreObra, KindText, "", "Nombre de la obra"},
	{KeyFechaModificacion, KindTimestamp, "", "Última modificación"},
	{KeyFasesDocumentos, KindPhases, "", "Fases de documentos"},

	{KeyNumeroExpediente, KindText, GroupGeneral, "Número de expediente"},
	{KeyTipoActuacion, KindText, GroupGeneral, "Tipo de actuación"},
	{"descripcion", KindText, GroupGeneral, "Descripción"},
	{"municipio", KindText, GroupGeneral, "Municipio"},
	{"direccion", KindText, GroupGeneral, "Dirección"},
	{"responsable", KindText, GroupGeneral, "Responsable del contrato"},
	{"partidaPresupuestaria", KindText, GroupGeneral, "Partida presupuestaria"},

	{"basePresupuesto", KindAmount, GroupImportes, "Presupuesto base"},
	{"tipoIva", KindAmount, GroupImportes, "Tipo de IVA (%)"},
	{"ivaPresupuesto", KindAmount, GroupImportes, "IVA del presupuesto"},
	{"totalPresupuesto", KindAmount, GroupImportes, "Presupuesto total"},
	{"garantiaDefinitiva", KindAmount, GroupImportes, "Garantía definitiva"},

	{"plazoEjecucion", KindInteger, GroupPlazos, "Plazo de ejecución (meses)"},
	{"plazoGarantia", KindInteger, GroupPlazos, "Plazo de garantía (meses)"},
	{"fechaInicio", KindDate, GroupPlazos, "Fecha de inicio"},
	{"fechaFinPrevista", KindDate, GroupPlazos, "Fecha de fin prevista"},

	{KeyEmpresas, KindEmpresas, GroupEmpresas, "Empresas invitadas"},

	{"empresaAdjudicataria", KindText, GroupAdjudicacion, "Empresa adjudicataria"},
	{"importeAdjudicacion", KindAmount, GroupAdjudicacion, "Importe de adjudicación"},
	{"fechaAdjudicacion", KindDate, GroupAdjudicacion, "Fecha de adjudicación"},
}

var fieldIndex = func() map[string]FieldSpec {
	m := make(map[string]FieldSpec, len(Schema))
	for _, f := range Schema {
		m[f.ID] = f
	}
	return m
}()

// LookupField returns the FieldSpec for a field ID.
func LookupField(id string) (FieldSpec, bool) {
	f, ok := fieldIndex[id]
	return f, ok
}

// GroupFields returns the IDs of the fields in a clone group.
func GroupFields(group string) []string {
	var ids []string
	for _, f := range Schema {
		if f.Group == group {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// IsGroup reports whether name is a known clone group.
func IsGroup(name string) bool {
	for _, g := range Groups {
		if g == name {
			return true
		}
	}
	return false
}

// ValidateSchema checks the field table for duplicates, unknown kinds and
// empty groups. The CLI runs it once at startup.
func ValidateSchema() error {
	return validateSchema(Schema)
}

func validateSchema(specs []FieldSpec) error {
	var errs []string
	seen := make(map[string]bool, len(specs))
	perGroup := make(map[string]int)
	for i, f := range specs {
		if f.ID == "" {
			errs = append(errs, fmt.Sprintf("schema[%d]: id is required", i))
			continue
		}
		if seen[f.ID] {
			errs = append(errs, fmt.Sprintf("schema: duplicate field %q", f.ID))
		}
		seen[f.ID] = true
		if !f.Kind.valid() {
			errs = append(errs, fmt.Sprintf("schema: field %q has unknown kind %q", f.ID, f.Kind))
		}
		if f.Group != "" {
			if !IsGroup(f.Group) {
				errs = append(errs, fmt.Sprintf("schema: field %q has unknown group %q", f.ID, f.Group))
			}
			perGroup[f.Group]++
		}
	}
	for _, g := range Groups {
		if perGroup[g] == 0 {
			errs = append(errs, fmt.Sprintf("schema: group %q has no fields", g))
		}
	}
	if !seen[KeyNombreObra] {
		errs = append(errs, "schema: nombreObra is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("models: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (k FieldKind) valid() bool {
	switch k {
	case KindText, KindAmount, KindDate, KindInteger, KindTimestamp, KindEmpresas, KindPhases:
		return true
	}
	return false
}

// coerce normalizes a patch value for this kind. Numbers become float64 so
// they compare equal to values decoded from the document.
func (k FieldKind) coerce(v any) (any, error) {
	switch k {
	case KindEmpresas:
		return coerceEmpresas(v)
	case KindPhases:
		return coercePhases(v)
	}
	s, err := coerceScalar(v)
	if err != nil {
		return nil, err
	}
	switch k {
	case KindAmount:
		if str, ok := s.(string); ok && strings.TrimSpace(str) != "" {
			if _, err := ParseAmount(str); err != nil {
				return nil, fmt.Errorf("not an amount: %q", str)
			}
		}
	case KindInteger:
		return coerceInteger(s)
	case KindDate:
		return coerceDate(s)
	}
	return s, nil
}

// coerceInteger accepts whole numbers, typed or as text. Blank clears.
func coerceInteger(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		if t != math.Trunc(t) {
			return nil, fmt.Errorf("not a whole number: %v", t)
		}
		return t, nil
	case string:
		str := strings.TrimSpace(t)
		if str == "" {
			return "", nil
		}
		n, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not a whole number: %q", t)
		}
		return float64(n), nil
	}
	return nil, fmt.Errorf("value of type %T is not a whole number", v)
}

// coerceDate accepts dates in DateLayout. Blank clears.
func coerceDate(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		str := strings.TrimSpace(t)
		if str == "" {
			return "", nil
		}
		if _, err := time.Parse(DateLayout, str); err != nil {
			return nil, fmt.Errorf("not a date (want %s): %q", DateLayout, t)
		}
		return str, nil
	}
	return nil, fmt.Errorf("value of type %T is not a date", v)
}

// ParseAmount parses an amount typed with either decimal separator
// ("1.234,56", "1234.56", "1000").
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "€"))
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}

func coerceScalar(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float32:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	}
	return nil, fmt.Errorf("value of type %T is not a scalar", v)
}

func coerceEmpresas(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return []Empresa(nil), nil
	case []Empresa:
		out := make([]Empresa, len(t))
		copy(out, t)
		return out, nil
	case []any:
		data, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		out := []Empresa{}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("empresas: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("empresas must be a list, got %T", v)
}

func coercePhases(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return map[string]PhaseEntry(nil), nil
	case map[string]PhaseEntry:
		out := make(map[string]PhaseEntry, len(t))
		for k, e := range t {
			out[k] = e.clone()
		}
		return out, nil
	case map[string]any:
		data, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		out := map[string]PhaseEntry{}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("fasesDocumentos: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("fasesDocumentos must be an object, got %T", v)
}
