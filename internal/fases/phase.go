package fases

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase is one of the fixed milestones of a contract's document lifecycle.
// The declaration order is the order progress is reported in.
type Phase int

const (
	Creation Phase = iota
	Start
	InvitationLetters
	Award
	AwardLetters
	ContractSigning
	GroundBreaking
	Execution
	Acceptance
	Liquidation
	Completion
)

// Total is the number of phases.
const Total = 11

var phaseInfo = [Total]struct {
	id   string
	name string
}{
	{"creacion", "Creación"},
	{"inicio", "Inicio"},
	{"cartas_invitacion", "Cartas de invitación"},
	{"adjudicacion", "Adjudicación"},
	{"cartas_adjudicacion", "Cartas de adjudicación"},
	{"firma_contrato", "Firma del contrato"},
	{"replanteo", "Replanteo"},
	{"ejecucion", "Ejecución"},
	{"recepcion", "Recepción"},
	{"liquidacion", "Liquidación"},
	{"finalizacion", "Finalización"},
}

// All returns every phase in declaration order.
func All() []Phase {
	out := make([]Phase, Total)
	for i := range out {
		out[i] = Phase(i)
	}
	return out
}

// Valid reports whether p is a declared phase.
func (p Phase) Valid() bool { return p >= 0 && int(p) < Total }

// ID returns the key the phase is stored under in fasesDocumentos.
func (p Phase) ID() string {
	if !p.Valid() {
		return "fase_" + strconv.Itoa(int(p))
	}
	return phaseInfo[p].id
}

// Name returns the display name.
func (p Phase) Name() string {
	if !p.Valid() {
		return p.ID()
	}
	return phaseInfo[p].name
}

func (p Phase) String() string { return p.ID() }

// MarshalText encodes the phase as its ID.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("fases: invalid phase %d", int(p))
	}
	return []byte(p.ID()), nil
}

// UnmarshalText accepts anything ParsePhase does.
func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePhase accepts a phase ID, its display name (case-insensitive) or its
// 1-based position.
func ParsePhase(s string) (Phase, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= Total {
			return Phase(n - 1), nil
		}
		return 0, fmt.Errorf("fases: phase number %d out of range 1-%d", n, Total)
	}
	for i, info := range phaseInfo {
		if s == info.id || strings.EqualFold(s, info.name) {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("fases: unknown phase %q", s)
}

// phaseByID maps a stored key back to its phase.
func phaseByID(id string) (Phase, bool) {
	for i, info := range phaseInfo {
		if info.id == id {
			return Phase(i), true
		}
	}
	return 0, false
}
