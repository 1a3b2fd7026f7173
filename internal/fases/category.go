package fases

import (
	"sort"
	"strings"
)

// categories maps generated document categories to the phase they mark.
var categories = map[string]Phase{
	"propuesta_gasto":         Creation,
	"memoria_valorada":        Creation,
	"acta_inicio":             Start,
	"carta_invitacion":        InvitationLetters,
	"informe_ofertas":         Award,
	"resolucion_adjudicacion": Award,
	"carta_adjudicacion":      AwardLetters,
	"carta_no_adjudicacion":   AwardLetters,
	"contrato":                ContractSigning,
	"acta_replanteo":          GroundBreaking,
	"certificacion":           Execution,
	"acta_recepcion":          Acceptance,
	"liquidacion":             Liquidation,
	"acta_finalizacion":       Completion,
}

// LookupCategory returns the phase a document category marks as generated.
func LookupCategory(category string) (Phase, bool) {
	p, ok := categories[strings.ToLower(strings.TrimSpace(category))]
	return p, ok
}

// Categories returns the known categories, sorted.
func Categories() []string {
	out := make([]string, 0, len(categories))
	for c := range categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CategoriesFor returns the categories that mark p, sorted.
func CategoriesFor(p Phase) []string {
	var out []string
	for c, q := range categories {
		if q == p {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
