package fases

import (
	"encoding/json"
	"testing"
)

func TestAll_DeclarationOrder(t *testing.T) {
	all := All()
	if len(all) != Total || Total != 11 {
		t.Fatalf("len(All()) = %d, Total = %d, want 11", len(all), Total)
	}
	wantIDs := []string{
		"creacion", "inicio", "cartas_invitacion", "adjudicacion", "cartas_adjudicacion",
		"firma_contrato", "replanteo", "ejecucion", "recepcion", "liquidacion", "finalizacion",
	}
	for i, p := range all {
		if p.ID() != wantIDs[i] {
			t.Errorf("All()[%d].ID() = %q, want %q", i, p.ID(), wantIDs[i])
		}
	}
	if Start.ID() != "inicio" || Completion.ID() != "finalizacion" {
		t.Errorf("Start = %s, Completion = %s", Start, Completion)
	}
}

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in      string
		want    Phase
		wantErr bool
	}{
		{"inicio", Start, false},
		{" firma_contrato ", ContractSigning, false},
		{"recepción", Acceptance, false},
		{"FINALIZACIÓN", Completion, false},
		{"1", Creation, false},
		{"11", Completion, false},
		{"0", 0, true},
		{"12", 0, true},
		{"garantia", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePhase(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePhase(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParsePhase(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPhase_Invalid(t *testing.T) {
	p := Phase(42)
	if p.Valid() {
		t.Error("Phase(42).Valid() = true")
	}
	if p.ID() != "fase_42" {
		t.Errorf("ID() = %q", p.ID())
	}
	if _, err := json.Marshal(p); err == nil {
		t.Error("marshaling an invalid phase should fail")
	}
}

func TestPhase_JSON(t *testing.T) {
	data, err := json.Marshal(Activity{Date: "2026-02-01", Kind: KindSigned, Phase: Award})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"date":"2026-02-01","kind":"signed","phase":"adjudicacion"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
	var a Activity
	if err := json.Unmarshal(data, &a); err != nil {
		t.Fatal(err)
	}
	if a.Phase != Award {
		t.Errorf("decoded phase = %v", a.Phase)
	}
}

func TestLookupCategory(t *testing.T) {
	tests := []struct {
		category string
		want     Phase
		ok       bool
	}{
		{"acta_inicio", Start, true},
		{"ACTA_INICIO", Start, true},
		{"carta_invitacion", InvitationLetters, true},
		{"contrato", ContractSigning, true},
		{"acta_replanteo", GroundBreaking, true},
		{"acta_recepcion", Acceptance, true},
		{"liquidacion", Liquidation, true},
		{"factura", 0, false},
	}
	for _, tt := range tests {
		got, ok := LookupCategory(tt.category)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("LookupCategory(%q) = %v, %v; want %v, %v", tt.category, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCategories_CoverEveryPhase(t *testing.T) {
	for _, p := range All() {
		if len(CategoriesFor(p)) == 0 {
			t.Errorf("phase %s has no document category", p)
		}
	}
	if len(Categories()) < Total {
		t.Errorf("len(Categories()) = %d", len(Categories()))
	}
}
