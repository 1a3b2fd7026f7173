package main

import (
	"strings"
	"testing"
)

func TestFaseLifecycle(t *testing.T) {
	cfg := testConfig(t, seedDoc)
	const name = "REPARACIÓN EDIFICIO A"

	out := mustRun(t, "fase", "generated", name, "acta_inicio", "-c", cfg)
	if !strings.Contains(out, "Generated: Inicio") {
		t.Errorf("generated output = %q", out)
	}

	out = mustRun(t, "fase", "sign", name, "inicio", "--date", "2026-03-10", "-c", cfg)
	if !strings.Contains(out, "Signed: Inicio (2026-03-10)") {
		t.Errorf("sign output = %q", out)
	}

	out = mustRun(t, "fase", "progress", name, "-c", cfg)
	for _, want := range []string{"Generated: 1/11  Signed: 1/11", "Next pending: Creación", "2026-03-10"} {
		if !strings.Contains(out, want) {
			t.Errorf("progress output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "fase", "log", name, "-c", cfg)
	if !strings.Contains(out, "signed") || !strings.Contains(out, "generated") {
		t.Errorf("log output = %q", out)
	}
	if strings.Index(out, "2026-03-10") < 0 {
		t.Errorf("log missing signature date:\n%s", out)
	}

	out = mustRun(t, "fase", "unsign", name, "2", "-c", cfg)
	if !strings.Contains(out, "Unsigned: Inicio") {
		t.Errorf("unsign output = %q", out)
	}
	out = mustRun(t, "fase", "progress", name, "-c", cfg)
	if !strings.Contains(out, "Signed: 0/11") {
		t.Errorf("progress after unsign:\n%s", out)
	}
}

func TestFaseGenerated_UnknownCategory(t *testing.T) {
	cfg := testConfig(t, seedDoc)
	out := mustRun(t, "fase", "generated", "REPARACIÓN EDIFICIO A", "factura", "-c", cfg)
	if !strings.Contains(out, `Unknown document category "factura"`) {
		t.Errorf("output = %q", out)
	}
}

func TestFaseSign_Errors(t *testing.T) {
	cfg := testConfig(t, seedDoc)
	tests := []struct {
		name string
		args []string
	}{
		{"bad phase", []string{"fase", "sign", "REPARACIÓN EDIFICIO A", "12"}},
		{"bad date", []string{"fase", "sign", "REPARACIÓN EDIFICIO A", "inicio", "--date", "10/03/2026"}},
		{"unknown obra", []string{"fase", "sign", "NO EXISTE", "inicio"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, "", append(tt.args, "-c", cfg)...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFaseLog_Empty(t *testing.T) {
	cfg := testConfig(t, seedDoc)
	out := mustRun(t, "fase", "log", "REPARACIÓN EDIFICIO A", "-c", cfg)
	if !strings.Contains(out, "No activity recorded.") {
		t.Errorf("output = %q", out)
	}
}

func TestFasePhases(t *testing.T) {
	out := mustRun(t, "fase", "phases")
	for _, want := range []string{"creacion", "liquidacion", "Finalización", "acta_replanteo"} {
		if !strings.Contains(out, want) {
			t.Errorf("phases output missing %q", want)
		}
	}
}
