package fases

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zulandar/obras/internal/docstore"
	"github.com/zulandar/obras/internal/metrics"
	"github.com/zulandar/obras/internal/models"
	"github.com/zulandar/obras/internal/obra"
)

const seedDoc = `{
  "firmantes": {},
  "obras": [
    {"nombreObra": "OBRA CON FASES", "numeroExpediente": "2025/0042"},
    {"nombreObra": "OBRA VACIA"}
  ]
}`

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setup(t *testing.T) (*Tracker, *obra.Store, *docstore.Memory, *clock) {
	t.Helper()
	mem := docstore.NewMemory([]byte(seedDoc))
	store, err := obra.Open(mem, obra.Options{})
	if err != nil {
		t.Fatalf("obra.Open: %v", err)
	}
	clk := &clock{t: time.Date(2026, 4, 20, 11, 0, 0, 0, time.UTC)}
	return New(store, Options{Now: clk.now}), store, mem, clk
}

func collect(t *testing.T, tr *Tracker, contract string, limit int) []Activity {
	t.Helper()
	seq, err := tr.ActivityLog(contract, limit)
	if err != nil {
		t.Fatalf("ActivityLog: %v", err)
	}
	return slices.Collect(seq)
}

func TestMarkGenerated_SameDayTwice(t *testing.T) {
	tr, store, mem, _ := setup(t)

	for i := 0; i < 2; i++ {
		p, ok, err := tr.MarkGenerated("OBRA CON FASES", "acta_inicio")
		if err != nil {
			t.Fatalf("MarkGenerated #%d: %v", i+1, err)
		}
		if !ok || p != Start {
			t.Fatalf("MarkGenerated #%d = %v, %v; want Start, true", i+1, p, ok)
		}
		o, _ := store.Read("OBRA CON FASES")
		e := o.FasesDocumentos["inicio"]
		if e.Generado == nil || *e.Generado != "2026-04-20" {
			t.Errorf("after #%d generado = %v, want 2026-04-20", i+1, e.Generado)
		}
		if e.Firmado != nil {
			t.Errorf("firmado = %v, want nil", *e.Firmado)
		}
	}
	if mem.Saves() != 2 {
		t.Errorf("saves = %d, want one commit per call", mem.Saves())
	}

	log := collect(t, tr, "OBRA CON FASES", 0)
	generated := 0
	for _, a := range log {
		if a.Kind == KindGenerated && a.Phase == Start {
			generated++
		}
	}
	if generated != 1 {
		t.Errorf("activity log has %d generated entries for Start, want 1: %+v", generated, log)
	}
}

func TestMarkGenerated_LastWriteWins(t *testing.T) {
	tr, _, _, clk := setup(t)
	tr.MarkGenerated("OBRA CON FASES", "contrato")
	clk.t = clk.t.AddDate(0, 0, 3)
	tr.MarkGenerated("OBRA CON FASES", "contrato")

	e, err := tr.Entry("OBRA CON FASES", ContractSigning)
	if err != nil {
		t.Fatal(err)
	}
	if e.Generado == nil || *e.Generado != "2026-04-23" {
		t.Errorf("generado = %v, want 2026-04-23", e.Generado)
	}
	if got := collect(t, tr, "OBRA CON FASES", 0); len(got) != 1 {
		t.Errorf("activity = %+v, want a single entry", got)
	}
}

func TestMarkGenerated_UnknownCategory(t *testing.T) {
	tr, _, mem, _ := setup(t)
	_, ok, err := tr.MarkGenerated("OBRA CON FASES", "factura")
	if err != nil || ok {
		t.Errorf("MarkGenerated(unknown) = %v, %v; want false, nil", ok, err)
	}
	if mem.Saves() != 0 {
		t.Errorf("saves = %d, want 0", mem.Saves())
	}
}

func TestMarkGenerated_NotFound(t *testing.T) {
	tr, _, _, _ := setup(t)
	_, _, err := tr.MarkGenerated("NO EXISTE", "acta_inicio")
	if !errors.Is(err, obra.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMarkGenerated_ByExpediente(t *testing.T) {
	tr, store, _, _ := setup(t)
	if _, _, err := tr.MarkGenerated("2025/0042", "acta_replanteo"); err != nil {
		t.Fatal(err)
	}
	o, _ := store.Read("OBRA CON FASES")
	if _, ok := o.FasesDocumentos["replanteo"]; !ok {
		t.Errorf("fasesDocumentos = %v", o.FasesDocumentos)
	}
}

func TestMarkSigned_KeepsOtherPhases(t *testing.T) {
	tr, store, _, _ := setup(t)
	tr.MarkGenerated("OBRA CON FASES", "acta_inicio")
	tr.MarkGenerated("OBRA CON FASES", "carta_invitacion")

	signed := time.Date(2026, 4, 22, 0, 0, 0, 0, time.UTC)
	if err := tr.MarkSigned("OBRA CON FASES", Start, signed); err != nil {
		t.Fatalf("MarkSigned: %v", err)
	}
	o, _ := store.Read("OBRA CON FASES")
	start := o.FasesDocumentos["inicio"]
	if start.Firmado == nil || *start.Firmado != "2026-04-22" || start.Generado == nil {
		t.Errorf("inicio = %+v", start)
	}
	if inv, ok := o.FasesDocumentos["cartas_invitacion"]; !ok || inv.Generado == nil {
		t.Errorf("cartas_invitacion lost: %+v", o.FasesDocumentos)
	}
}

func TestMarkSigned_NoOrderEnforced(t *testing.T) {
	tr, _, _, _ := setup(t)
	if err := tr.MarkSigned("OBRA VACIA", Completion, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("MarkSigned: %v", err)
	}
	pr, _ := tr.Progress("OBRA VACIA")
	if pr.Signed != 1 || pr.Generated != 0 {
		t.Errorf("Progress = %+v", pr)
	}
	if err := tr.MarkSigned("OBRA VACIA", Phase(-1), time.Now()); err == nil {
		t.Error("MarkSigned(invalid phase) should fail")
	}
}

func TestUnmarkSigned(t *testing.T) {
	tr, _, mem, _ := setup(t)
	tr.MarkSigned("OBRA CON FASES", Award, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	saves := mem.Saves()

	if err := tr.UnmarkSigned("OBRA CON FASES", Award); err != nil {
		t.Fatalf("UnmarkSigned: %v", err)
	}
	e, _ := tr.Entry("OBRA CON FASES", Award)
	if e.Firmado != nil {
		t.Errorf("firmado = %v, want nil", *e.Firmado)
	}
	if mem.Saves() != saves+1 {
		t.Errorf("saves = %d, want %d", mem.Saves(), saves+1)
	}

	if err := tr.UnmarkSigned("OBRA CON FASES", Award); err != nil {
		t.Fatal(err)
	}
	if mem.Saves() != saves+1 {
		t.Error("unsigning an unsigned phase wrote the document")
	}
}

func TestProgress(t *testing.T) {
	tr, _, _, _ := setup(t)

	pr, err := tr.Progress("OBRA VACIA")
	if err != nil {
		t.Fatal(err)
	}
	if pr.Total != 11 || pr.Generated != 0 || pr.NextPending == nil || *pr.NextPending != Creation {
		t.Errorf("empty Progress = %+v", pr)
	}

	tr.MarkGenerated("OBRA CON FASES", "propuesta_gasto")
	tr.MarkGenerated("OBRA CON FASES", "acta_inicio")
	tr.MarkGenerated("OBRA CON FASES", "contrato")
	tr.MarkSigned("OBRA CON FASES", Start, time.Date(2026, 4, 21, 0, 0, 0, 0, time.UTC))

	pr, _ = tr.Progress("OBRA CON FASES")
	if pr.Generated != 3 || pr.Signed != 1 {
		t.Errorf("Progress = %+v, want 3 generated, 1 signed", pr)
	}
	if pr.NextPending == nil || *pr.NextPending != InvitationLetters {
		t.Errorf("NextPending = %v, want %v", pr.NextPending, InvitationLetters)
	}
}

func TestProgress_AllGenerated(t *testing.T) {
	tr, _, _, _ := setup(t)
	for _, p := range All() {
		if _, _, err := tr.MarkGenerated("OBRA VACIA", CategoriesFor(p)[0]); err != nil {
			t.Fatal(err)
		}
	}
	pr, _ := tr.Progress("OBRA VACIA")
	if pr.Generated != Total || pr.NextPending != nil {
		t.Errorf("Progress = %+v, want all generated and no next phase", pr)
	}
}

func TestProgress_IgnoresUnknownKeys(t *testing.T) {
	tr, store, _, _ := setup(t)
	d := "2026-01-01"
	err := store.Update("OBRA VACIA", models.Patch{
		models.KeyFasesDocumentos: map[string]models.PhaseEntry{"garantia": {Generado: &d}},
	}, true)
	if err != nil {
		t.Fatal(err)
	}
	pr, _ := tr.Progress("OBRA VACIA")
	if pr.Generated != 0 {
		t.Errorf("Generated = %d, want 0", pr.Generated)
	}
	if got := collect(t, tr, "OBRA VACIA", 0); len(got) != 0 {
		t.Errorf("activity = %+v, want none", got)
	}
}

func TestActivityLog_Order(t *testing.T) {
	tr, _, _, clk := setup(t)

	clk.t = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	tr.MarkGenerated("OBRA CON FASES", "acta_inicio")
	tr.MarkGenerated("OBRA CON FASES", "carta_invitacion")
	clk.t = time.Date(2026, 4, 5, 9, 0, 0, 0, time.UTC)
	tr.MarkGenerated("OBRA CON FASES", "contrato")
	tr.MarkSigned("OBRA CON FASES", Start, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC))

	got := collect(t, tr, "OBRA CON FASES", 0)
	want := []Activity{
		{"2026-04-05", KindSigned, Start},
		{"2026-04-05", KindGenerated, ContractSigning},
		{"2026-04-01", KindGenerated, InvitationLetters},
		{"2026-04-01", KindGenerated, Start},
	}
	if !slices.Equal(got, want) {
		t.Errorf("activity =\n%+v\nwant\n%+v", got, want)
	}

	limited := collect(t, tr, "OBRA CON FASES", 2)
	if !slices.Equal(limited, want[:2]) {
		t.Errorf("limited = %+v, want %+v", limited, want[:2])
	}
}

func TestActivityLog_RecomputedPerRange(t *testing.T) {
	tr, _, _, _ := setup(t)
	seq, err := tr.ActivityLog("OBRA CON FASES", 10)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(slices.Collect(seq)); n != 0 {
		t.Fatalf("first range = %d entries, want 0", n)
	}
	tr.MarkGenerated("OBRA CON FASES", "acta_recepcion")
	if n := len(slices.Collect(seq)); n != 1 {
		t.Errorf("second range = %d entries, want 1", n)
	}
}

func TestActivityLog_EarlyBreak(t *testing.T) {
	tr, _, _, _ := setup(t)
	tr.MarkGenerated("OBRA CON FASES", "acta_inicio")
	tr.MarkGenerated("OBRA CON FASES", "contrato")
	seq, _ := tr.ActivityLog("OBRA CON FASES", 0)
	n := 0
	for range seq {
		n++
		break
	}
	if n != 1 {
		t.Errorf("ranged %d times, want 1", n)
	}
}

func TestActivityLog_NotFound(t *testing.T) {
	tr, _, _, _ := setup(t)
	if _, err := tr.ActivityLog("NO EXISTE", 5); !errors.Is(err, obra.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHookAndMetrics(t *testing.T) {
	mem := docstore.NewMemory([]byte(seedDoc))
	store, err := obra.Open(mem, obra.Options{})
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	var events []Event
	tr := New(store, Options{
		Now:     func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) },
		Hook:    func(e Event) { events = append(events, e) },
		Metrics: m,
	})

	tr.MarkGenerated("2025/0042", "acta_inicio")
	tr.MarkGenerated("2025/0042", "factura")
	tr.MarkSigned("OBRA CON FASES", Start, time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC))

	want := []Event{
		{Obra: "OBRA CON FASES", Phase: Start, Kind: KindGenerated, Date: "2026-06-01"},
		{Obra: "OBRA CON FASES", Phase: Start, Kind: KindSigned, Date: "2026-06-02"},
	}
	if !slices.Equal(events, want) {
		t.Errorf("events = %+v, want %+v", events, want)
	}
	if got := testutil.ToFloat64(m.PhaseEvents.WithLabelValues("unknown_category")); got != 1 {
		t.Errorf("unknown_category = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PhaseEvents.WithLabelValues("generated")); got != 1 {
		t.Errorf("generated = %v, want 1", got)
	}
}

func TestWriteFailure(t *testing.T) {
	tr, _, mem, _ := setup(t)
	mem.SetSaveErr(errors.New("disk full"))
	if _, _, err := tr.MarkGenerated("OBRA CON FASES", "acta_inicio"); !errors.Is(err, obra.ErrIO) {
		t.Errorf("err = %v, want ErrIO", err)
	}
}
