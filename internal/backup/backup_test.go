package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/zulandar/obras/internal/docstore"
	"github.com/zulandar/obras/internal/metrics"
	"github.com/zulandar/obras/internal/obra"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 5, 0, time.UTC)

type fakeSource struct {
	data []byte
	err  error
}

func (f fakeSource) Snapshot() ([]byte, error) { return f.data, f.err }

type fakeSink struct {
	name string
	err  error
	puts map[string][]byte
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Put(_ context.Context, name string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[name] = data
	return nil
}

type mockPutObject struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (m *mockPutObject) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, _ := io.ReadAll(in.Body)
	m.inputs = append(m.inputs, in)
	m.bodies = append(m.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func TestObjectName(t *testing.T) {
	if got := ObjectName(testNow); got != "obras-20260314T093005.json" {
		t.Errorf("ObjectName = %q", got)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{Sinks: []Sink{&fakeSink{name: "x"}}}); err == nil {
		t.Error("expected error without source")
	}
	if _, err := New(Opts{Source: fakeSource{}}); err == nil {
		t.Error("expected error without sinks")
	}
}

func TestRun_AllSinks(t *testing.T) {
	a, b := &fakeSink{name: "a"}, &fakeSink{name: "b"}
	bk, err := New(Opts{
		Source: fakeSource{data: []byte(`{"obras":[]}`)},
		Sinks:  []Sink{a, b},
		Now:    func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	name, err := bk.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, s := range []*fakeSink{a, b} {
		if string(s.puts[name]) != `{"obras":[]}` {
			t.Errorf("sink %s got %q", s.name, s.puts[name])
		}
	}
}

func TestRun_SinkFailureDoesNotStopOthers(t *testing.T) {
	m := metrics.New()
	bad := &fakeSink{name: "bad", err: errors.New("disk full")}
	good := &fakeSink{name: "good"}
	bk, _ := New(Opts{Source: fakeSource{data: []byte("{}")}, Sinks: []Sink{bad, good}, Metrics: m})

	_, err := bk.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v, want disk full", err)
	}
	if len(good.puts) != 1 {
		t.Errorf("good sink puts = %d, want 1", len(good.puts))
	}
	if got := testutil.ToFloat64(m.Backups.WithLabelValues("bad", "error")); got != 1 {
		t.Errorf("bad/error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Backups.WithLabelValues("good", "ok")); got != 1 {
		t.Errorf("good/ok = %v, want 1", got)
	}
}

func TestRun_SnapshotError(t *testing.T) {
	sink := &fakeSink{name: "a"}
	bk, _ := New(Opts{Source: fakeSource{err: errors.New("boom")}, Sinks: []Sink{sink}})
	if _, err := bk.Run(context.Background()); err == nil {
		t.Fatal("expected snapshot error")
	}
	if len(sink.puts) != 0 {
		t.Error("sink should not be called")
	}
}

func TestRun_StoreSnapshot(t *testing.T) {
	store, err := obra.Open(docstore.NewMemory([]byte(`{"obras":[{"nombreObra":"OBRA 1"}]}`)), obra.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sink := &DirSink{Dir: t.TempDir()}
	bk, _ := New(Opts{Source: store, Sinks: []Sink{sink}, Now: func() time.Time { return testNow }})
	name, err := bk.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(sink.Dir, name))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !strings.Contains(string(data), "OBRA 1") {
		t.Errorf("snapshot missing record: %s", data)
	}
}

func TestDirSink_Prune(t *testing.T) {
	sink := &DirSink{Dir: t.TempDir(), Keep: 2}
	for i := 0; i < 4; i++ {
		name := ObjectName(testNow.Add(time.Duration(i) * time.Hour))
		if err := sink.Put(context.Background(), name, []byte("{}")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	// Unrelated files are left alone.
	os.WriteFile(filepath.Join(sink.Dir, "notes.txt"), []byte("x"), 0o644)

	names, err := sink.Snapshots()
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	want := []string{"obras-20260314T113005.json", "obras-20260314T123005.json"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Snapshots = %v, want %v", names, want)
	}
	if _, err := os.Stat(filepath.Join(sink.Dir, "notes.txt")); err != nil {
		t.Errorf("notes.txt removed: %v", err)
	}
}

func TestDirSink_KeepZero(t *testing.T) {
	sink := &DirSink{Dir: t.TempDir()}
	for i := 0; i < 3; i++ {
		sink.Put(context.Background(), ObjectName(testNow.Add(time.Duration(i)*time.Minute)), []byte("{}"))
	}
	names, _ := sink.Snapshots()
	if len(names) != 3 {
		t.Errorf("len = %d, want 3", len(names))
	}
}

func TestDirSink_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &DirSink{Dir: t.TempDir()}
	if err := sink.Put(ctx, "obras-x.json", []byte("{}")); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	if _, err := NewS3Sink(context.Background(), S3Opts{Client: &mockPutObject{}}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestS3Sink_Put(t *testing.T) {
	client := &mockPutObject{}
	sink, err := NewS3Sink(context.Background(), S3Opts{Bucket: "copias", Prefix: "obras/", Client: client})
	if err != nil {
		t.Fatalf("NewS3Sink: %v", err)
	}
	if err := sink.Put(context.Background(), "obras-1.json", []byte(`{"obras":[]}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(client.inputs) != 1 {
		t.Fatalf("puts = %d, want 1", len(client.inputs))
	}
	in := client.inputs[0]
	if *in.Bucket != "copias" || *in.Key != "obras/obras-1.json" || *in.ContentType != "application/json" {
		t.Errorf("input = bucket %q key %q type %q", *in.Bucket, *in.Key, *in.ContentType)
	}
	if client.bodies[0] != `{"obras":[]}` {
		t.Errorf("body = %q", client.bodies[0])
	}
}

func TestS3Sink_PutError(t *testing.T) {
	sink, _ := NewS3Sink(context.Background(), S3Opts{Bucket: "copias", Client: &mockPutObject{err: errors.New("AccessDenied")}})
	err := sink.Put(context.Background(), "obras-1.json", nil)
	if err == nil || !strings.Contains(err.Error(), "s3://copias/obras-1.json") {
		t.Errorf("err = %v", err)
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/15 * * * 1-5", false},
		{"0 3 * *", true},
		{"@every 5m", true},
		{"", true},
	}
	for _, tt := range tests {
		if err := ValidateSchedule(tt.expr); (err != nil) != tt.wantErr {
			t.Errorf("ValidateSchedule(%q) err = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestScheduler_Next(t *testing.T) {
	bk, _ := New(Opts{Source: fakeSource{}, Sinks: []Sink{&fakeSink{name: "a"}}})
	s, err := NewScheduler(bk, "0 3 * * *")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	want := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)
	if got := s.Next(testNow); !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	bk, _ := New(Opts{Source: fakeSource{}, Sinks: []Sink{&fakeSink{name: "a"}}})
	s, _ := NewScheduler(bk, "0 3 * * *")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewScheduler_Errors(t *testing.T) {
	if _, err := NewScheduler(nil, "0 3 * * *"); err == nil {
		t.Error("expected error for nil backup")
	}
	bk, _ := New(Opts{Source: fakeSource{}, Sinks: []Sink{&fakeSink{name: "a"}}})
	if _, err := NewScheduler(bk, "bad"); err == nil {
		t.Error("expected error for bad expression")
	}
}
