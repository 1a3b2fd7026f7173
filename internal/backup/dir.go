package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirSink writes snapshots into a local directory and keeps the newest Keep.
type DirSink struct {
	Dir  string
	Keep int // 0 keeps everything
}

// Name implements Sink.
func (d *DirSink) Name() string { return "dir" }

// Put implements Sink.
func (d *DirSink) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := filepath.Join(d.Dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, filepath.Join(d.Dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return d.prune()
}

// Snapshots lists the snapshot file names in the directory, oldest first.
func (d *DirSink) Snapshots() ([]string, error) {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, "obras-") || !strings.HasSuffix(n, ".json") {
			continue
		}
		names = append(names, n)
	}
	// The timestamp layout sorts lexically.
	sort.Strings(names)
	return names, nil
}

func (d *DirSink) prune() error {
	if d.Keep <= 0 {
		return nil
	}
	names, err := d.Snapshots()
	if err != nil {
		return fmt.Errorf("list %s: %w", d.Dir, err)
	}
	for len(names) > d.Keep {
		if err := os.Remove(filepath.Join(d.Dir, names[0])); err != nil {
			return fmt.Errorf("prune %s: %w", names[0], err)
		}
		names = names[1:]
	}
	return nil
}
