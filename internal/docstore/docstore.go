// Package docstore reads and writes the serialized contract document.
// Backends move opaque bytes; parsing belongs to the record store.
package docstore

import (
	"errors"
	"fmt"

	"github.com/zulandar/obras/internal/config"
	"github.com/zulandar/obras/internal/db"
)

// ErrNotExist is returned by Load when no document has been saved yet.
var ErrNotExist = errors.New("docstore: document does not exist")

// Backend persists one document.
type Backend interface {
	// Load returns the stored bytes, or an error wrapping ErrNotExist.
	Load() ([]byte, error)
	// Save replaces the stored document with data.
	Save(data []byte) error
	// Name describes the backend for log and CLI output.
	Name() string
}

// Open builds the backend selected by the document configuration.
func Open(cfg config.DocumentConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFile(cfg.Path), nil
	case config.BackendSQLite:
		gormDB, err := db.ConnectSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewSQL(gormDB, cfg.Key, "sqlite:"+cfg.Path)
	case config.BackendMySQL:
		gormDB, err := db.Connect(cfg.Host, cfg.Port, cfg.Database)
		if err != nil {
			return nil, err
		}
		return NewSQL(gormDB, cfg.Key, fmt.Sprintf("mysql:%s:%d/%s", cfg.Host, cfg.Port, cfg.Database))
	}
	return nil, fmt.Errorf("docstore: unknown backend %q", cfg.Backend)
}
