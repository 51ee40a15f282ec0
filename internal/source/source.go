// Package source defines the contract with the external model-discovery and
// download client. The store never initiates fetches itself; callers fetch
// through a Source and hand the bytes to the store.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Metadata accompanies fetched artifact bytes.
type Metadata struct {
	DisplayName  string
	SizeBytes    int64
	Capabilities []string
}

// Source fetches model artifacts by id.
type Source interface {
	Fetch(ctx context.Context, id string) ([]byte, Metadata, error)
}

// Dir serves artifacts from a local directory, one file per model id. It
// stands in for the real download client in CLIs and tests.
type Dir struct {
	root string
}

// NewDir constructs a directory-backed source.
func NewDir(root string) *Dir { return &Dir{root: root} }

func (d *Dir) Fetch(ctx context.Context, id string) ([]byte, Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, Metadata{}, err
	}
	path := filepath.Join(d.root, id)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("fetch %s: %w", id, err)
	}
	return b, Metadata{DisplayName: id, SizeBytes: int64(len(b))}, nil
}

// File serves a single artifact from an explicit path regardless of the
// requested id. Used by the `models add` CLI path.
type File struct {
	path string
}

// NewFile constructs a single-file source.
func NewFile(path string) *File { return &File{path: path} }

func (f *File) Fetch(ctx context.Context, id string) ([]byte, Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, Metadata{}, err
	}
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("fetch %s: %w", id, err)
	}
	return b, Metadata{DisplayName: id, SizeBytes: int64(len(b))}, nil
}
