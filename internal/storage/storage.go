// Package storage keeps attachment bytes outside the database. Metadata lives in
// task_attachments; a FileStore only knows generated names.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned when no object exists under the name.
var ErrNotFound = errors.New("stored file not found")

// Object is a listing entry used by the orphan sweep.
type Object struct {
	Name    string
	ModTime time.Time
}

type FileStore interface {
	// Save writes r under name and returns the number of bytes written.
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Object, error)
}

// validateName rejects anything that is not a single plain path element.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid object name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("invalid object name %q", name)
	}
	return nil
}
