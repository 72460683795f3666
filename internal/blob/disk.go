// Package blob stores uploaded file bytes on disk, partitioned by tenant.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidRef is returned when a file reference escapes the store root.
var ErrInvalidRef = errors.New("invalid file reference")

// DiskStore saves uploaded files under root/tenant_<id>/<uuid><ext>. Tenant
// subdirectories guarantee one tenant's files never collide with another's.
// References handed out are opaque paths relative to root.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed and returns a store.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create files directory: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &DiskStore{root: abs}, nil
}

// Save writes r to a fresh file for the tenant and returns the opaque
// reference and the number of bytes written. The original filename only
// contributes its extension; the stored name is a UUID.
func (d *DiskStore) Save(tenantID int64, filename string, r io.Reader) (string, int64, error) {
	dir := filepath.Join(d.root, fmt.Sprintf("tenant_%d", tenantID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create tenant directory: %w", err)
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	ref, err := filepath.Rel(d.root, path)
	if err != nil {
		return "", 0, err
	}
	return ref, n, nil
}

// Path resolves a reference back to an absolute path, rejecting references
// that would escape the store root.
func (d *DiskStore) Path(ref string) (string, error) {
	path := filepath.Join(d.root, ref)
	if !strings.HasPrefix(path, d.root+string(os.PathSeparator)) {
		return "", ErrInvalidRef
	}
	return path, nil
}

// Open opens the file behind a reference for reading.
func (d *DiskStore) Open(ref string) (*os.File, error) {
	path, err := d.Path(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes the file behind a reference. Missing files are not an error.
func (d *DiskStore) Remove(ref string) error {
	path, err := d.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
