// ABOUTME: Project file persistence on disk
// ABOUTME: Saves atomically through a temp file and loads with format validation
package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// Extension is the conventional project file extension
const Extension = ".skp"

// Save writes p to path, replacing any existing file only once the new
// contents are fully written
func Save(path string, p *Project) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set project file mode: %w", err)
	}
	if err := Encode(tmp, p); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync project file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close project file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace project file: %w", err)
	}
	return nil
}

// Load reads the project stored at path
func Load(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open project file: %w", err)
	}
	defer func() { _ = f.Close() }()

	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
