// Package project handles the on-disk layout of a schematic project:
// one root document plus one fragment per sub-circuit instance, a
// YAML configuration file, and atomic writes so an interrupted run
// never leaves a half-written document behind.
package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFile is the project configuration file name.
const ConfigFile = "circuitsync.yaml"

// Project is one schematic project directory.
type Project struct {
	Dir    string
	Config Config
}

// Open loads the project at dir, applying defaults when no
// configuration file exists.
func Open(dir string) (*Project, error) {
	p := &Project{Dir: dir, Config: DefaultConfig()}

	cfgPath := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(cfgPath); err == nil {
		if err := LoadConfig(cfgPath, &p.Config); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// RootPath returns the absolute path of the root document.
func (p *Project) RootPath() string {
	return filepath.Join(p.Dir, p.Config.Root)
}

// FragmentPath returns the absolute path of a fragment file named
// relative to the project directory.
func (p *Project) FragmentPath(file string) string {
	return filepath.Join(p.Dir, file)
}

// WriteAtomic writes data to path through a temporary file in the
// same directory followed by a rename, so readers see either the old
// document or the new one, never a partial write.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
