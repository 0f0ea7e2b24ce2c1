package project

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenDefaults(t *testing.T) {
	dir := t.TempDir()

	p, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if p.Config.Root != "main.kicad_sch" {
		t.Errorf("default root = %q, want main.kicad_sch", p.Config.Root)
	}
	if p.Config.Paper != "A4" {
		t.Errorf("default paper = %q, want A4", p.Config.Paper)
	}
	if got := p.RootPath(); got != filepath.Join(dir, "main.kicad_sch") {
		t.Errorf("RootPath = %q", got)
	}
}

func TestOpenWithConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := "root: top.kicad_sch\npaper: A3\nlibraries:\n  - ${HOME}/libs\n"
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if p.Config.Root != "top.kicad_sch" {
		t.Errorf("root = %q, want top.kicad_sch", p.Config.Root)
	}
	if p.Config.Paper != "A3" {
		t.Errorf("paper = %q, want A3", p.Config.Paper)
	}
	if len(p.Config.Libraries) != 1 {
		t.Fatalf("libraries = %v, want 1 entry", p.Config.Libraries)
	}
	if want := filepath.Join(os.Getenv("HOME"), "libs"); p.Config.Libraries[0] != want {
		t.Errorf("library dir = %q, want %q (env expansion)", p.Config.Libraries[0], want)
	}
}

func TestOpenPartialConfigKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte("cache: symbols.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if p.Config.Root != "main.kicad_sch" || p.Config.Paper != "A4" {
		t.Errorf("defaults lost: root=%q paper=%q", p.Config.Root, p.Config.Paper)
	}
	if p.Config.Cache != "symbols.db" {
		t.Errorf("cache = %q, want symbols.db", p.Config.Cache)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Root: "main.kicad_sch", Paper: "A4"}, false},
		{"empty root", Config{Paper: "A4"}, true},
		{"bad paper", Config{Root: "main.kicad_sch", Paper: "Letter"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte("paper: Letter\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir); err == nil {
		t.Fatal("expected validation error for unsupported paper size")
	}
}

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "doc.kicad_sch")

	if err := WriteAtomic(path, []byte("first")); err != nil {
		t.Fatalf("WriteAtomic failed: %v", err)
	}
	if err := WriteAtomic(path, []byte("second")); err != nil {
		t.Fatalf("WriteAtomic overwrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}

	// No temp files may survive a successful write.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("leftover files after write: %v", names)
	}
}
