package library

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/circuitforge/circuitsync/pkg/kicad/sexp"
)

const deviceLib = `(kicad_symbol_lib
	(version 20231120)
	(generator "kicad_symbol_editor")
	(symbol "R"
		(property "Reference" "R" (at 0 0 0))
		(property "Value" "R" (at 0 0 0))
		(property "Footprint" "" (at 0 0 0))
		(symbol "R_1_1"
			(pin passive line
				(at 0 3.81 270)
				(length 1.27)
				(name "~")
				(number "1")
			)
			(pin passive line
				(at 0 -3.81 90)
				(length 1.27)
				(name "~")
				(number "2")
			)
		)
	)
	(symbol "R_Small"
		(extends "R")
		(property "Value" "R_Small" (at 0 0 0))
	)
)
`

func writeDeviceLib(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Device.kicad_sym")
	if err := os.WriteFile(path, []byte(deviceLib), 0o644); err != nil {
		t.Fatalf("Failed to write library: %v", err)
	}
	return dir
}

func TestFakeResolver(t *testing.T) {
	f := NewFake()
	f.Add("Device:R", 2)

	sym, err := f.Resolve("Device:R")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if len(sym.Pins) != 2 {
		t.Fatalf("Expected 2 pins, got %d", len(sym.Pins))
	}
	if got := sym.SortedPinNumbers(); got[0] != "1" || got[1] != "2" {
		t.Errorf("Bad pin numbers: %v", got)
	}

	if _, err := f.Resolve("Device:C"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFileResolver(t *testing.T) {
	r := NewFileResolver(writeDeviceLib(t))

	sym, err := r.Resolve("Device:R")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if len(sym.Pins) != 2 {
		t.Fatalf("Expected 2 pins, got %d", len(sym.Pins))
	}
	if sym.Pins[0].Number != "1" || sym.Pins[0].Y != 3.81 {
		t.Errorf("Bad first pin: %+v", sym.Pins[0])
	}
	if sym.Props["Value"] != "R" {
		t.Errorf("Expected default Value 'R', got %q", sym.Props["Value"])
	}
	if sym.SrcPath == "" || sym.SrcMtime == 0 {
		t.Error("Source provenance not recorded")
	}
}

func TestFileResolverExtends(t *testing.T) {
	r := NewFileResolver(writeDeviceLib(t))

	sym, err := r.Resolve("Device:R_Small")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	// Derived symbols inherit the parent's pins.
	if len(sym.Pins) != 2 {
		t.Errorf("Expected inherited pins, got %d", len(sym.Pins))
	}
	if name, _ := sym.Def.StringAt(1); name != "R_Small" {
		t.Errorf("Expected merged definition named R_Small, got %q", name)
	}
}

func TestFileResolverMisses(t *testing.T) {
	r := NewFileResolver(writeDeviceLib(t))

	for _, libID := range []string{"Device:NoSuch", "NoSuchLib:R", "malformed"} {
		if _, err := r.Resolve(libID); !errors.Is(err, ErrNotFound) {
			t.Errorf("%q: expected ErrNotFound, got %v", libID, err)
		}
	}
}

// countingResolver tracks how often the inner resolver is consulted.
type countingResolver struct {
	inner Resolver
	calls int
}

func (r *countingResolver) Resolve(libID string) (*Symbol, error) {
	r.calls++
	return r.inner.Resolve(libID)
}

func TestCacheHitAndInvalidation(t *testing.T) {
	dir := writeDeviceLib(t)
	counted := &countingResolver{inner: NewFileResolver(dir)}

	cache, err := OpenCache(filepath.Join(t.TempDir(), "symbols.db"), counted)
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	defer cache.Close()

	if _, err := cache.Resolve("Device:R"); err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if counted.calls != 1 {
		t.Fatalf("Expected 1 inner call, got %d", counted.calls)
	}

	sym, err := cache.Resolve("Device:R")
	if err != nil {
		t.Fatalf("Failed to resolve from cache: %v", err)
	}
	if counted.calls != 1 {
		t.Errorf("Expected cache hit, inner called %d times", counted.calls)
	}
	if len(sym.Pins) != 2 || sym.Pins[1].Number != "2" {
		t.Errorf("Cached symbol lost pin data: %+v", sym.Pins)
	}

	// Touching the library invalidates the entry.
	libPath := filepath.Join(dir, "Device.kicad_sym")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(libPath, future, future); err != nil {
		t.Fatalf("Failed to touch library: %v", err)
	}
	// The resolver caches parsed files in memory, so use a fresh one.
	counted.inner = NewFileResolver(dir)

	if _, err := cache.Resolve("Device:R"); err != nil {
		t.Fatalf("Failed to resolve after touch: %v", err)
	}
	if counted.calls != 2 {
		t.Errorf("Expected stale entry to miss, inner called %d times", counted.calls)
	}
}

func TestCacheRoundTripsDefinition(t *testing.T) {
	counted := &countingResolver{inner: NewFileResolver(writeDeviceLib(t))}
	cache, err := OpenCache(filepath.Join(t.TempDir(), "symbols.db"), counted)
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	defer cache.Close()

	first, err := cache.Resolve("Device:R")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	second, err := cache.Resolve("Device:R")
	if err != nil {
		t.Fatalf("Failed to resolve cached: %v", err)
	}
	if string(sexp.Serialize(first.Def)) != string(sexp.Serialize(second.Def)) {
		t.Error("Cached definition differs from source definition")
	}
}
