// Package schematic provides typed read and write access to KiCad
// schematic documents (.kicad_sch). Every accessor and mutator works
// directly on the underlying s-expression tree, so elements an edit
// does not touch are serialized byte-for-byte as they were parsed.
// Supports KiCad 8 and 9 format versions.
package schematic

import (
	"fmt"
	"io"

	"github.com/circuitforge/circuitsync/pkg/kicad/sexp"
)

// Format versions this package reads and writes. KiCad 8 is the
// oldest supported major version; new documents are written with the
// KiCad 9 version stamp.
const (
	MinSupportedVersion = 20231120 // KiCad 8.0
	WriteVersion        = 20250114 // KiCad 9.0
)

// Generator identifies documents produced by this engine.
const Generator = "circuitsync"

// Schematic is one document fragment: the root sheet or one
// sub-circuit sheet.
type Schematic struct {
	root *sexp.List
}

// New creates a minimal empty schematic with the given sheet UUID.
func New(uuid string) *Schematic {
	root := sexp.NewList("kicad_sch",
		sexp.NewList("version", sexp.Int(WriteVersion)),
		sexp.NewList("generator", sexp.Str(Generator)),
		sexp.NewList("generator_version", sexp.Str("1.0")),
		sexp.NewList("uuid", sexp.Str(uuid)),
		sexp.NewList("paper", sexp.Str("A4")),
		sexp.NewList("lib_symbols"),
	)
	return &Schematic{root: root}
}

// Parse reads a schematic document from r.
func Parse(r io.Reader) (*Schematic, error) {
	root, err := sexp.Parse(r)
	if err != nil {
		return nil, err
	}
	return FromTree(root)
}

// ParseFile reads and parses the schematic at path.
func ParseFile(path string) (*Schematic, error) {
	root, err := sexp.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return FromTree(root)
}

// FromTree wraps an already-parsed document root, validating its
// header.
func FromTree(root *sexp.List) (*Schematic, error) {
	if root.Name() != "kicad_sch" {
		return nil, fmt.Errorf("not a KiCad schematic: expected 'kicad_sch', got %q", root.Name())
	}

	verNode, ok := root.Find("version")
	if !ok {
		return nil, fmt.Errorf("missing required 'version' field")
	}
	ver, err := verNode.IntAt(1)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version: %w", err)
	}
	if ver < MinSupportedVersion {
		return nil, fmt.Errorf("unsupported KiCad version: %d (minimum required: %d / KiCad 8.0)", ver, MinSupportedVersion)
	}

	return &Schematic{root: root}, nil
}

// Tree returns the underlying document root.
func (s *Schematic) Tree() *sexp.List { return s.root }

// Serialize renders the document in canonical form.
func (s *Schematic) Serialize() []byte {
	return sexp.Serialize(s.root)
}

// Version returns the file format version stamp.
func (s *Schematic) Version() int {
	node, ok := s.root.Find("version")
	if !ok {
		return 0
	}
	v, _ := node.IntAt(1)
	return v
}

// UUID returns the sheet UUID.
func (s *Schematic) UUID() string {
	v, _ := s.root.GetString("uuid", 1)
	return v
}

// Paper returns the paper size, defaulting to A4.
func (s *Schematic) Paper() string {
	if v, ok := s.root.GetString("paper", 1); ok {
		return v
	}
	return "A4"
}

// SetPaper sets the paper size.
func (s *Schematic) SetPaper(size string) {
	node, ok := s.root.Find("paper")
	if !ok {
		node = sexp.NewList("paper", sexp.Str(size))
		s.insertElement(node)
		return
	}
	node.SetString(1, size)
}

// PaperSize returns the drawable sheet extent in mm for the current
// paper setting.
func (s *Schematic) PaperSize() (w, h float64) {
	switch s.Paper() {
	case "A3":
		return 420, 297
	case "A2":
		return 594, 420
	case "A5":
		return 210, 148
	default: // A4
		return 297, 210
	}
}

// insertElement places a new body element before the trailing
// sheet_instances block when present, else appends it. Keeping
// sheet_instances last matches what eeschema writes.
func (s *Schematic) insertElement(n sexp.Node) {
	if si, ok := s.root.Find("sheet_instances"); ok {
		s.root.InsertAt(s.root.IndexOf(si), n)
		return
	}
	s.root.Append(n)
}
