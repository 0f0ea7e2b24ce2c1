package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/circuitforge/circuitsync/pkg/kicad/schematic"
	"github.com/circuitforge/circuitsync/pkg/kicad/sexp"
)

// FileResolver resolves symbols from .kicad_sym library files found
// in a list of search directories. A type identifier "Device:R" maps
// to symbol "R" inside Device.kicad_sym.
type FileResolver struct {
	dirs []string

	// parsed library roots by file path
	libs map[string]*sexp.List
}

// NewFileResolver creates a resolver over the given search
// directories, checked in order.
func NewFileResolver(dirs ...string) *FileResolver {
	return &FileResolver{
		dirs: dirs,
		libs: make(map[string]*sexp.List),
	}
}

// Resolve implements Resolver.
func (r *FileResolver) Resolve(libID string) (*Symbol, error) {
	libName, symName, ok := strings.Cut(libID, ":")
	if !ok {
		return nil, fmt.Errorf("malformed type identifier %q: %w", libID, ErrNotFound)
	}

	for _, dir := range r.dirs {
		path := filepath.Join(dir, libName+".kicad_sym")
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		root, err := r.loadLibrary(path)
		if err != nil {
			return nil, fmt.Errorf("library %s: %w", path, err)
		}

		def, found := findSymbolDef(root, symName)
		if !found {
			continue
		}

		sym := &Symbol{
			LibID:    libID,
			Props:    defaultProps(def),
			Def:      def,
			SrcPath:  path,
			SrcMtime: info.ModTime().Unix(),
		}
		sym.Pins = schematic.PinsOfLibSymbol(def)
		return sym, nil
	}

	return nil, fmt.Errorf("%q: %w", libID, ErrNotFound)
}

func (r *FileResolver) loadLibrary(path string) (*sexp.List, error) {
	if root, ok := r.libs[path]; ok {
		return root, nil
	}

	root, err := sexp.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if root.Name() != "kicad_symbol_lib" {
		return nil, fmt.Errorf("not a symbol library: root is %q", root.Name())
	}

	r.libs[path] = root
	return root, nil
}

// findSymbolDef locates a named (symbol ...) definition, following
// "extends" references to a parent symbol within the same library.
func findSymbolDef(root *sexp.List, name string) (*sexp.List, bool) {
	for _, n := range root.FindAll("symbol") {
		got, err := n.StringAt(1)
		if err != nil || got != name {
			continue
		}
		if parent, ok := n.GetString("extends", 1); ok {
			if base, found := findSymbolDef(root, parent); found {
				merged := sexp.Clone(base).(*sexp.List)
				merged.SetString(1, name)
				return merged, true
			}
		}
		return n, true
	}
	return nil, false
}

// defaultProps extracts the library's default property values
// (Value, Footprint, Datasheet and any custom fields).
func defaultProps(def *sexp.List) map[string]string {
	out := make(map[string]string)
	for _, p := range def.FindAll("property") {
		key, err := p.StringAt(1)
		if err != nil || key == "Reference" {
			continue
		}
		val, _ := p.StringAt(2)
		if val != "" {
			out[key] = val
		}
	}
	return out
}
