package schematic

import (
	"github.com/circuitforge/circuitsync/pkg/kicad/sexp"
)

// LibPin describes one pin of an embedded library symbol: its local
// offset within the symbol body (+y up, pre-rotation), orientation,
// electrical type and naming.
type LibPin struct {
	Number string
	Name   string
	Type   string
	X, Y   float64
	Angle  float64
	Length float64
}

// LibSymbolNames returns the names of symbols embedded in the
// fragment's lib_symbols section.
func (s *Schematic) LibSymbolNames() []string {
	libs, ok := s.root.Find("lib_symbols")
	if !ok {
		return nil
	}
	var out []string
	for _, n := range libs.FindAll("symbol") {
		name, err := n.StringAt(1)
		if err == nil {
			out = append(out, name)
		}
	}
	return out
}

// HasLibSymbol reports whether the named symbol is embedded.
func (s *Schematic) HasLibSymbol(name string) bool {
	_, ok := s.libSymbolNode(name)
	return ok
}

// EnsureLibSymbol embeds a symbol definition under lib_symbols,
// cloning the given definition tree. Already-embedded definitions are
// left untouched so user edits to them survive.
func (s *Schematic) EnsureLibSymbol(name string, def *sexp.List) {
	if s.HasLibSymbol(name) {
		return
	}

	libs, ok := s.root.Find("lib_symbols")
	if !ok {
		libs = sexp.NewList("lib_symbols")
		// lib_symbols belongs near the top, after the header fields.
		if paper, found := s.root.Find("paper"); found {
			s.root.InsertAt(s.root.IndexOf(paper)+1, libs)
		} else {
			s.root.Append(libs)
		}
	}

	clone := sexp.Clone(def).(*sexp.List)
	clone.SetString(1, name)
	libs.Append(clone)
}

// LibSymbolPins extracts the pin list of an embedded symbol,
// including pins of nested symbol units.
func (s *Schematic) LibSymbolPins(name string) []LibPin {
	node, ok := s.libSymbolNode(name)
	if !ok {
		return nil
	}
	return PinsOfLibSymbol(node)
}

// PinsOfLibSymbol extracts pins from a (symbol ...) definition tree.
func PinsOfLibSymbol(node *sexp.List) []LibPin {
	var out []LibPin
	collect := func(n *sexp.List) {
		for _, p := range n.FindAll("pin") {
			pin := LibPin{}
			pin.Type, _ = p.StringAt(1)
			if at, ok := p.Find("at"); ok {
				pin.X, _ = at.FloatAt(1)
				pin.Y, _ = at.FloatAt(2)
				pin.Angle, _ = at.FloatAt(3)
			}
			if ln, ok := p.Find("length"); ok {
				pin.Length, _ = ln.FloatAt(1)
			}
			if nm, ok := p.Find("name"); ok {
				pin.Name, _ = nm.StringAt(1)
			}
			if num, ok := p.Find("number"); ok {
				pin.Number, _ = num.StringAt(1)
			}
			out = append(out, pin)
		}
	}

	collect(node)
	for _, unit := range node.FindAll("symbol") {
		collect(unit)
	}
	return out
}

func (s *Schematic) libSymbolNode(name string) (*sexp.List, bool) {
	libs, ok := s.root.Find("lib_symbols")
	if !ok {
		return nil, false
	}
	for _, n := range libs.FindAll("symbol") {
		if got, err := n.StringAt(1); err == nil && got == name {
			return n, true
		}
	}
	return nil, false
}
