package schematic

import (
	"strings"

	"github.com/circuitforge/circuitsync/pkg/kicad/sexp"
)

// Symbol is a typed view over one placed (symbol ...) node.
type Symbol struct {
	node *sexp.List
}

// Node returns the underlying tree node.
func (y *Symbol) Node() *sexp.List { return y.node }

// Symbols returns all placed symbol instances, including power
// symbols, in document order.
func (s *Schematic) Symbols() []*Symbol {
	nodes := s.root.FindAll("symbol")
	out := make([]*Symbol, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Symbol{node: n})
	}
	return out
}

// ComponentSymbols returns placed symbols that represent real
// components, excluding power-rail symbols.
func (s *Schematic) ComponentSymbols() []*Symbol {
	var out []*Symbol
	for _, sym := range s.Symbols() {
		if !sym.IsPower() {
			out = append(out, sym)
		}
	}
	return out
}

// SymbolByUUID finds a placed symbol by its instance UUID.
func (s *Schematic) SymbolByUUID(uuid string) (*Symbol, bool) {
	for _, sym := range s.Symbols() {
		if sym.UUID() == uuid {
			return sym, true
		}
	}
	return nil, false
}

// LibID returns the symbol's library identifier, e.g. "Device:R".
func (y *Symbol) LibID() string {
	v, _ := y.node.GetString("lib_id", 1)
	return v
}

// IsPower reports whether the symbol is a power-rail marker.
func (y *Symbol) IsPower() bool {
	return strings.HasPrefix(y.LibID(), "power:")
}

// UUID returns the instance UUID, the symbol's stable identity.
func (y *Symbol) UUID() string {
	v, _ := y.node.GetString("uuid", 1)
	return v
}

// Position returns the placement and rotation in degrees.
func (y *Symbol) Position() (x, y2, angle float64) {
	at, ok := y.node.Find("at")
	if !ok {
		return 0, 0, 0
	}
	x, _ = at.FloatAt(1)
	y2, _ = at.FloatAt(2)
	angle, _ = at.FloatAt(3)
	return x, y2, angle
}

// Mirror returns the mirror axis ("x", "y") or "".
func (y *Symbol) Mirror() string {
	v, _ := y.node.GetString("mirror", 1)
	return v
}

// SetPosition rewrites the placement node.
func (y *Symbol) SetPosition(x, y2, angle float64) {
	at, ok := y.node.Find("at")
	if !ok {
		at = sexp.NewList("at")
		y.node.InsertAt(2, at)
	}
	at.Children = []sexp.Node{sexp.Sym("at"), sexp.Num(x), sexp.Num(y2), sexp.Num(angle)}
}

// Property returns the value of the named property and whether it
// exists.
func (y *Symbol) Property(key string) (string, bool) {
	for _, p := range y.node.FindAll("property") {
		k, err := p.StringAt(1)
		if err != nil {
			continue
		}
		if k == key {
			v, _ := p.StringAt(2)
			return v, true
		}
	}
	return "", false
}

// Properties returns all property keys and values in document order.
func (y *Symbol) Properties() map[string]string {
	out := make(map[string]string)
	for _, p := range y.node.FindAll("property") {
		k, err := p.StringAt(1)
		if err != nil {
			continue
		}
		v, _ := p.StringAt(2)
		out[k] = v
	}
	return out
}

// SetProperty updates a property value in place, creating the
// property node (positioned at the symbol, hidden) if missing.
func (y *Symbol) SetProperty(key, value string) {
	for _, p := range y.node.FindAll("property") {
		k, err := p.StringAt(1)
		if err != nil {
			continue
		}
		if k == key {
			p.SetString(2, value)
			return
		}
	}

	x, ypos, _ := y.Position()
	prop := sexp.NewList("property", sexp.Str(key), sexp.Str(value),
		sexp.NewList("at", sexp.Num(x), sexp.Num(ypos), sexp.Num(0)),
		sexp.NewList("effects",
			sexp.NewList("font", sexp.NewList("size", sexp.Num(1.27), sexp.Num(1.27))),
			sexp.Sym("hide"),
		),
	)

	// Keep properties grouped after the last existing one.
	props := y.node.FindAll("property")
	if len(props) > 0 {
		y.node.InsertAt(y.node.IndexOf(props[len(props)-1])+1, prop)
	} else {
		y.node.Append(prop)
	}
}

// RemoveProperty deletes the named property node.
func (y *Symbol) RemoveProperty(key string) bool {
	for _, p := range y.node.FindAll("property") {
		if k, err := p.StringAt(1); err == nil && k == key {
			return y.node.Remove(p)
		}
	}
	return false
}

// Reference returns the reference designator (the "Reference"
// property).
func (y *Symbol) Reference() string {
	v, _ := y.Property("Reference")
	return v
}

// SetReference updates the reference designator.
func (y *Symbol) SetReference(ref string) {
	y.SetProperty("Reference", ref)
}

// Value returns the "Value" property.
func (y *Symbol) Value() string {
	v, _ := y.Property("Value")
	return v
}

// AddSymbol places a new symbol instance. Pin UUIDs are derived from
// the instance UUID by suffixing the pin number, keeping them
// deterministic across runs.
func (s *Schematic) AddSymbol(libID, uuid, ref string, x, y, angle float64, pinNumbers []string) *Symbol {
	node := sexp.NewList("symbol",
		sexp.NewList("lib_id", sexp.Str(libID)),
		sexp.NewList("at", sexp.Num(x), sexp.Num(y), sexp.Num(angle)),
		sexp.NewList("unit", sexp.Int(1)),
		sexp.NewList("in_bom", sexp.Sym("yes")),
		sexp.NewList("on_board", sexp.Sym("yes")),
		sexp.NewList("uuid", sexp.Str(uuid)),
	)

	sym := &Symbol{node: node}
	s.insertElement(node)

	sym.SetProperty("Reference", ref)

	for _, num := range pinNumbers {
		node.Append(sexp.NewList("pin", sexp.Str(num),
			sexp.NewList("uuid", sexp.Str(uuid+"-pin"+num)),
		))
	}

	return sym
}

// RemoveSymbol deletes a placed symbol node from the document.
func (s *Schematic) RemoveSymbol(sym *Symbol) bool {
	return s.root.Remove(sym.node)
}
