package schematic

import (
	"github.com/circuitforge/circuitsync/pkg/kicad/sexp"
)

// Label kinds as they appear in the document.
const (
	KindLocal  = "label"
	KindGlobal = "global_label"
	KindHier   = "hierarchical_label"
)

// Label is a typed view over one connectivity label node of any kind.
type Label struct {
	kind string
	node *sexp.List
}

// Node returns the underlying tree node.
func (l *Label) Node() *sexp.List { return l.node }

// Kind returns the label's node kind (label, global_label or
// hierarchical_label).
func (l *Label) Kind() string { return l.kind }

// Text returns the net name the label carries.
func (l *Label) Text() string {
	v, _ := l.node.StringAt(1)
	return v
}

// Position returns the label anchor and rotation.
func (l *Label) Position() (x, y, angle float64) {
	at, ok := l.node.Find("at")
	if !ok {
		return 0, 0, 0
	}
	x, _ = at.FloatAt(1)
	y, _ = at.FloatAt(2)
	angle, _ = at.FloatAt(3)
	return x, y, angle
}

// UUID returns the label UUID.
func (l *Label) UUID() string {
	v, _ := l.node.GetString("uuid", 1)
	return v
}

// SetText renames the label in place.
func (l *Label) SetText(text string) {
	l.node.SetString(1, text)
}

// SetPosition moves the label anchor, keeping rotation.
func (l *Label) SetPosition(x, y float64) {
	_, _, angle := l.Position()
	at, ok := l.node.Find("at")
	if !ok {
		at = sexp.NewList("at")
		l.node.InsertAt(2, at)
	}
	at.Children = []sexp.Node{sexp.Sym("at"), sexp.Num(x), sexp.Num(y), sexp.Num(angle)}
}

// Labels returns every connectivity label in the fragment: local,
// global and hierarchical, in document order.
func (s *Schematic) Labels() []*Label {
	var out []*Label
	for _, kind := range []string{KindLocal, KindGlobal, KindHier} {
		for _, n := range s.root.FindAll(kind) {
			out = append(out, &Label{kind: kind, node: n})
		}
	}
	return out
}

// LabelsByText returns all labels carrying the given net name.
func (s *Schematic) LabelsByText(text string) []*Label {
	var out []*Label
	for _, l := range s.Labels() {
		if l.Text() == text {
			out = append(out, l)
		}
	}
	return out
}

// AddLabel places a connectivity label of the given kind at a pin
// position. Global and hierarchical labels carry a shape; local
// labels ignore it.
func (s *Schematic) AddLabel(kind, text, shape, uuid string, x, y, angle float64) *Label {
	node := sexp.NewList(kind, sexp.Str(text))
	if kind != KindLocal && shape != "" {
		node.Append(sexp.NewList("shape", sexp.Sym(shape)))
	}
	node.Append(
		sexp.NewList("at", sexp.Num(x), sexp.Num(y), sexp.Num(angle)),
		sexp.NewList("effects",
			sexp.NewList("font", sexp.NewList("size", sexp.Num(1.27), sexp.Num(1.27))),
		),
		sexp.NewList("uuid", sexp.Str(uuid)),
	)
	s.insertElement(node)
	return &Label{kind: kind, node: node}
}

// RemoveLabel deletes a label node from the document.
func (s *Schematic) RemoveLabel(l *Label) bool {
	return s.root.Remove(l.node)
}

// PowerSymbols returns the power-rail markers in the fragment.
func (s *Schematic) PowerSymbols() []*Symbol {
	var out []*Symbol
	for _, sym := range s.Symbols() {
		if sym.IsPower() {
			out = append(out, sym)
		}
	}
	return out
}

// PowerNet returns the rail name a power symbol asserts: its Value
// property when set, else the symbol name after "power:".
func PowerNet(sym *Symbol) string {
	if v, ok := sym.Property("Value"); ok && v != "" {
		return v
	}
	libID := sym.LibID()
	if len(libID) > len("power:") {
		return libID[len("power:"):]
	}
	return libID
}

// AddPowerSymbol places a power-rail marker whose single pin sits at
// the given position.
func (s *Schematic) AddPowerSymbol(libID, netName, uuid string, x, y float64) *Symbol {
	sym := s.AddSymbol(libID, uuid, "#PWR", x, y, 0, []string{"1"})
	sym.SetProperty("Value", netName)
	return sym
}
