package schematic

import (
	"github.com/circuitforge/circuitsync/pkg/kicad/sexp"
)

// Sheet is a typed view over one hierarchical (sheet ...) reference.
type Sheet struct {
	node *sexp.List
}

// Node returns the underlying tree node.
func (sh *Sheet) Node() *sexp.List { return sh.node }

// Sheets returns the fragment's hierarchical sheet references.
func (s *Schematic) Sheets() []*Sheet {
	nodes := s.root.FindAll("sheet")
	out := make([]*Sheet, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Sheet{node: n})
	}
	return out
}

// SheetByUUID finds a sheet reference by its UUID, the sub-circuit
// instance's stable identity.
func (s *Schematic) SheetByUUID(uuid string) (*Sheet, bool) {
	for _, sh := range s.Sheets() {
		if sh.UUID() == uuid {
			return sh, true
		}
	}
	return nil, false
}

// UUID returns the sheet UUID.
func (sh *Sheet) UUID() string {
	v, _ := sh.node.GetString("uuid", 1)
	return v
}

// Name returns the "Sheetname" property.
func (sh *Sheet) Name() string {
	return sh.property("Sheetname")
}

// FileName returns the "Sheetfile" property.
func (sh *Sheet) FileName() string {
	return sh.property("Sheetfile")
}

// SetName rewrites the "Sheetname" property only; the file name is
// tied to the instance identity and never changes on rename.
func (sh *Sheet) SetName(name string) {
	sh.setProperty("Sheetname", name)
}

// Position returns the sheet outline origin.
func (sh *Sheet) Position() (x, y float64) {
	at, ok := sh.node.Find("at")
	if !ok {
		return 0, 0
	}
	x, _ = at.FloatAt(1)
	y, _ = at.FloatAt(2)
	return x, y
}

// Size returns the sheet outline size.
func (sh *Sheet) Size() (w, h float64) {
	sz, ok := sh.node.Find("size")
	if !ok {
		return 0, 0
	}
	w, _ = sz.FloatAt(1)
	h, _ = sz.FloatAt(2)
	return w, h
}

// Pins returns the sheet's boundary pin names in document order.
func (sh *Sheet) Pins() []string {
	var out []string
	for _, p := range sh.node.FindAll("pin") {
		name, err := p.StringAt(1)
		if err == nil {
			out = append(out, name)
		}
	}
	return out
}

// PinPosition returns the position of the named boundary pin.
func (sh *Sheet) PinPosition(name string) (x, y float64, ok bool) {
	for _, p := range sh.node.FindAll("pin") {
		n, err := p.StringAt(1)
		if err != nil || n != name {
			continue
		}
		at, found := p.Find("at")
		if !found {
			return 0, 0, false
		}
		x, _ = at.FloatAt(1)
		y, _ = at.FloatAt(2)
		return x, y, true
	}
	return 0, 0, false
}

// AddPin adds a boundary pin on the sheet's left edge, stacked below
// existing pins.
func (sh *Sheet) AddPin(name, shape, uuid string) {
	x, y := sh.Position()
	offset := 2.54 * float64(len(sh.node.FindAll("pin"))+1)
	pin := sexp.NewList("pin", sexp.Str(name), sexp.Sym(shape),
		sexp.NewList("at", sexp.Num(x), sexp.Num(y+offset), sexp.Num(180)),
		sexp.NewList("effects",
			sexp.NewList("font", sexp.NewList("size", sexp.Num(1.27), sexp.Num(1.27))),
		),
		sexp.NewList("uuid", sexp.Str(uuid)),
	)
	sh.node.Append(pin)
}

// RemovePin deletes the named boundary pin.
func (sh *Sheet) RemovePin(name string) bool {
	for _, p := range sh.node.FindAll("pin") {
		if n, err := p.StringAt(1); err == nil && n == name {
			return sh.node.Remove(p)
		}
	}
	return false
}

func (sh *Sheet) property(key string) string {
	for _, p := range sh.node.FindAll("property") {
		if k, err := p.StringAt(1); err == nil && k == key {
			v, _ := p.StringAt(2)
			return v
		}
	}
	return ""
}

func (sh *Sheet) setProperty(key, value string) {
	for _, p := range sh.node.FindAll("property") {
		if k, err := p.StringAt(1); err == nil && k == key {
			p.SetString(2, value)
			return
		}
	}
	x, y := sh.Position()
	sh.node.Append(sexp.NewList("property", sexp.Str(key), sexp.Str(value),
		sexp.NewList("at", sexp.Num(x), sexp.Num(y), sexp.Num(0)),
		sexp.NewList("effects",
			sexp.NewList("font", sexp.NewList("size", sexp.Num(1.27), sexp.Num(1.27))),
		),
	))
}

// AddSheet places a hierarchical sheet reference.
func (s *Schematic) AddSheet(name, file, uuid string, x, y, w, h float64) *Sheet {
	node := sexp.NewList("sheet",
		sexp.NewList("at", sexp.Num(x), sexp.Num(y)),
		sexp.NewList("size", sexp.Num(w), sexp.Num(h)),
		sexp.NewList("stroke",
			sexp.NewList("width", sexp.Num(0.1524)),
			sexp.NewList("type", sexp.Sym("solid")),
		),
		sexp.NewList("fill",
			sexp.NewList("color", sexp.Num(0), sexp.Num(0), sexp.Num(0), sexp.Num(0)),
		),
		sexp.NewList("uuid", sexp.Str(uuid)),
	)
	sh := &Sheet{node: node}
	s.insertElement(node)
	sh.setProperty("Sheetname", name)
	sh.setProperty("Sheetfile", file)
	return sh
}

// RemoveSheet deletes a sheet reference from the document.
func (s *Schematic) RemoveSheet(sh *Sheet) bool {
	return s.root.Remove(sh.node)
}

// EnsureSheetInstances guarantees the root page table exists with the
// root path; eeschema requires it on the top-level document.
func (s *Schematic) EnsureSheetInstances() {
	if _, ok := s.root.Find("sheet_instances"); ok {
		return
	}
	s.root.Append(sexp.NewList("sheet_instances",
		sexp.NewList("path", sexp.Str("/"), sexp.NewList("page", sexp.Str("1"))),
	))
}
