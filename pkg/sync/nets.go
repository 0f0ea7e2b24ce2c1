package sync

import (
	"github.com/circuitforge/circuitsync/pkg/circuit"
	"github.com/circuitforge/circuitsync/pkg/kicad/schematic"
	"github.com/circuitforge/circuitsync/pkg/kicad/sexp"
	"github.com/circuitforge/circuitsync/pkg/library"
)

// Annotation reconciliation brings a fragment's connectivity markers
// (labels and power symbols) to the state the final net list implies:
// one marker per net endpoint, at the pin's position. Markers at pin
// positions that no longer carry their net are removed; markers the
// user placed elsewhere (on wires, free text) are never touched.
// Nets classified Keep already satisfy the rule, so reconciliation
// leaves them byte-identical.

// netState is one net of the fragment's final model, in document
// identity space.
type netState struct {
	name      string
	endpoints []circuit.Endpoint
	boundary  bool // crosses this fragment's boundary interface
}

// bindingPoint is a parent-side connection of a sub-circuit instance:
// the position of a sheet pin and the parent net bound to it.
type bindingPoint struct {
	x, y float64
	net  string
}

type point struct{ x, y float64 }

// marker is a net name pinned to a position where a connectivity
// annotation is justified.
type marker struct {
	point
	name string
}

// annotator applies net annotation edits to one fragment.
type annotator struct {
	sch      *schematic.Schematic
	resolver library.Resolver
	newID    func() string

	// anchors are every position where a marker is machine-owned:
	// component pin positions and sheet pin positions, captured
	// before symbols were removed so stale markers of removed parts
	// are still recognized.
	anchors []point
}

func newAnnotator(sch *schematic.Schematic, resolver library.Resolver, newID func() string) *annotator {
	return &annotator{sch: sch, resolver: resolver, newID: newID}
}

// captureAnchors records the machine-owned marker positions of the
// fragment's current state. Call before component or sheet removal.
func (a *annotator) captureAnchors() {
	for _, sym := range a.sch.ComponentSymbols() {
		for _, pos := range a.sch.PinPositions(sym) {
			a.anchors = append(a.anchors, point{pos[0], pos[1]})
		}
	}
	for _, sh := range a.sch.Sheets() {
		for _, name := range sh.Pins() {
			if x, y, ok := sh.PinPosition(name); ok {
				a.anchors = append(a.anchors, point{x, y})
			}
		}
	}
}

// addAnchor extends the anchor set, used for newly placed symbols.
func (a *annotator) addAnchor(x, y float64) {
	a.anchors = append(a.anchors, point{x, y})
}

// reconcile renames, sweeps and adds markers so the fragment matches
// the final net list plus the parent-side binding labels.
func (a *annotator) reconcile(plan *Plan, nets []netState, bindings []bindingPoint) {
	a.applyRenames(plan)

	valid := a.validMarkers(nets, bindings)
	a.sweep(valid)
	a.addMissing(nets, valid)
	a.addBindingLabels(bindings)
}

// applyRenames rewrites label text in place for nets that kept their
// identity under a new name, so their manual placement survives.
func (a *annotator) applyRenames(plan *Plan) {
	for _, e := range plan.Nets {
		if e.Op != OpUpdate || e.Current.Name == e.Desired.Name {
			continue
		}
		for _, l := range a.sch.LabelsByText(e.Current.Name) {
			l.SetText(e.Desired.Name)
		}
	}
}

// validMarkers maps out where each net name is allowed to appear.
func (a *annotator) validMarkers(nets []netState, bindings []bindingPoint) []marker {
	var valid []marker
	for _, n := range nets {
		for _, ep := range n.endpoints {
			if x, y, ok := a.endpointPosition(ep); ok {
				valid = append(valid, marker{point{x, y}, n.name})
			}
		}
	}
	for _, b := range bindings {
		valid = append(valid, marker{point{b.x, b.y}, b.net})
	}
	return valid
}

// sweep removes markers sitting on an anchor position that the final
// net list does not justify.
func (a *annotator) sweep(valid []marker) {
	for _, l := range a.sch.Labels() {
		x, y, _ := l.Position()
		if a.anchored(x, y) && !markerValid(valid, l.Text(), x, y) {
			a.sch.RemoveLabel(l)
		}
	}
	for _, pwr := range a.sch.PowerSymbols() {
		name := schematic.PowerNet(pwr)
		for _, pos := range a.powerPinPositions(pwr) {
			if a.anchored(pos.x, pos.y) && !markerValid(valid, name, pos.x, pos.y) {
				a.sch.RemoveSymbol(pwr)
				break
			}
		}
	}
}

// addMissing places a marker at every endpoint that lacks one.
func (a *annotator) addMissing(nets []netState, valid []marker) {
	for _, n := range nets {
		for _, ep := range n.endpoints {
			x, y, ok := a.endpointPosition(ep)
			if !ok || a.hasMarker(n.name, x, y) {
				continue
			}
			a.addMarker(n, x, y)
		}
	}
}

func (a *annotator) addBindingLabels(bindings []bindingPoint) {
	for _, b := range bindings {
		if !a.hasMarker(b.net, b.x, b.y) {
			a.sch.AddLabel(schematic.KindLocal, b.net, "", a.newID(), b.x, b.y, 0)
		}
	}
}

// addMarker picks the marker kind for a net: hierarchical labels for
// boundary nets, power symbols for rails, local labels otherwise.
func (a *annotator) addMarker(n netState, x, y float64) {
	switch {
	case n.boundary:
		a.sch.AddLabel(schematic.KindHier, n.name, "passive", a.newID(), x, y, 0)
	case circuit.IsPowerNet(n.name):
		libID := "power:" + n.name
		a.sch.EnsureLibSymbol(libID, a.powerDef(libID, n.name))
		a.sch.AddPowerSymbol(libID, n.name, a.newID(), x, y)
	default:
		a.sch.AddLabel(schematic.KindLocal, n.name, "", a.newID(), x, y, 0)
	}
}

// hasMarker reports whether a label or power symbol for the net
// already sits at the position.
func (a *annotator) hasMarker(name string, x, y float64) bool {
	for _, l := range a.sch.LabelsByText(name) {
		lx, ly, _ := l.Position()
		if schematic.SamePoint(lx, ly, x, y) {
			return true
		}
	}
	for _, pwr := range a.sch.PowerSymbols() {
		if schematic.PowerNet(pwr) != name {
			continue
		}
		for _, pos := range a.powerPinPositions(pwr) {
			if schematic.SamePoint(pos.x, pos.y, x, y) {
				return true
			}
		}
	}
	return false
}

func (a *annotator) endpointPosition(ep circuit.Endpoint) (float64, float64, bool) {
	sym, ok := a.sch.SymbolByUUID(string(ep.Component))
	if !ok {
		return 0, 0, false
	}
	return a.sch.PinWorldPosition(sym, ep.Pin)
}

func (a *annotator) powerPinPositions(pwr *schematic.Symbol) []point {
	positions := a.sch.PinPositions(pwr)
	if len(positions) == 0 {
		x, y, _ := pwr.Position()
		return []point{{x, y}}
	}
	out := make([]point, 0, len(positions))
	for _, pos := range positions {
		out = append(out, point{pos[0], pos[1]})
	}
	return out
}

func (a *annotator) anchored(x, y float64) bool {
	for _, p := range a.anchors {
		if schematic.SamePoint(p.x, p.y, x, y) {
			return true
		}
	}
	return false
}

func markerValid(valid []marker, name string, x, y float64) bool {
	for _, v := range valid {
		if v.name == name && schematic.SamePoint(v.x, v.y, x, y) {
			return true
		}
	}
	return false
}

// powerDef resolves the power symbol definition from the library,
// falling back to a minimal synthetic one whose single pin sits at
// the anchor.
func (a *annotator) powerDef(libID, netName string) *sexp.List {
	if a.resolver != nil {
		if sym, err := a.resolver.Resolve(libID); err == nil {
			return sym.Def
		}
	}
	return sexp.NewList("symbol", sexp.Str(libID),
		sexp.NewList("power"),
		sexp.NewList("pin_names", sexp.NewList("offset", sexp.Num(0))),
		sexp.NewList("pin", sexp.Sym("power_in"), sexp.Sym("line"),
			sexp.NewList("at", sexp.Num(0), sexp.Num(0), sexp.Num(90)),
			sexp.NewList("length", sexp.Num(0)),
			sexp.NewList("name", sexp.Str(netName)),
			sexp.NewList("number", sexp.Str("1")),
		),
	)
}
