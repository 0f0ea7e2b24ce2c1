package circuit

import (
	"sort"

	"github.com/circuitforge/circuitsync/pkg/kicad/schematic"
)

// FromSchematic interprets one parsed document fragment as a circuit.
// It is a pure function and a superset extraction: everything the
// description builder produces is recovered, plus document-only state
// (manual positions, rotations, mirror flags).
//
// Connectivity is read from the engine's own annotation discipline:
// every synthesized net endpoint carries a label (or power symbol) at
// the pin's position, so nets are recovered by matching annotation
// positions against computed pin positions. Routed wires are opaque
// user content and are not interpreted.
//
// Unlike Normalize, single-endpoint nets are kept: in a sub-circuit
// fragment a boundary net may touch only one internal pin, with its
// other ends living in the parent.
func FromSchematic(sch *schematic.Schematic) *Circuit {
	c := New(sch.UUID())

	type tap struct {
		name string
		x, y float64
	}
	var taps []tap

	for _, l := range sch.Labels() {
		x, y, _ := l.Position()
		taps = append(taps, tap{name: l.Text(), x: x, y: y})
	}

	for _, pwr := range sch.PowerSymbols() {
		name := schematic.PowerNet(pwr)
		positions := sch.PinPositions(pwr)
		if len(positions) == 0 {
			// Lib symbol not embedded; the pin sits at the anchor.
			x, y, _ := pwr.Position()
			taps = append(taps, tap{name: name, x: x, y: y})
			continue
		}
		for _, p := range positions {
			taps = append(taps, tap{name: name, x: p[0], y: p[1]})
		}
	}

	nets := make(map[string]*Net)

	for _, sym := range sch.ComponentSymbols() {
		x, y, angle := sym.Position()
		comp := &Component{
			ID:    ID(sym.UUID()),
			Ref:   sym.Reference(),
			LibID: sym.LibID(),
			Props: make(map[string]string),
			Pos:   Position{X: x, Y: y, Angle: angle, Mirror: sym.Mirror()},
			Placed: true,
		}
		for k, v := range sym.Properties() {
			if k == "Reference" {
				continue
			}
			comp.Props[k] = v
		}
		for _, pin := range sch.LibSymbolPins(sym.LibID()) {
			comp.Pins = append(comp.Pins, Pin{Number: pin.Number, Name: pin.Name, Type: pin.Type})
		}
		c.Components = append(c.Components, comp)

		for num, pos := range sch.PinPositions(sym) {
			for _, t := range taps {
				if !schematic.SamePoint(pos[0], pos[1], t.x, t.y) {
					continue
				}
				net := nets[t.name]
				if net == nil {
					net = &Net{Name: t.name, Explicit: !IsImplicitName(t.name)}
					nets[t.name] = net
				}
				ep := Endpoint{Component: comp.ID, Pin: num}
				if !net.Has(ep) {
					net.Endpoints = append(net.Endpoints, ep)
				}
			}
		}
	}

	names := make([]string, 0, len(nets))
	for name := range nets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		n := nets[name]
		sort.Slice(n.Endpoints, func(i, j int) bool {
			a, b := n.Endpoints[i], n.Endpoints[j]
			if a.Component != b.Component {
				return a.Component < b.Component
			}
			return a.Pin < b.Pin
		})
		c.Nets = append(c.Nets, n)
	}

	for _, sh := range sch.Sheets() {
		inst := &Instance{
			ID:       ID(sh.UUID()),
			Name:     sh.Name(),
			Ports:    sh.Pins(),
			Bindings: make(map[string]string),
		}
		for _, pinName := range sh.Pins() {
			px, py, ok := sh.PinPosition(pinName)
			if !ok {
				continue
			}
			for _, t := range taps {
				if schematic.SamePoint(px, py, t.x, t.y) {
					inst.Bindings[pinName] = t.name
					break
				}
			}
		}
		c.Instances = append(c.Instances, inst)
	}

	sort.Slice(c.Components, func(i, j int) bool { return refLess(c.Components[i].Ref, c.Components[j].Ref) })
	sort.Slice(c.Instances, func(i, j int) bool { return c.Instances[i].Name < c.Instances[j].Name })

	return c
}
