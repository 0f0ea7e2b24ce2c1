// Package circuit defines the canonical, format-independent model of
// a circuit: components, pins, nets and sub-circuit instances held in
// flat collections and linked by stable identity rather than by
// pointers, so the graph stays cycle-free and lookups stay O(1).
package circuit

import (
	"fmt"
	"regexp"
	"sort"
)

// ID is a stable identity token. Assigned once when an entity first
// appears, persisted in the document, never recomputed from content.
type ID string

// provisionalPrefix marks identities of entities that have not been
// matched into a document yet: first-generation components from a
// description. They are distinguishable within one model but never
// match a persisted identity; the diff engine replaces them.
const provisionalPrefix = "new:"

// ProvisionalID builds a scope-unique placeholder identity for an
// entity with no persisted one.
func ProvisionalID(key string) ID {
	return ID(provisionalPrefix + key)
}

// IsProvisional reports whether an identity is a placeholder.
func IsProvisional(id ID) bool {
	return len(id) > len(provisionalPrefix) && id[:len(provisionalPrefix)] == provisionalPrefix
}

// Position is a placement on a sheet in mm, with rotation in degrees.
type Position struct {
	X, Y   float64
	Angle  float64
	Mirror string
}

// Pin belongs to exactly one component. Its identity across
// documents is (component ID, pin number).
type Pin struct {
	Number string
	Name   string
	Type   string // input, output, passive, power_in, ...
}

// Component is one placed part.
type Component struct {
	ID    ID
	Ref   string
	LibID string
	Props map[string]string
	Pins  []Pin

	// Pos and Placed carry document-only state: the builder from a
	// document records the manual position, the builder from a
	// description leaves Placed false.
	Pos    Position
	Placed bool
}

// Prop returns a property value or "".
func (c *Component) Prop(key string) string {
	return c.Props[key]
}

// PinSignature returns the component's pin numbers in sorted order,
// used as the last-resort matching key.
func (c *Component) PinSignature() []string {
	nums := make([]string, 0, len(c.Pins))
	for _, p := range c.Pins {
		nums = append(nums, p.Number)
	}
	sort.Strings(nums)
	return nums
}

// Endpoint is one (component, pin) attachment of a net.
type Endpoint struct {
	Component ID
	Pin       string
}

// Net is a named set of endpoints. Implicit names are auto-derived
// and unstable: they regenerate whenever the endpoint set changes.
type Net struct {
	Name      string
	Explicit  bool
	Endpoints []Endpoint
}

// Has reports whether the net attaches to the given endpoint.
func (n *Net) Has(ep Endpoint) bool {
	for _, e := range n.Endpoints {
		if e == ep {
			return true
		}
	}
	return false
}

// Instance is a named invocation of a sub-circuit definition. Its
// internal components and nets live in a private namespace.
type Instance struct {
	ID         ID
	Name       string
	Definition string

	// Ports lists the boundary interface names in declaration order.
	Ports []string

	// Bindings maps boundary interface names to parent net names.
	Bindings map[string]string

	Circuit *Circuit
}

// Circuit is one namespace of components, nets and child instances:
// the root circuit or the body of one sub-circuit instance.
type Circuit struct {
	Name       string
	Components []*Component
	Nets       []*Net
	Instances  []*Instance
}

// New creates an empty circuit.
func New(name string) *Circuit {
	return &Circuit{Name: name}
}

// AddComponent appends a component, rejecting duplicate stable
// identities.
func (c *Circuit) AddComponent(comp *Component) error {
	if comp.ID != "" {
		if _, ok := c.ComponentByID(comp.ID); ok {
			return fmt.Errorf("duplicate stable identity %q", comp.ID)
		}
	}
	if comp.Props == nil {
		comp.Props = make(map[string]string)
	}
	c.Components = append(c.Components, comp)
	return nil
}

// ComponentByID looks a component up by stable identity.
func (c *Circuit) ComponentByID(id ID) (*Component, bool) {
	for _, comp := range c.Components {
		if comp.ID == id {
			return comp, true
		}
	}
	return nil, false
}

// ComponentByRef looks a component up by reference designator.
func (c *Circuit) ComponentByRef(ref string) (*Component, bool) {
	for _, comp := range c.Components {
		if comp.Ref == ref {
			return comp, true
		}
	}
	return nil, false
}

// NetByName looks a net up by name.
func (c *Circuit) NetByName(name string) (*Net, bool) {
	for _, n := range c.Nets {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// NetOf returns the net attached to an endpoint, if any.
func (c *Circuit) NetOf(ep Endpoint) (*Net, bool) {
	for _, n := range c.Nets {
		if n.Has(ep) {
			return n, true
		}
	}
	return nil, false
}

// Connect attaches endpoints to the named net, creating it when
// needed. A pin belongs to at most one net: attaching an endpoint
// that is already on another net is an error.
func (c *Circuit) Connect(name string, explicit bool, eps ...Endpoint) (*Net, error) {
	net, ok := c.NetByName(name)
	if !ok {
		net = &Net{Name: name, Explicit: explicit}
		c.Nets = append(c.Nets, net)
	}

	for _, ep := range eps {
		if other, ok := c.NetOf(ep); ok {
			if other == net {
				continue
			}
			return nil, fmt.Errorf("pin %s.%s already on net %q", ep.Component, ep.Pin, other.Name)
		}
		net.Endpoints = append(net.Endpoints, ep)
	}

	return net, nil
}

// AddInstance appends a sub-circuit instance, rejecting duplicate
// identities.
func (c *Circuit) AddInstance(inst *Instance) error {
	if inst.ID != "" {
		for _, existing := range c.Instances {
			if existing.ID == inst.ID {
				return fmt.Errorf("duplicate stable identity %q", inst.ID)
			}
		}
	}
	if inst.Bindings == nil {
		inst.Bindings = make(map[string]string)
	}
	c.Instances = append(c.Instances, inst)
	return nil
}

// InstanceByID looks an instance up by stable identity.
func (c *Circuit) InstanceByID(id ID) (*Instance, bool) {
	for _, inst := range c.Instances {
		if inst.ID == id {
			return inst, true
		}
	}
	return nil, false
}

// Normalize brings the circuit to its reduced form: nets with fewer
// than two endpoints are dropped (a net needs two ends to exist),
// implicit net names are regenerated from their endpoint sets, and
// collections are sorted for deterministic iteration.
func (c *Circuit) Normalize() {
	kept := c.Nets[:0]
	for _, n := range c.Nets {
		if len(n.Endpoints) < 2 {
			continue
		}
		if !n.Explicit {
			n.Name = c.ImplicitNetName(n)
		}
		sort.Slice(n.Endpoints, func(i, j int) bool {
			a, b := n.Endpoints[i], n.Endpoints[j]
			if a.Component != b.Component {
				return a.Component < b.Component
			}
			return a.Pin < b.Pin
		})
		kept = append(kept, n)
	}
	c.Nets = kept

	sort.Slice(c.Components, func(i, j int) bool { return refLess(c.Components[i].Ref, c.Components[j].Ref) })
	sort.Slice(c.Nets, func(i, j int) bool { return c.Nets[i].Name < c.Nets[j].Name })
	sort.Slice(c.Instances, func(i, j int) bool { return c.Instances[i].Name < c.Instances[j].Name })

	for _, inst := range c.Instances {
		if inst.Circuit != nil {
			inst.Circuit.Normalize()
		}
	}
}

// ImplicitNetName derives the unstable auto-name of a net from its
// lexicographically smallest endpoint, KiCad-style.
func (c *Circuit) ImplicitNetName(n *Net) string {
	if len(n.Endpoints) == 0 {
		return "Net-()"
	}

	best := ""
	for _, ep := range n.Endpoints {
		ref := string(ep.Component)
		if comp, ok := c.ComponentByID(ep.Component); ok {
			ref = comp.Ref
		}
		candidate := fmt.Sprintf("Net-(%s-Pad%s)", ref, ep.Pin)
		if best == "" || candidate < best {
			best = candidate
		}
	}
	return best
}

var implicitNamePattern = regexp.MustCompile(`^Net-\(.*\)$`)

// IsImplicitName reports whether a net name looks auto-derived.
func IsImplicitName(name string) bool {
	return implicitNamePattern.MatchString(name)
}

var powerNetPattern = regexp.MustCompile(`^(VCC|VDD|VBUS|VEE|VSS|GND|AGND|DGND|[+-][0-9]+(\.[0-9]+)?V[0-9]*)$`)

// IsPowerNet reports whether a net name denotes a fixed-potential
// rail that should be marked with power symbols rather than labels.
func IsPowerNet(name string) bool {
	return powerNetPattern.MatchString(name)
}

// refLess orders reference designators naturally: R2 before R10.
func refLess(a, b string) bool {
	pa, na := splitRef(a)
	pb, nb := splitRef(b)
	if pa != pb {
		return pa < pb
	}
	if na != nb {
		return na < nb
	}
	return a < b
}

func splitRef(ref string) (string, int) {
	i := 0
	for i < len(ref) && (ref[i] < '0' || ref[i] > '9') {
		i++
	}
	n := 0
	for j := i; j < len(ref); j++ {
		if ref[j] < '0' || ref[j] > '9' {
			return ref[:i], n
		}
		n = n*10 + int(ref[j]-'0')
	}
	return ref[:i], n
}

// RefLess is the deterministic ordering used for tie-breaking and
// stable output across the engine.
func RefLess(a, b string) bool { return refLess(a, b) }
