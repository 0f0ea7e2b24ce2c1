package sync

import (
	"fmt"
	"sort"

	"github.com/circuitforge/circuitsync/pkg/circuit"
)

// Op classifies one entity in an edit plan.
type Op int

const (
	OpKeep Op = iota
	OpUpdate
	OpAdd
	OpRemove
)

func (op Op) String() string {
	switch op {
	case OpKeep:
		return "keep"
	case OpUpdate:
		return "update"
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	}
	return "unknown"
}

// ComponentEdit is the plan entry for one component.
type ComponentEdit struct {
	Op      Op
	Current *circuit.Component // nil for Add
	Desired *circuit.Component // nil for Remove

	// PropPatch holds the minimal property delta for Update: only
	// keys the description sets to a different value. Properties the
	// description does not mention pass through untouched.
	PropPatch map[string]string

	// NewRef is the reference designator to rename to, "" when the
	// reference is unchanged.
	NewRef string

	// AssignedID is filled by the runner for Add entries once a
	// stable identity has been minted.
	AssignedID circuit.ID
}

// NetEdit is the plan entry for one net. Desired endpoints are kept
// in description identity space; MapEndpoint translates them.
type NetEdit struct {
	Op      Op
	Current *circuit.Net
	Desired *circuit.Net
}

// InstanceEdit is the plan entry for one sub-circuit instance.
type InstanceEdit struct {
	Op      Op
	Current *circuit.Instance
	Desired *circuit.Instance

	// NewName is set on Update when the instance was renamed.
	NewName string

	AssignedID circuit.ID
}

// Plan is the complete edit set of one fragment diff.
type Plan struct {
	Components []ComponentEdit
	Nets       []NetEdit
	Instances  []InstanceEdit

	// IDMap resolves description-side component identities to the
	// identities the document will carry: the matched document UUID
	// for kept components, later the minted UUID for added ones.
	IDMap map[circuit.ID]circuit.ID
}

// MapEndpoint translates a description-space endpoint into document
// identity space.
func (p *Plan) MapEndpoint(ep circuit.Endpoint) circuit.Endpoint {
	if id, ok := p.IDMap[ep.Component]; ok {
		return circuit.Endpoint{Component: id, Pin: ep.Pin}
	}
	return ep
}

// Diff matches the desired circuit against the current document state
// and classifies every component, net and instance. Matching order:
// persisted stable identity, then (lib id, reference) equality, then
// pin-signature similarity, with ties broken by reference order so
// output is reproducible across runs.
func Diff(current, desired *circuit.Circuit) (*Plan, error) {
	if err := checkIdentityConflicts(desired); err != nil {
		return nil, err
	}

	plan := &Plan{IDMap: make(map[circuit.ID]circuit.ID)}
	plan.diffComponents(current, desired)
	plan.diffNets(current, desired)
	plan.diffInstances(current, desired)
	return plan, nil
}

// IdentityConflictError reports two desired entities claiming the
// same stable identity.
type IdentityConflictError struct {
	ID   circuit.ID
	A, B string
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("identity conflict: %s and %s both claim %q", e.A, e.B, e.ID)
}

func checkIdentityConflicts(desired *circuit.Circuit) error {
	owners := make(map[circuit.ID]string)
	for _, comp := range desired.Components {
		if comp.ID == "" || circuit.IsProvisional(comp.ID) {
			continue
		}
		if prev, dup := owners[comp.ID]; dup {
			return &IdentityConflictError{ID: comp.ID, A: prev, B: comp.Ref}
		}
		owners[comp.ID] = comp.Ref
	}
	for _, inst := range desired.Instances {
		if inst.ID == "" || circuit.IsProvisional(inst.ID) {
			continue
		}
		if prev, dup := owners[inst.ID]; dup {
			return &IdentityConflictError{ID: inst.ID, A: prev, B: inst.Name}
		}
		owners[inst.ID] = inst.Name
	}
	return nil
}

func (p *Plan) diffComponents(current, desired *circuit.Circuit) {
	des := make([]*circuit.Component, len(desired.Components))
	copy(des, desired.Components)
	sort.Slice(des, func(i, j int) bool { return circuit.RefLess(des[i].Ref, des[j].Ref) })

	claimed := make(map[*circuit.Component]bool)
	match := make(map[*circuit.Component]*circuit.Component)

	// Persisted identity wins outright.
	for _, d := range des {
		if d.ID == "" || circuit.IsProvisional(d.ID) {
			continue
		}
		if cur, ok := current.ComponentByID(d.ID); ok && !claimed[cur] {
			claimed[cur] = true
			match[d] = cur
		}
	}

	// First-generation fallback: same lib id and reference.
	for _, d := range des {
		if match[d] != nil {
			continue
		}
		if cur := pickCandidate(current, claimed, func(c *circuit.Component) bool {
			return c.LibID == d.LibID && c.Ref == d.Ref
		}); cur != nil {
			claimed[cur] = true
			match[d] = cur
		}
	}

	// Last resort: same pin signature among still-unclaimed parts.
	for _, d := range des {
		if match[d] != nil || len(d.Pins) == 0 {
			continue
		}
		sig := d.PinSignature()
		if cur := pickCandidate(current, claimed, func(c *circuit.Component) bool {
			return c.LibID == d.LibID && sigEqual(c.PinSignature(), sig)
		}); cur != nil {
			claimed[cur] = true
			match[d] = cur
		}
	}

	for _, d := range des {
		cur := match[d]
		if cur == nil {
			p.Components = append(p.Components, ComponentEdit{Op: OpAdd, Desired: d})
			p.IDMap[d.ID] = d.ID
			continue
		}

		p.IDMap[d.ID] = cur.ID
		edit := ComponentEdit{Current: cur, Desired: d}
		if d.Ref != cur.Ref {
			edit.NewRef = d.Ref
		}
		for _, key := range sortedKeys(d.Props) {
			if cur.Props[key] != d.Props[key] {
				if edit.PropPatch == nil {
					edit.PropPatch = make(map[string]string)
				}
				edit.PropPatch[key] = d.Props[key]
			}
		}
		if edit.NewRef == "" && len(edit.PropPatch) == 0 {
			edit.Op = OpKeep
		} else {
			edit.Op = OpUpdate
		}
		p.Components = append(p.Components, edit)
	}

	removed := make([]*circuit.Component, 0)
	for _, cur := range current.Components {
		if !claimed[cur] {
			removed = append(removed, cur)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return circuit.RefLess(removed[i].Ref, removed[j].Ref) })
	for _, cur := range removed {
		p.Components = append(p.Components, ComponentEdit{Op: OpRemove, Current: cur})
	}
}

// pickCandidate returns the unclaimed current component satisfying
// ok, preferring the smallest reference, then the smallest identity,
// so repeated runs pick the same one.
func pickCandidate(current *circuit.Circuit, claimed map[*circuit.Component]bool, ok func(*circuit.Component) bool) *circuit.Component {
	var best *circuit.Component
	for _, c := range current.Components {
		if claimed[c] || !ok(c) {
			continue
		}
		if best == nil || candidateLess(c, best) {
			best = c
		}
	}
	return best
}

func candidateLess(a, b *circuit.Component) bool {
	if a.Ref != b.Ref {
		return circuit.RefLess(a.Ref, b.Ref)
	}
	return a.ID < b.ID
}

func (p *Plan) diffNets(current, desired *circuit.Circuit) {
	des := make([]*circuit.Net, len(desired.Nets))
	copy(des, desired.Nets)
	sort.Slice(des, func(i, j int) bool { return des[i].Name < des[j].Name })

	claimed := make(map[*circuit.Net]bool)
	match := make(map[*circuit.Net]*circuit.Net)

	// Names match directly: explicit names are stable, implicit
	// names are derived from the endpoint set on both sides.
	for _, d := range des {
		if cur, ok := current.NetByName(d.Name); ok && !claimed[cur] {
			claimed[cur] = true
			match[d] = cur
		}
	}

	// Grown-net rule: a renamed net whose endpoint set is a superset
	// of an existing net keeps that net's identity when the new name
	// is explicit. Implicit renames fall through to Remove+Add.
	for _, d := range des {
		if match[d] != nil || !d.Explicit {
			continue
		}
		want := p.endpointSet(d)
		var best *circuit.Net
		for _, cur := range current.Nets {
			if claimed[cur] || len(cur.Endpoints) == 0 || !subset(cur.Endpoints, want) {
				continue
			}
			if best == nil || netLess(cur, best) {
				best = cur
			}
		}
		if best != nil {
			claimed[best] = true
			match[d] = best
		}
	}

	for _, d := range des {
		cur := match[d]
		if cur == nil {
			p.Nets = append(p.Nets, NetEdit{Op: OpAdd, Desired: d})
			continue
		}
		op := OpUpdate
		if cur.Name == d.Name && endpointsEqual(cur.Endpoints, p.endpointSet(d)) {
			op = OpKeep
		}
		p.Nets = append(p.Nets, NetEdit{Op: op, Current: cur, Desired: d})
	}

	removed := make([]*circuit.Net, 0)
	for _, cur := range current.Nets {
		if !claimed[cur] {
			removed = append(removed, cur)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Name < removed[j].Name })
	for _, cur := range removed {
		p.Nets = append(p.Nets, NetEdit{Op: OpRemove, Current: cur})
	}
}

func (p *Plan) diffInstances(current, desired *circuit.Circuit) {
	des := make([]*circuit.Instance, len(desired.Instances))
	copy(des, desired.Instances)
	sort.Slice(des, func(i, j int) bool { return des[i].Name < des[j].Name })

	claimed := make(map[*circuit.Instance]bool)
	match := make(map[*circuit.Instance]*circuit.Instance)

	for _, d := range des {
		if d.ID == "" || circuit.IsProvisional(d.ID) {
			continue
		}
		if cur, ok := current.InstanceByID(d.ID); ok && !claimed[cur] {
			claimed[cur] = true
			match[d] = cur
		}
	}

	for _, d := range des {
		if match[d] != nil {
			continue
		}
		for _, cur := range current.Instances {
			if !claimed[cur] && cur.Name == d.Name {
				claimed[cur] = true
				match[d] = cur
				break
			}
		}
	}

	// A lone unmatched pair is a rename: the fragment keeps its
	// identity and layout, only the sheet name changes.
	var unDes []*circuit.Instance
	for _, d := range des {
		if match[d] == nil {
			unDes = append(unDes, d)
		}
	}
	var unCur []*circuit.Instance
	for _, cur := range current.Instances {
		if !claimed[cur] {
			unCur = append(unCur, cur)
		}
	}
	if len(unDes) == 1 && len(unCur) == 1 {
		claimed[unCur[0]] = true
		match[unDes[0]] = unCur[0]
	}

	for _, d := range des {
		cur := match[d]
		if cur == nil {
			p.Instances = append(p.Instances, InstanceEdit{Op: OpAdd, Desired: d})
			continue
		}
		edit := InstanceEdit{Current: cur, Desired: d}
		if d.Name != cur.Name {
			edit.NewName = d.Name
		}
		if edit.NewName == "" && bindingsEqual(cur.Bindings, d.Bindings) {
			edit.Op = OpKeep
		} else {
			edit.Op = OpUpdate
		}
		p.Instances = append(p.Instances, edit)
	}

	removed := make([]*circuit.Instance, 0)
	for _, cur := range current.Instances {
		if !claimed[cur] {
			removed = append(removed, cur)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Name < removed[j].Name })
	for _, cur := range removed {
		p.Instances = append(p.Instances, InstanceEdit{Op: OpRemove, Current: cur})
	}
}

// endpointSet resolves a desired net's endpoints into document
// identity space, sorted.
func (p *Plan) endpointSet(n *circuit.Net) []circuit.Endpoint {
	out := make([]circuit.Endpoint, 0, len(n.Endpoints))
	for _, ep := range n.Endpoints {
		out = append(out, p.MapEndpoint(ep))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Component != out[j].Component {
			return out[i].Component < out[j].Component
		}
		return out[i].Pin < out[j].Pin
	})
	return out
}

func endpointsEqual(a, b []circuit.Endpoint) bool {
	if len(a) != len(b) {
		return false
	}
	as := make([]circuit.Endpoint, len(a))
	copy(as, a)
	sort.Slice(as, func(i, j int) bool {
		if as[i].Component != as[j].Component {
			return as[i].Component < as[j].Component
		}
		return as[i].Pin < as[j].Pin
	})
	for i := range as {
		if as[i] != b[i] {
			return false
		}
	}
	return true
}

func subset(small, big []circuit.Endpoint) bool {
	for _, ep := range small {
		found := false
		for _, other := range big {
			if ep == other {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func netLess(a, b *circuit.Net) bool {
	if len(a.Endpoints) != len(b.Endpoints) {
		return len(a.Endpoints) > len(b.Endpoints)
	}
	return a.Name < b.Name
}

func bindingsEqual(cur, des map[string]string) bool {
	if len(cur) != len(des) {
		return false
	}
	for port, net := range des {
		if cur[port] != net {
			return false
		}
	}
	return true
}

func sigEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
